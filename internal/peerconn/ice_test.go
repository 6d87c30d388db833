package peerconn

import "testing"

func TestNewICEConfigEmpty(t *testing.T) {
	cfg := NewICEConfig(nil, "", "")
	if len(cfg.Servers) != 0 {
		t.Errorf("empty URL list produced %d servers, want 0", len(cfg.Servers))
	}
}

func TestNewICEConfigWithCredentials(t *testing.T) {
	urls := []string{"stun:stun.example.org:3478", "turn:turn.example.org:3478"}
	cfg := NewICEConfig(urls, "user", "secret")

	if len(cfg.Servers) != 1 {
		t.Fatalf("got %d servers, want 1", len(cfg.Servers))
	}
	server := cfg.Servers[0]
	if len(server.URLs) != 2 {
		t.Errorf("got %d URLs, want 2", len(server.URLs))
	}
	if server.Username != "user" {
		t.Errorf("Username = %q, want %q", server.Username, "user")
	}
	if server.Credential != "secret" {
		t.Errorf("Credential = %v, want %q", server.Credential, "secret")
	}
}

func TestNewICEConfigWithoutCredentials(t *testing.T) {
	cfg := NewICEConfig([]string{"stun:stun.example.org:3478"}, "", "")
	if cfg.Servers[0].Username != "" || cfg.Servers[0].Credential != nil {
		t.Error("credentials set despite empty username")
	}
}
