package peerconn

import "github.com/pion/webrtc/v4"

// ICEConfig holds ICE server configuration for WebRTC PeerConnections.
type ICEConfig struct {
	// Servers is the list of STUN/TURN servers to use during candidate
	// gathering. Include redundant entries where possible: individual
	// servers being unreachable is not fatal.
	Servers []webrtc.ICEServer
}

// NewICEConfig builds an ICEConfig from STUN/TURN URLs and an optional
// credential pair shared by the TURN entries. An empty URL list returns
// a config with only host candidates (no STUN, no TURN) — sufficient for
// same-machine and same-LAN calls.
func NewICEConfig(urls []string, username, credential string) ICEConfig {
	if len(urls) == 0 {
		return ICEConfig{}
	}
	server := webrtc.ICEServer{URLs: urls}
	if username != "" {
		server.Username = username
		server.Credential = credential
	}
	return ICEConfig{Servers: []webrtc.ICEServer{server}}
}
