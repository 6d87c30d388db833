package peerconn

import (
	"testing"

	"github.com/pion/webrtc/v4"
)

func TestGetOrCreateIdempotent(t *testing.T) {
	m := newTestManager(t, "local", nil)

	first, err := m.getOrCreate("peer")
	if err != nil {
		t.Fatalf("getOrCreate: %v", err)
	}
	second, err := m.getOrCreate("peer")
	if err != nil {
		t.Fatalf("getOrCreate: %v", err)
	}

	if first != second {
		t.Error("getOrCreate returned different connections for the same id")
	}
	if got := len(m.snapshot()); got != 1 {
		t.Errorf("registry holds %d connections, want 1", got)
	}
	if first.RemoteID() != "peer" {
		t.Errorf("RemoteID = %q, want %q", first.RemoteID(), "peer")
	}
}

func TestGetUnknownReturnsNil(t *testing.T) {
	m := newTestManager(t, "local", nil)
	if m.get("nobody") != nil {
		t.Error("get returned a connection for an unknown id")
	}
}

func newAudioTrack(t *testing.T, trackID string) webrtc.TrackLocal {
	t.Helper()
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		trackID,
		"local",
	)
	if err != nil {
		t.Fatalf("NewTrackLocalStaticSample: %v", err)
	}
	return track
}

func TestRetroactiveLocalStreamAttachment(t *testing.T) {
	m := newTestManager(t, "local", nil)

	x, err := m.getOrCreate("x")
	if err != nil {
		t.Fatalf("getOrCreate(x): %v", err)
	}
	y, err := m.getOrCreate("y")
	if err != nil {
		t.Fatalf("getOrCreate(y): %v", err)
	}

	track := newAudioTrack(t, "audio0")
	if err := m.StartStreaming(&LocalStream{ID: "local", Tracks: []webrtc.TrackLocal{track}}); err != nil {
		t.Fatalf("StartStreaming: %v", err)
	}

	// A connection created after StartStreaming must carry the same
	// tracks as the pre-existing ones.
	z, err := m.getOrCreate("z")
	if err != nil {
		t.Fatalf("getOrCreate(z): %v", err)
	}

	for _, conn := range []*PeerConnection{x, y, z} {
		if got := len(conn.senders); got != 1 {
			t.Errorf("connection %s carries %d senders, want 1", conn.RemoteID(), got)
			continue
		}
		if conn.senders[0].Track() != track {
			t.Errorf("connection %s carries a different track", conn.RemoteID())
		}
	}
}

func TestStopStreamingDetachesEverywhere(t *testing.T) {
	m := newTestManager(t, "local", nil)

	conn, err := m.getOrCreate("peer")
	if err != nil {
		t.Fatalf("getOrCreate: %v", err)
	}

	track := newAudioTrack(t, "audio0")
	if err := m.StartStreaming(&LocalStream{ID: "local", Tracks: []webrtc.TrackLocal{track}}); err != nil {
		t.Fatalf("StartStreaming: %v", err)
	}
	m.StopStreaming()

	if got := len(conn.senders); got != 0 {
		t.Errorf("connection carries %d senders after StopStreaming, want 0", got)
	}

	// A connection created after StopStreaming gets nothing attached.
	later, err := m.getOrCreate("later")
	if err != nil {
		t.Fatalf("getOrCreate(later): %v", err)
	}
	if got := len(later.senders); got != 0 {
		t.Errorf("new connection carries %d senders after StopStreaming, want 0", got)
	}
}

func TestStartStreamingReplacesPreviousStream(t *testing.T) {
	m := newTestManager(t, "local", nil)

	conn, err := m.getOrCreate("peer")
	if err != nil {
		t.Fatalf("getOrCreate: %v", err)
	}

	first := newAudioTrack(t, "audio0")
	if err := m.StartStreaming(&LocalStream{ID: "one", Tracks: []webrtc.TrackLocal{first}}); err != nil {
		t.Fatalf("StartStreaming: %v", err)
	}
	second := newAudioTrack(t, "audio1")
	if err := m.StartStreaming(&LocalStream{ID: "two", Tracks: []webrtc.TrackLocal{second}}); err != nil {
		t.Fatalf("StartStreaming: %v", err)
	}

	if got := len(conn.senders); got != 1 {
		t.Fatalf("connection carries %d senders after swap, want 1", got)
	}
	if conn.senders[0].Track() != second {
		t.Error("connection still carries the old stream's track after swap")
	}
}
