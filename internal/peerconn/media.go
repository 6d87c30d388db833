package peerconn

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// LocalStream is the outgoing media stream: a bundle of local tracks
// sharing one stream id. The application owns capture and pacing; the
// manager only attaches the tracks to connections and detaches them
// again.
type LocalStream struct {
	ID     string
	Tracks []webrtc.TrackLocal
}

// RemoteStream is an inbound media stream from one remote participant.
// Tracks accumulate as pion surfaces them.
type RemoteStream struct {
	id     string
	mu     sync.Mutex
	tracks []*webrtc.TrackRemote
}

// ID returns the remote stream id from the sender's SDP.
func (s *RemoteStream) ID() string {
	return s.id
}

// Tracks returns the tracks received so far.
func (s *RemoteStream) Tracks() []*webrtc.TrackRemote {
	s.mu.Lock()
	defer s.mu.Unlock()
	tracks := make([]*webrtc.TrackRemote, len(s.tracks))
	copy(tracks, s.tracks)
	return tracks
}

func (s *RemoteStream) addTrack(track *webrtc.TrackRemote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = append(s.tracks, track)
}

// StartStreaming stores stream and attaches every one of its tracks to
// every registered connection before returning, so no connection ever
// observes a half-attached stream. A previously active stream is
// detached first. Connections created later are bound on creation.
func (m *Manager) StartStreaming(stream *LocalStream) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.local != nil {
		m.detachAllLocked()
	}
	m.local = stream

	var firstErr error
	for _, conn := range m.conns {
		if err := m.bindLocalLocked(conn); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// StopStreaming removes the local tracks from every connection and
// clears the stored stream. Safe to call when nothing is streaming.
func (m *Manager) StopStreaming() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detachAllLocked()
	m.local = nil
}

// bindLocalLocked attaches the current local stream's tracks to conn.
// Caller holds m.mu.
func (m *Manager) bindLocalLocked(conn *PeerConnection) error {
	if m.local == nil {
		return nil
	}
	for _, track := range m.local.Tracks {
		sender, err := conn.pc.AddTrack(track)
		if err != nil {
			return err
		}
		conn.senders = append(conn.senders, sender)
	}
	return nil
}

// detachAllLocked removes every attached local track from every
// connection. Caller holds m.mu.
func (m *Manager) detachAllLocked() {
	for _, conn := range m.conns {
		for _, sender := range conn.senders {
			if err := conn.pc.RemoveTrack(sender); err != nil {
				m.log.Debug("removing local track failed",
					"peer", conn.remoteID,
					"error", err,
				)
			}
		}
		conn.senders = nil
	}
}
