package peerconn

import (
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
)

// PeerConnection is one bidirectional media link to exactly one remote
// participant. At most one exists per remote id at any time; the
// registry enforces this.
type PeerConnection struct {
	remoteID string
	pc       *webrtc.PeerConnection

	// negMu serializes offer/answer work for this peer only. Signaling
	// for other peers proceeds independently.
	negMu sync.Mutex

	// pending holds remote ICE candidates that arrived before the remote
	// description was set. Flushed on SetRemoteDescription. Guarded by
	// negMu.
	pending []webrtc.ICECandidateInit

	// senders tracks the RTP senders created when the local stream was
	// attached, so StopStreaming can remove them again. Guarded by
	// Manager.mu.
	senders []*webrtc.RTPSender

	streamMu sync.Mutex
	streams  map[string]*RemoteStream
	current  *RemoteStream

	healthMu   sync.Mutex
	health     healthState
	graceTimer *time.Timer
	restarts   int
	ended      bool
	closed     bool
}

// RemoteID returns the id of the remote participant. Immutable.
func (c *PeerConnection) RemoteID() string {
	return c.remoteID
}

// Transport exposes the underlying pion PeerConnection.
func (c *PeerConnection) Transport() *webrtc.PeerConnection {
	return c.pc
}

// RemoteStream returns the most recently received inbound media stream,
// or nil if none has arrived yet.
func (c *PeerConnection) RemoteStream() *RemoteStream {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	return c.current
}

// addRemoteTrack records an inbound track under its stream id and
// reports whether it started a new stream.
func (c *PeerConnection) addRemoteTrack(track *webrtc.TrackRemote) (*RemoteStream, bool) {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	if c.streams == nil {
		c.streams = make(map[string]*RemoteStream)
	}
	stream, ok := c.streams[track.StreamID()]
	if !ok {
		stream = &RemoteStream{id: track.StreamID()}
		c.streams[track.StreamID()] = stream
	}
	stream.addTrack(track)
	c.current = stream
	return stream, !ok
}

// newConnection constructs a PeerConnection to remoteID and wires the
// pion callbacks. The caller holds Manager.mu and inserts the result
// into the registry before any callback can fire.
func (m *Manager) newConnection(remoteID string) (*PeerConnection, error) {
	pc, err := m.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: m.ice.Servers,
	})
	if err != nil {
		return nil, fmt.Errorf("creating PeerConnection to %s: %w", remoteID, err)
	}

	conn := &PeerConnection{
		remoteID: remoteID,
		pc:       pc,
		health:   healthNew,
	}

	// Recv-only transceivers for both kinds so every offer negotiates
	// audio and video even before a local stream is attached. AddTrack
	// reuses them once streaming starts.
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			pc.Close()
			return nil, fmt.Errorf("adding %s transceiver for %s: %w", kind, remoteID, err)
		}
	}

	// Trickle ICE: forward candidates as pion discovers them. These may
	// interleave with offer/answer traffic; receivers must not assume
	// ordering between a candidate and the description it belongs to.
	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		init := candidate.ToJSON()
		if err := m.send(Message{
			Kind:      KindCandidate,
			From:      m.localID,
			To:        remoteID,
			Candidate: &init,
		}); err != nil {
			m.log.Warn("sending ICE candidate failed", "peer", remoteID, "error", err)
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		stream, isNew := conn.addRemoteTrack(track)
		m.log.Info("remote track received",
			"peer", remoteID,
			"kind", track.Kind().String(),
			"stream", track.StreamID(),
		)
		if isNew && m.onRemoteStream != nil {
			m.onRemoteStream(remoteID, stream)
		}
	})

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		m.handleICEState(conn, state)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		m.handleConnectionState(conn, state)
	})

	return conn, nil
}
