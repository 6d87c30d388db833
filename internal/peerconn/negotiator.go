package peerconn

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

// CreateOffer generates a local offer for remoteID (creating the
// connection if needed) and emits it through the signal sender. On
// failure the connection is left intact so the caller may retry.
func (m *Manager) CreateOffer(remoteID string) error {
	conn, err := m.getOrCreate(remoteID)
	if err != nil {
		return err
	}

	conn.negMu.Lock()
	defer conn.negMu.Unlock()

	offer, err := conn.pc.CreateOffer(nil)
	if err != nil {
		m.log.Warn("creating offer failed", "peer", remoteID, "error", err)
		return fmt.Errorf("creating offer for %s: %w", remoteID, err)
	}
	if err := conn.pc.SetLocalDescription(offer); err != nil {
		m.log.Warn("setting local offer failed", "peer", remoteID, "error", err)
		return fmt.Errorf("setting local offer for %s: %w", remoteID, err)
	}

	if err := m.send(Message{
		Kind: KindOffer,
		From: m.localID,
		To:   remoteID,
		SDP:  conn.pc.LocalDescription(),
	}); err != nil {
		m.log.Warn("sending offer failed", "peer", remoteID, "error", err)
		return fmt.Errorf("sending offer to %s: %w", remoteID, err)
	}
	return nil
}

// HandleOffer processes an inbound offer from fromID, creating the
// connection if this is the first contact. Glare (both sides offered at
// once) is broken deterministically: the peer whose id sorts
// lexicographically lower is polite and rolls back its own offer before
// accepting the remote one; the other peer keeps its offer in flight and
// drops the incoming offer. Failures are logged and absorbed.
func (m *Manager) HandleOffer(fromID string, sdp webrtc.SessionDescription) {
	conn, err := m.getOrCreate(fromID)
	if err != nil {
		m.log.Warn("creating connection for inbound offer failed", "peer", fromID, "error", err)
		return
	}

	conn.negMu.Lock()
	defer conn.negMu.Unlock()

	if conn.pc.SignalingState() == webrtc.SignalingStateHaveLocalOffer {
		if m.localID > fromID {
			m.log.Debug("glare: keeping own offer, dropping remote", "peer", fromID)
			return
		}
		if err := conn.pc.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeRollback}); err != nil {
			m.log.Warn("glare: rolling back local offer failed", "peer", fromID, "error", err)
			return
		}
		m.log.Debug("glare: rolled back own offer", "peer", fromID)
	}

	if err := m.setRemoteDescription(conn, sdp); err != nil {
		m.log.Warn("applying remote offer failed", "peer", fromID, "error", err)
		return
	}

	answer, err := conn.pc.CreateAnswer(nil)
	if err != nil {
		m.log.Warn("creating answer failed", "peer", fromID, "error", err)
		return
	}
	if err := conn.pc.SetLocalDescription(answer); err != nil {
		m.log.Warn("setting local answer failed", "peer", fromID, "error", err)
		return
	}

	if err := m.send(Message{
		Kind: KindAnswer,
		From: m.localID,
		To:   fromID,
		SDP:  conn.pc.LocalDescription(),
	}); err != nil {
		m.log.Warn("sending answer failed", "peer", fromID, "error", err)
	}
}

// HandleAnswer completes an exchange started by CreateOffer. An answer
// with no matching connection is a protocol violation: logged, dropped,
// and no connection is created.
func (m *Manager) HandleAnswer(fromID string, sdp webrtc.SessionDescription) {
	conn := m.get(fromID)
	if conn == nil {
		m.log.Warn("answer for unknown connection dropped", "peer", fromID)
		return
	}

	conn.negMu.Lock()
	defer conn.negMu.Unlock()

	if err := m.setRemoteDescription(conn, sdp); err != nil {
		m.log.Warn("applying remote answer failed", "peer", fromID, "error", err)
	}
}

// HandleIceCandidate adds a remote candidate to the connection's
// transport. Candidates are best-effort: a missing connection or
// malformed candidate is dropped with no retry. Candidates that arrive
// before the remote description are queued and flushed once it is set.
func (m *Manager) HandleIceCandidate(fromID string, candidate webrtc.ICECandidateInit) {
	conn := m.get(fromID)
	if conn == nil {
		m.log.Debug("candidate for unknown connection dropped", "peer", fromID)
		return
	}

	conn.negMu.Lock()
	defer conn.negMu.Unlock()

	if conn.pc.RemoteDescription() == nil {
		conn.pending = append(conn.pending, candidate)
		return
	}
	if err := conn.pc.AddICECandidate(candidate); err != nil {
		m.log.Debug("adding ICE candidate failed", "peer", fromID, "error", err)
	}
}

// setRemoteDescription applies sdp and flushes any queued remote
// candidates. Caller holds conn.negMu.
func (m *Manager) setRemoteDescription(conn *PeerConnection, sdp webrtc.SessionDescription) error {
	if err := conn.pc.SetRemoteDescription(sdp); err != nil {
		return err
	}
	for _, candidate := range conn.pending {
		if err := conn.pc.AddICECandidate(candidate); err != nil {
			m.log.Debug("adding queued ICE candidate failed", "peer", conn.remoteID, "error", err)
		}
	}
	conn.pending = nil
	return nil
}

// restartICE renegotiates connectivity in place without discarding the
// media session. The restart offer goes through the normal offer/answer
// path on the remote side and does not reset negotiation state.
func (m *Manager) restartICE(conn *PeerConnection) {
	conn.negMu.Lock()
	defer conn.negMu.Unlock()

	offer, err := conn.pc.CreateOffer(&webrtc.OfferOptions{ICERestart: true})
	if err != nil {
		m.log.Warn("creating ICE restart offer failed", "peer", conn.remoteID, "error", err)
		return
	}
	if err := conn.pc.SetLocalDescription(offer); err != nil {
		m.log.Warn("setting ICE restart offer failed", "peer", conn.remoteID, "error", err)
		return
	}

	if err := m.send(Message{
		Kind: KindOffer,
		From: m.localID,
		To:   conn.remoteID,
		SDP:  conn.pc.LocalDescription(),
	}); err != nil {
		m.log.Warn("sending ICE restart offer failed", "peer", conn.remoteID, "error", err)
		return
	}
	m.log.Info("ICE restart offered", "peer", conn.remoteID)
}
