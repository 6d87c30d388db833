package peerconn

import (
	"time"

	"github.com/pion/webrtc/v4"
)

// healthState is the per-connection health lifecycle:
// new → checking → connected ⇄ disconnected → failed | closed.
// failed and closed are terminal.
type healthState int

const (
	healthNew healthState = iota
	healthChecking
	healthConnected
	healthDisconnected
	healthFailed
	healthClosed
)

func (s healthState) String() string {
	switch s {
	case healthNew:
		return "new"
	case healthChecking:
		return "checking"
	case healthConnected:
		return "connected"
	case healthDisconnected:
		return "disconnected"
	case healthFailed:
		return "failed"
	case healthClosed:
		return "closed"
	}
	return "unknown"
}

func (s healthState) terminal() bool {
	return s == healthFailed || s == healthClosed
}

// healthEvent is an observation from the transport or ICE layer, or the
// expiry of the disconnection grace timer.
type healthEvent int

const (
	eventICEChecking healthEvent = iota
	eventICEFailed
	eventICEConnected
	eventConnected
	eventDisconnected
	eventFailed
	eventClosed
	eventGraceExpired
)

// healthAction is a side effect requested by a transition.
type healthAction int

const (
	actionRestartICE healthAction = iota
	actionStartGrace
	actionCancelGrace
	actionResetRestarts
	actionTeardown
)

// nextHealthState is the transition function of the health state
// machine. It is pure: timers, restarts and teardown are carried out by
// the caller. Terminal states absorb every event.
//
// ICE-layer events drive restart attempts; aggregate transport events
// drive the connected/disconnected/terminal lifecycle. An ICE regression
// to checking after the connection was established counts as a failure
// observation and earns one restart; the initial new → checking
// transition does not.
func nextHealthState(state healthState, event healthEvent) (healthState, []healthAction) {
	if state.terminal() {
		return state, nil
	}

	switch event {
	case eventICEChecking:
		switch state {
		case healthConnected, healthDisconnected:
			return healthChecking, []healthAction{actionRestartICE}
		case healthNew:
			return healthChecking, nil
		}
		return state, nil

	case eventICEFailed:
		return state, []healthAction{actionRestartICE}

	case eventICEConnected:
		return state, []healthAction{actionResetRestarts}

	case eventConnected:
		if state == healthConnected {
			// Idempotent observation, not an edge-triggered action.
			return state, nil
		}
		if state == healthDisconnected {
			return healthConnected, []healthAction{actionCancelGrace, actionResetRestarts}
		}
		return healthConnected, []healthAction{actionResetRestarts}

	case eventDisconnected:
		if state == healthDisconnected {
			return state, nil
		}
		return healthDisconnected, []healthAction{actionStartGrace}

	case eventFailed:
		return healthFailed, []healthAction{actionCancelGrace, actionTeardown}

	case eventClosed:
		return healthClosed, []healthAction{actionCancelGrace, actionTeardown}

	case eventGraceExpired:
		if state == healthDisconnected {
			return healthFailed, []healthAction{actionTeardown}
		}
		return state, nil
	}

	return state, nil
}

// handleICEState maps pion ICE connection state changes onto health
// events. Only states with a defined reaction are forwarded.
func (m *Manager) handleICEState(conn *PeerConnection, state webrtc.ICEConnectionState) {
	m.log.Debug("ICE state change", "peer", conn.remoteID, "state", state.String())

	switch state {
	case webrtc.ICEConnectionStateChecking:
		m.applyHealth(conn, eventICEChecking)
	case webrtc.ICEConnectionStateFailed:
		m.applyHealth(conn, eventICEFailed)
	case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
		m.applyHealth(conn, eventICEConnected)
	}
}

// handleConnectionState maps pion aggregate transport state changes onto
// health events.
func (m *Manager) handleConnectionState(conn *PeerConnection, state webrtc.PeerConnectionState) {
	m.log.Debug("connection state change", "peer", conn.remoteID, "state", state.String())

	switch state {
	case webrtc.PeerConnectionStateConnected:
		m.applyHealth(conn, eventConnected)
	case webrtc.PeerConnectionStateDisconnected:
		m.applyHealth(conn, eventDisconnected)
	case webrtc.PeerConnectionStateFailed:
		m.applyHealth(conn, eventFailed)
	case webrtc.PeerConnectionStateClosed:
		m.applyHealth(conn, eventClosed)
	}
}

// applyHealth runs one event through the state machine and carries out
// the resulting actions. Health handling is independent per connection;
// one peer's transitions never block another's.
func (m *Manager) applyHealth(conn *PeerConnection, event healthEvent) {
	conn.healthMu.Lock()
	if conn.closed {
		conn.healthMu.Unlock()
		return
	}

	next, actions := nextHealthState(conn.health, event)
	if next != conn.health {
		m.log.Info("peer health transition",
			"peer", conn.remoteID,
			"from", conn.health.String(),
			"to", next.String(),
		)
	}
	conn.health = next

	var restart, teardown bool
	for _, action := range actions {
		switch action {
		case actionStartGrace:
			if conn.graceTimer == nil {
				conn.graceTimer = time.AfterFunc(m.gracePeriod, func() {
					m.applyHealth(conn, eventGraceExpired)
				})
			}
		case actionCancelGrace:
			if conn.graceTimer != nil {
				conn.graceTimer.Stop()
				conn.graceTimer = nil
			}
		case actionResetRestarts:
			conn.restarts = 0
		case actionRestartICE:
			if m.maxICERestarts > 0 && conn.restarts >= m.maxICERestarts {
				// Restart budget exhausted: escalate to teardown
				// instead of oscillating.
				teardown = true
			} else {
				conn.restarts++
				restart = true
			}
		case actionTeardown:
			teardown = true
		}
	}
	conn.healthMu.Unlock()

	if restart {
		// Off the pion callback goroutine: the restart takes the
		// negotiation lock.
		go m.restartICE(conn)
	}
	if teardown {
		m.teardown(conn)
	}
}
