package peerconn

import "testing"

func hasAction(actions []healthAction, want healthAction) bool {
	for _, action := range actions {
		if action == want {
			return true
		}
	}
	return false
}

func TestHealthDisconnectStartsGraceOnce(t *testing.T) {
	state, actions := nextHealthState(healthConnected, eventDisconnected)
	if state != healthDisconnected {
		t.Fatalf("state = %s, want disconnected", state)
	}
	if !hasAction(actions, actionStartGrace) {
		t.Error("expected actionStartGrace on connected → disconnected")
	}

	// A second disconnected observation must not restart the timer.
	state, actions = nextHealthState(state, eventDisconnected)
	if state != healthDisconnected {
		t.Fatalf("state = %s, want disconnected", state)
	}
	if len(actions) != 0 {
		t.Errorf("repeated disconnected produced actions %v, want none", actions)
	}
}

func TestHealthRecoveryCancelsGrace(t *testing.T) {
	state, actions := nextHealthState(healthDisconnected, eventConnected)
	if state != healthConnected {
		t.Fatalf("state = %s, want connected", state)
	}
	if !hasAction(actions, actionCancelGrace) {
		t.Error("expected actionCancelGrace on disconnected → connected")
	}
}

func TestHealthRepeatedConnectedIsIdempotent(t *testing.T) {
	state, actions := nextHealthState(healthConnected, eventConnected)
	if state != healthConnected || len(actions) != 0 {
		t.Errorf("repeated connected gave (%s, %v), want (connected, none)", state, actions)
	}
}

func TestHealthGraceExpiryIsTerminal(t *testing.T) {
	state, actions := nextHealthState(healthDisconnected, eventGraceExpired)
	if state != healthFailed {
		t.Fatalf("state = %s, want failed", state)
	}
	if !hasAction(actions, actionTeardown) {
		t.Error("expected actionTeardown on grace expiry")
	}

	// Expiry after recovery is a no-op.
	state, actions = nextHealthState(healthConnected, eventGraceExpired)
	if state != healthConnected || len(actions) != 0 {
		t.Errorf("stale expiry gave (%s, %v), want (connected, none)", state, actions)
	}
}

func TestHealthAggregateFailureTearsDownImmediately(t *testing.T) {
	for _, event := range []healthEvent{eventFailed, eventClosed} {
		_, actions := nextHealthState(healthConnected, event)
		if !hasAction(actions, actionTeardown) {
			t.Errorf("event %v: expected actionTeardown", event)
		}
		if !hasAction(actions, actionCancelGrace) {
			t.Errorf("event %v: expected actionCancelGrace", event)
		}
	}
}

func TestHealthICECheckingRestartsOnlyAfterEstablishment(t *testing.T) {
	// Initial checking is part of normal setup, not a failure
	// observation.
	state, actions := nextHealthState(healthNew, eventICEChecking)
	if state != healthChecking {
		t.Fatalf("state = %s, want checking", state)
	}
	if hasAction(actions, actionRestartICE) {
		t.Error("initial checking must not trigger an ICE restart")
	}

	// Regressing to checking after being connected is one.
	_, actions = nextHealthState(healthConnected, eventICEChecking)
	if !hasAction(actions, actionRestartICE) {
		t.Error("expected actionRestartICE when ICE regresses to checking")
	}
}

func TestHealthICEFailureRequestsRestart(t *testing.T) {
	_, actions := nextHealthState(healthConnected, eventICEFailed)
	if !hasAction(actions, actionRestartICE) {
		t.Error("expected actionRestartICE on ICE failure")
	}
}

func TestHealthICEConnectedResetsRestartBudget(t *testing.T) {
	_, actions := nextHealthState(healthConnected, eventICEConnected)
	if !hasAction(actions, actionResetRestarts) {
		t.Error("expected actionResetRestarts when ICE connects")
	}
}

func TestHealthTerminalStatesAbsorbEverything(t *testing.T) {
	events := []healthEvent{
		eventICEChecking, eventICEFailed, eventICEConnected,
		eventConnected, eventDisconnected, eventFailed, eventClosed,
		eventGraceExpired,
	}
	for _, terminal := range []healthState{healthFailed, healthClosed} {
		for _, event := range events {
			state, actions := nextHealthState(terminal, event)
			if state != terminal || len(actions) != 0 {
				t.Errorf("terminal %s on event %v gave (%s, %v), want absorbed", terminal, event, state, actions)
			}
		}
	}
}
