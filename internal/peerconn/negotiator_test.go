package peerconn

import (
	"testing"

	"github.com/pion/webrtc/v4"
)

func TestOfferAnswerExchange(t *testing.T) {
	aliceOut := &sink{}
	bobOut := &sink{}
	alice := newTestManager(t, "alice", func(cfg *Config) { cfg.SendSignal = aliceOut.send })
	bob := newTestManager(t, "bob", func(cfg *Config) { cfg.SendSignal = bobOut.send })

	if err := alice.CreateOffer("bob"); err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	offer := aliceOut.last(KindOffer)
	if offer == nil {
		t.Fatal("alice emitted no offer")
	}
	if offer.From != "alice" || offer.To != "bob" {
		t.Errorf("offer addressed %s → %s, want alice → bob", offer.From, offer.To)
	}

	bob.HandleOffer("alice", *offer.SDP)
	answer := bobOut.last(KindAnswer)
	if answer == nil {
		t.Fatal("bob emitted no answer")
	}
	if got := bob.get("alice").Transport().SignalingState(); got != webrtc.SignalingStateStable {
		t.Errorf("bob signaling state = %s, want stable", got)
	}

	alice.HandleAnswer("bob", *answer.SDP)
	if got := alice.get("bob").Transport().SignalingState(); got != webrtc.SignalingStateStable {
		t.Errorf("alice signaling state = %s, want stable", got)
	}
}

func TestGlareLowerIDRollsBack(t *testing.T) {
	aliceOut := &sink{}
	bobOut := &sink{}
	alice := newTestManager(t, "alice", func(cfg *Config) { cfg.SendSignal = aliceOut.send })
	bob := newTestManager(t, "bob", func(cfg *Config) { cfg.SendSignal = bobOut.send })

	// Both sides offer to each other at once.
	if err := alice.CreateOffer("bob"); err != nil {
		t.Fatalf("alice CreateOffer: %v", err)
	}
	if err := bob.CreateOffer("alice"); err != nil {
		t.Fatalf("bob CreateOffer: %v", err)
	}
	aliceOffer := aliceOut.last(KindOffer)
	bobOffer := bobOut.last(KindOffer)
	if aliceOffer == nil || bobOffer == nil {
		t.Fatal("missing initial offers")
	}

	// Bob's offer reaches alice. "alice" < "bob", so alice is polite:
	// she rolls back her own offer, accepts bob's and answers.
	alice.HandleOffer("bob", *bobOffer.SDP)
	if got := alice.get("bob").Transport().SignalingState(); got != webrtc.SignalingStateStable {
		t.Errorf("alice signaling state = %s, want stable after rollback+answer", got)
	}
	aliceAnswer := aliceOut.last(KindAnswer)
	if aliceAnswer == nil {
		t.Fatal("polite peer did not answer the surviving offer")
	}

	// Alice's offer reaches bob. Bob is impolite: he drops it and keeps
	// his own offer in flight.
	bob.HandleOffer("alice", *aliceOffer.SDP)
	if got := bob.get("alice").Transport().SignalingState(); got != webrtc.SignalingStateHaveLocalOffer {
		t.Errorf("bob signaling state = %s, want have-local-offer after discarding glare offer", got)
	}
	if got := len(bobOut.byKind(KindAnswer)); got != 0 {
		t.Errorf("impolite peer emitted %d answers, want 0", got)
	}

	// Alice's answer completes bob's exchange: exactly one offer
	// survived the race.
	bob.HandleAnswer("alice", *aliceAnswer.SDP)
	if got := bob.get("alice").Transport().SignalingState(); got != webrtc.SignalingStateStable {
		t.Errorf("bob signaling state = %s, want stable", got)
	}
}

func TestHandleAnswerUnknownPeer(t *testing.T) {
	m := newTestManager(t, "local", nil)

	m.HandleAnswer("ghost", webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  "v=0",
	})

	if got := len(m.snapshot()); got != 0 {
		t.Errorf("HandleAnswer created %d connections, want 0", got)
	}
}

func TestHandleIceCandidateUnknownPeer(t *testing.T) {
	m := newTestManager(t, "local", nil)

	m.HandleIceCandidate("ghost", webrtc.ICECandidateInit{Candidate: "candidate:garbage"})

	if got := len(m.snapshot()); got != 0 {
		t.Errorf("HandleIceCandidate created %d connections, want 0", got)
	}
}

func TestCandidateBeforeRemoteDescriptionIsQueued(t *testing.T) {
	m := newTestManager(t, "local", nil)

	conn, err := m.getOrCreate("peer")
	if err != nil {
		t.Fatalf("getOrCreate: %v", err)
	}

	m.HandleIceCandidate("peer", webrtc.ICECandidateInit{
		Candidate: "candidate:1 1 UDP 2122252543 127.0.0.1 50000 typ host",
	})

	conn.negMu.Lock()
	queued := len(conn.pending)
	conn.negMu.Unlock()
	if queued != 1 {
		t.Errorf("%d candidates queued before remote description, want 1", queued)
	}
}

func TestHandleOfferCreatesConnection(t *testing.T) {
	out := &sink{}
	offerer := newTestManager(t, "offerer", func(cfg *Config) { cfg.SendSignal = out.send })
	answerer := newTestManager(t, "answerer", nil)

	if err := offerer.CreateOffer("answerer"); err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	offer := out.last(KindOffer)
	if offer == nil {
		t.Fatal("no offer emitted")
	}

	answerer.HandleOffer("offerer", *offer.SDP)

	if answerer.get("offerer") == nil {
		t.Error("HandleOffer did not create a connection for a first-contact offer")
	}
}
