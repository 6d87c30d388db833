package peerconn

import "github.com/pion/webrtc/v4"

// MessageKind discriminates the signaling message variants.
type MessageKind string

const (
	KindOffer     MessageKind = "offer"
	KindAnswer    MessageKind = "answer"
	KindCandidate MessageKind = "candidate"
)

// Message is one signaling datagram addressed to a single remote
// participant. Exactly one of SDP or Candidate is set, matching Kind.
type Message struct {
	Kind      MessageKind
	From      string
	To        string
	SDP       *webrtc.SessionDescription
	Candidate *webrtc.ICECandidateInit
}

// SignalSender delivers a Message to the participant named in msg.To.
// The host application supplies it; the manager never opens or manages
// the signaling channel itself. Messages for the same peer must be
// delivered in the order they were sent.
type SignalSender func(msg Message) error
