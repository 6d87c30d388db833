// Package peerconn establishes and maintains a mesh of direct WebRTC
// audio/video connections between room participants, coordinated through
// an external signaling channel.
//
// The Manager owns one PeerConnection per remote participant. Offers,
// answers and ICE candidates arrive from the host application via the
// Handle* methods and leave through the injected SignalSender; the host
// is responsible for delivering each Message to the participant named in
// its To field (typically via the room relay in cmd/relay).
//
// Simultaneous offers between a pair of peers are resolved without a
// central arbiter: the peer whose id sorts lexicographically lower rolls
// back its own offer and accepts the remote one, the other keeps its
// offer and drops the incoming one.
//
// Connection health is supervised per peer. A transient disconnect gets
// a grace period to recover; ICE failures trigger an in-place restart;
// anything terminal ends with exactly one OnRemoteStreamEnded callback
// and removal of the connection.
package peerconn
