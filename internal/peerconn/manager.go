package peerconn

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/intervalpli"
	"github.com/pion/webrtc/v4"
)

// defaultGracePeriod is how long a disconnected connection may stay
// disconnected before it is declared failed and torn down.
const defaultGracePeriod = 10 * time.Second

// Config configures a Manager.
type Config struct {
	// LocalID is this participant's id. It doubles as the glare
	// tie-breaker: comparison with remote ids is lexicographic and
	// significant.
	LocalID string

	// ICE lists the STUN/TURN servers used when establishing
	// connections.
	ICE ICEConfig

	// SendSignal delivers outbound signaling messages. Required.
	SendSignal SignalSender

	// OnRemoteStream fires when a connection's first inbound media
	// stream becomes available, and again if renegotiation produces a
	// new stream.
	OnRemoteStream func(remoteID string, stream *RemoteStream)

	// OnRemoteStreamEnded fires exactly once per connection at terminal
	// teardown. It is the signal to drop the participant's tile.
	OnRemoteStreamEnded func(remoteID string)

	// GracePeriod overrides the disconnection grace period. Zero means
	// the default.
	GracePeriod time.Duration

	// MaxICERestarts caps consecutive in-place ICE restarts per
	// connection before escalating to teardown. Zero means no cap; the
	// disconnect grace period then remains the only terminal path for
	// oscillating connections.
	MaxICERestarts int

	// Logger receives structured diagnostics. Defaults to slog.Default.
	Logger *slog.Logger
}

// Manager composes the connection registry, media binder, negotiator and
// health monitor behind the public lifecycle surface. One Manager serves
// one room session.
type Manager struct {
	localID             string
	ice                 ICEConfig
	api                 *webrtc.API
	send                SignalSender
	onRemoteStream      func(string, *RemoteStream)
	onRemoteStreamEnded func(string)
	gracePeriod         time.Duration
	maxICERestarts      int
	log                 *slog.Logger

	// mu guards the registry map and local stream attachment. It is
	// never held across offer/answer generation.
	mu    sync.Mutex
	conns map[string]*PeerConnection
	local *LocalStream
}

// NewManager creates a Manager for one room session.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.LocalID == "" {
		return nil, errors.New("peerconn: LocalID is required")
	}
	if cfg.SendSignal == nil {
		return nil, errors.New("peerconn: SendSignal is required")
	}

	api, err := newAPI()
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gracePeriod := cfg.GracePeriod
	if gracePeriod == 0 {
		gracePeriod = defaultGracePeriod
	}

	return &Manager{
		localID:             cfg.LocalID,
		ice:                 cfg.ICE,
		api:                 api,
		send:                cfg.SendSignal,
		onRemoteStream:      cfg.OnRemoteStream,
		onRemoteStreamEnded: cfg.OnRemoteStreamEnded,
		gracePeriod:         gracePeriod,
		maxICERestarts:      cfg.MaxICERestarts,
		log:                 logger.With("component", "peerconn", "local", cfg.LocalID),
		conns:               make(map[string]*PeerConnection),
	}, nil
}

// LocalID returns this participant's id.
func (m *Manager) LocalID() string {
	return m.localID
}

// RemovePeer tears down the connection to remoteID and evicts it from
// the registry. Calling it for an id with no connection is a no-op.
func (m *Manager) RemovePeer(remoteID string) {
	conn := m.get(remoteID)
	if conn == nil {
		return
	}
	m.teardown(conn)
}

// Cleanup tears down every connection and clears the registry. Intended
// for room exit.
func (m *Manager) Cleanup() {
	for _, conn := range m.snapshot() {
		m.teardown(conn)
	}
}

// teardown closes conn's transport, evicts it from the registry and
// fires OnRemoteStreamEnded. Idempotent: repeated calls, and calls
// racing with health-driven teardown, collapse to one. In-flight
// negotiation steps for the connection fail or become no-ops once the
// transport is closed; that is expected and absorbed by their callers.
func (m *Manager) teardown(conn *PeerConnection) {
	conn.healthMu.Lock()
	if conn.closed {
		conn.healthMu.Unlock()
		return
	}
	conn.closed = true
	if conn.graceTimer != nil {
		conn.graceTimer.Stop()
		conn.graceTimer = nil
	}
	ended := conn.ended
	conn.ended = true
	conn.healthMu.Unlock()

	if err := conn.pc.Close(); err != nil {
		m.log.Debug("closing transport", "peer", conn.remoteID, "error", err)
	}
	m.evict(conn)

	m.log.Info("peer connection torn down", "peer", conn.remoteID)
	if !ended && m.onRemoteStreamEnded != nil {
		m.onRemoteStreamEnded(conn.remoteID)
	}
}

// newAPI builds the shared pion API: default codecs and interceptors,
// plus an interval-PLI receiver interceptor so stalled inbound video
// recovers with a keyframe without the host doing RTCP bookkeeping.
func newAPI() (*webrtc.API, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("registering codecs: %w", err)
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, fmt.Errorf("registering interceptors: %w", err)
	}

	pli, err := intervalpli.NewReceiverInterceptor()
	if err != nil {
		return nil, fmt.Errorf("creating PLI interceptor: %w", err)
	}
	registry.Add(pli)

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(registry),
	), nil
}
