// Command meshcall joins a room on the signaling relay and maintains
// direct WebRTC connections to every other participant, logging remote
// streams as they arrive and end. It publishes no media of its own; use
// Manager.StartStreaming from an embedding application to send tracks.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mossy-p/meshcall/config"
	"github.com/mossy-p/meshcall/internal/peerconn"
	"github.com/mossy-p/meshcall/internal/signalclient"
)

func main() {
	cfg := config.LoadClient()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if cfg.Room == "" {
		logger.Error("ROOM is required (room id or share code)")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := signalclient.Dial(ctx, cfg.RelayURL, cfg.Room, cfg.DisplayName, logger)
	if err != nil {
		logger.Error("connecting to relay failed", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	logger.Info("joined room", "room", client.RoomID(), "id", client.SelfID())

	manager, err := peerconn.NewManager(peerconn.Config{
		LocalID:        client.SelfID(),
		ICE:            peerconn.NewICEConfig(cfg.ICE.URLs, cfg.ICE.Username, cfg.ICE.Credential),
		SendSignal:     client.Send,
		MaxICERestarts: cfg.MaxICERestarts,
		Logger:         logger,
		OnRemoteStream: func(remoteID string, stream *peerconn.RemoteStream) {
			logger.Info("remote stream started", "peer", remoteID, "stream", stream.ID())
		},
		OnRemoteStreamEnded: func(remoteID string) {
			logger.Info("remote stream ended", "peer", remoteID)
		},
	})
	if err != nil {
		logger.Error("creating peer connection manager failed", "error", err)
		os.Exit(1)
	}

	// Existing participants offer to newcomers, so a fresh join only
	// needs to answer. When someone else joins after us, we offer.
	client.Attach(manager,
		func(remoteID string) {
			if err := manager.CreateOffer(remoteID); err != nil {
				logger.Warn("offering to new participant failed", "peer", remoteID, "error", err)
			}
		},
		func(remoteID string) {
			logger.Info("participant left", "peer", remoteID)
		},
	)

	<-ctx.Done()
	manager.Cleanup()
}
