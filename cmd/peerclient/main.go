package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"peer_client/native/internal/api"
	"peer_client/native/internal/config"
	"peer_client/native/internal/media"
	"peer_client/native/internal/session"
	sigclient "peer_client/native/internal/signal"
	"peer_client/native/internal/webrtc"

	"github.com/pion/logging"
)

const helpText = `peerclient - Join a WebRTC conference with service-issued ICE credentials

Usage:
  peerclient [options]

The client reads its application identity from the identity file, exchanges
it for an access token and ICE servers, then joins the conference through
the signaling server and plays back the remote peer's media.

Identity file (key = value, default peerclient.conf):
  appID   = <application id>
  keyID   = <signing key id>
  secret  = <shared secret>

Environment Variables:
  PEER_AUTH_URL       Authentication endpoint (required)
  PEER_SIGNAL_URL     Signaling WebSocket URL (required)
  PEER_IDENTITY_FILE  Identity file path (default peerclient.conf)
  PEER_AUTH_TIMEOUT   Credential exchange timeout (default 10s)
  PEER_PING_INTERVAL  Signaling ping interval (default 20s)
  PION_LOG_DEBUG      Enable debug logs, e.g. "all" or "resolver,signal"

Options:
  -h, --help  Show this help message
`

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Print(helpText)
		os.Exit(0)
	}

	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] %v", err)
	}

	lf := logging.NewDefaultLoggerFactory()
	logger := lf.NewLogger("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("received %s, shutting down", sig)
		cancel()
	}()

	// Step 1: Read identity
	identity := config.NewIdentityStore(cfg.IdentityFile).GetIdentity()
	logger.Infof("identity: app=%s conf=%s local=%s", identity.AppID, identity.ConfID, identity.LocalID)

	// Step 2: Resolve credentials and ICE servers
	resolver := api.NewClient(api.Config{
		URL:           cfg.AuthURL,
		HTTPClient:    &http.Client{Timeout: cfg.AuthTimeout},
		LoggerFactory: lf,
	})
	resolveCtx, resolveCancel := context.WithTimeout(ctx, cfg.AuthTimeout)
	res := <-api.ResolveAsync(resolveCtx, resolver, identity)
	resolveCancel()
	if res.Err != nil {
		log.Fatalf("[main] resolve credentials: %v", res.Err)
	}
	bundle := res.Bundle
	if !bundle.Valid(time.Now()) {
		logger.Warnf("access token already expired at %s", bundle.Credential.ExpiresAt().Format(time.RFC3339))
	}

	// Step 3: Create peer connection
	peer, err := webrtc.NewPeer(webrtc.PeerConfig{
		ICEServers:    bundle.ICEServers,
		LocalID:       identity.LocalID,
		ConfID:        identity.ConfID,
		LoggerFactory: lf,
	})
	if err != nil {
		log.Fatalf("[main] create peer: %v", err)
	}

	if err := peer.AddTransceivers(); err != nil {
		log.Fatalf("[main] add transceivers: %v", err)
	}

	// Step 4: Create the media engine
	engine := media.NewPlayback(lf)
	if err := engine.CreatePlayback(); err != nil {
		log.Fatalf("[main] create playback: %v", err)
	}

	// Step 5: Create session (implements domain.Handler) and signal client
	sess := session.New(peer, engine, cancel, lf)
	sc := sigclient.NewClient(sigclient.Config{
		URL:           cfg.SignalURL,
		Bundle:        bundle,
		Identity:      identity,
		PingInterval:  cfg.PingInterval,
		LoggerFactory: lf,
	}, sess)
	sess.SetSignaler(sc)

	peer.SetOnICECandidate(func(sdpMid string, sdpMLineIndex int, candidate string) {
		sc.SendICECandidate(sdpMid, sdpMLineIndex, candidate)
	})

	// Step 6: Connect signaling (AUTH → JOIN → PEER_IN → offer flow)
	if err := sc.Connect(ctx); err != nil {
		log.Fatalf("[main] signal connect: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-sc.Done():
		logger.Warn("signaling connection closed")
	}
	logger.Info("shutting down")

	sc.Close()
	peer.Close()
	for id, st := range engine.Stats() {
		logger.Infof("source %s: %d packets, %d bytes", id, st.Packets, st.Bytes)
	}
	if err := engine.ReleasePlayback(); err != nil {
		logger.Warnf("release playback: %v", err)
	}

	logger.Info("done")
}
