package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"agentarena/pkg/arena"
	"agentarena/pkg/config"
	"agentarena/pkg/registry"
	"agentarena/pkg/relay"
	"agentarena/pkg/sim"
	"agentarena/pkg/store"
	"agentarena/pkg/wire"
)

func main() {
	setupLogging()
	go sweepLimiters()

	cfg, err := config.Load(os.Getenv("ARENA_CONFIG"))
	if err != nil {
		ErrorLog.Fatal(err)
	}
	if cfg.PublicURL == "" {
		cfg.PublicURL = guessPublicURL(cfg.Listen)
	}

	// One server per data dir; a second instance would corrupt the
	// registry snapshot and the event log.
	lock := flock.New(filepath.Join(cfg.DataDir, "world.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		ErrorLog.Fatalf("lock %s: %v", cfg.DataDir, err)
	}
	if !locked {
		ErrorLog.Fatalf("another server already owns %s", cfg.DataDir)
	}
	defer lock.Unlock()

	ident, err := store.LoadOrCreateIdentity(cfg.DataDir, cfg.RoomName)
	if err != nil {
		ErrorLog.Fatal(err)
	}
	InfoLog.Printf("ARENA BOOT: room %s (%q)", ident.RoomID, cfg.RoomName)

	reg := registry.New(cfg.DataDir, ErrorLog.Printf)
	if err := reg.Load(); err != nil {
		ErrorLog.Fatalf("registry: %v", err)
	}

	evstore, err := store.Open(store.Config{
		Path:      filepath.Join(cfg.DataDir, "events.db"),
		FlushMs:   cfg.Store.FlushMs,
		BatchSize: cfg.Store.BatchSize,
	}, ident.RoomID, InfoLog.Printf, ErrorLog.Printf)
	if err != nil {
		ErrorLog.Fatal(err)
	}
	defer evstore.Close()

	pub, err := relay.New(relay.Config{
		Mode:    cfg.Relay.Mode,
		URL:     cfg.Relay.URL,
		NATSURL: cfg.Relay.NATSURL,
		Subject: cfg.Relay.Subject,
	}, ErrorLog.Printf)
	if err != nil {
		ErrorLog.Fatal(err)
	}

	obstacles := make([]wire.Obstacle, 0, len(cfg.Obstacles))
	for _, o := range cfg.Obstacles {
		obstacles = append(obstacles, wire.Obstacle{X: o.X, Z: o.Z, Radius: o.Radius})
	}

	hub := sim.New(sim.Options{
		RoomID:    ident.RoomID,
		RoomName:  cfg.RoomName,
		PublicURL: cfg.PublicURL,
		Capacity:  cfg.RoomCapacity,
		Obstacles: obstacles,
		Durations: phaseDurations(cfg),
		Registry:  reg,
		Relay:     pub,
		Store:     evstore,
		InfoLog:   InfoLog.Printf,
		ErrorLog:  ErrorLog.Printf,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: buildRouter(hub, cfg),
		// No WriteTimeout: /ws responses live for the whole connection.
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          ErrorLog,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return reg.RunFlusher(gctx) })
	g.Go(func() error { return evstore.Run(gctx) })
	g.Go(func() error { return pub.Run(gctx) })
	g.Go(func() error {
		InfoLog.Printf("listening on %s (ipc %s/ipc, preview %s/)", cfg.Listen, cfg.PublicURL, cfg.PublicURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		ErrorLog.Printf("shutdown: %v", err)
	}
	InfoLog.Println("world stopped")
}

func phaseDurations(cfg *config.Config) arena.Durations {
	return arena.Durations{
		LobbyMs:    cfg.Phases.LobbyMs,
		BattleMs:   cfg.Phases.BattleMs,
		ShowdownMs: cfg.Phases.ShowdownMs,
	}
}

func guessPublicURL(listen string) string {
	if strings.HasPrefix(listen, ":") {
		return "http://localhost" + listen
	}
	return "http://" + listen
}
