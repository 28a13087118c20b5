// Command vigild is the Vigil recorder daemon: it keeps every configured
// camera continuously recorded, rotating time-aligned segments into the
// sample directory and registering them in the catalog, and serves a small
// status and metrics API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openvigil/vigil/internal/catalog"
	"github.com/openvigil/vigil/internal/clock"
	"github.com/openvigil/vigil/internal/config"
	"github.com/openvigil/vigil/internal/logger"
	"github.com/openvigil/vigil/internal/metrics"
	"github.com/openvigil/vigil/internal/recorder"
	"github.com/openvigil/vigil/internal/source"
	"github.com/openvigil/vigil/internal/storage"
)

var version = "dev"

func main() {
	cfg := config.Load()
	slog.SetDefault(logger.New(cfg.LogLevel, cfg.LogFormat))

	cameras, err := config.LoadCameras(cfg.CamerasPath)
	if err != nil {
		slog.Error("failed to load cameras", "error", err)
		os.Exit(1)
	}

	db, err := catalog.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open catalog", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	dir, err := storage.NewDir(cfg.SampleDir, db, nil)
	if err != nil {
		slog.Error("failed to open sample dir", "error", err)
		os.Exit(1)
	}
	defer dir.Close()

	syncer := storage.NewSyncer(dir, nil)
	go syncer.Run()

	shutdown := &atomic.Bool{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		shutdown.Store(true)
		cancel()
	}()

	slog.Info("vigild starting",
		"version", version,
		"cameras", len(cameras),
		"db", cfg.DBPath,
		"sample_dir", cfg.SampleDir,
		"status", cfg.StatusAddr,
	)

	m := metrics.New()
	env := &recorder.Environment{
		Clock:    clock.Real{},
		Opener:   source.NewTSOpener(shutdown, nil),
		DB:       db,
		Dir:      dir,
		Shutdown: shutdown,
	}

	var wg sync.WaitGroup
	for i := range cameras {
		cam := &cameras[i]
		st := recorder.NewStreamer(env, syncer.Channel(), cam)
		st.SetStats(m.Camera(cam.ShortName))
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.Run()
		}()
	}

	statusSrv := &http.Server{
		Addr:    cfg.StatusAddr,
		Handler: statusHandler(m, db, cameras),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("status server listening", "addr", cfg.StatusAddr)
		if err := statusSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return statusSrv.Shutdown(shutdownCtx)
	})

	// Streamers exit only on the shutdown flag; wait for them, then drain
	// the syncer so every finished segment is durable before exit.
	wg.Wait()
	syncer.Channel().Flush()
	syncer.Close()

	if err := g.Wait(); err != nil {
		slog.Error("status server error", "error", err)
		os.Exit(1)
	}
	slog.Info("vigild stopped")
}
