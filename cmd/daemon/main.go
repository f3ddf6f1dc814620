// Command daemon runs the lyric export server: the authenticated web
// surface, the export pipeline and the public stage viewer, all over a
// local ProPresenter instance.
//
// It also carries the allow-list management CLI:
//
//	daemon users add <email> [--admin]
//	daemon users remove <email>
//	daemon users list
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/api"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/auth"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/config"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/deck"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/export"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/health"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/jobs"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/log"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/propresenter"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/store"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/supervisor"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/viewer"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const (
	jobRetention    = 30 * time.Minute
	jobGCInterval   = 5 * time.Minute
	sessionReap     = 30 * time.Minute
	shutdownTimeout = 10 * time.Second
)

// announceBearerToken prints the operator token to the terminal, not
// through the logger, so the token never lands in the persisted log
// files.
func announceBearerToken(out io.Writer, token string) {
	fmt.Fprintf(out, "operator bearer token: %s\n", token)
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "users" {
		os.Exit(runUsersCLI(os.Args[2:]))
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	if err := run(); err != nil {
		logger := log.WithComponent("daemon")
		logger.Error().Err(err).Msg("daemon exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	paths := store.NewPaths(cfg.DataDir)
	if err := paths.Ensure(); err != nil {
		return fmt.Errorf("prepare data dir: %w", err)
	}

	fileWriter, err := log.NewDailyFileWriter(paths.LogsDir, cfg.LogRetentionDays)
	if err != nil {
		return fmt.Errorf("open log writer: %w", err)
	}
	defer fileWriter.Close()

	level := "info"
	if cfg.RunMode == "development" {
		level = "debug"
	}
	log.Configure(log.Config{
		Level:   level,
		Output:  io.MultiWriter(os.Stdout, fileWriter),
		Service: "lyric-export",
		Version: version,
	})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The Presenter endpoint defaults come from the environment; a
	// settings PUT overrides them from then on.
	settingsDefaults := store.DefaultSettings()
	settingsDefaults.PresenterHost = cfg.PresenterHost
	settingsDefaults.PresenterPort = cfg.PresenterPort
	settings := store.NewSettingsStoreWith(paths.SettingsFile, settingsDefaults)
	users := store.NewUserStore(paths.UsersFile)
	aliases := store.NewAliasStore(paths.AliasesFile)
	sessions, err := store.NewSessionStore(paths.SessionsDir)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	secrets, err := store.LoadOrCreateSecrets(paths.AuthFile)
	if err != nil {
		return fmt.Errorf("load secrets: %w", err)
	}

	// Every component shares this client, so retargeting the endpoint
	// through the settings API moves the exporter, viewer, supervisor
	// and health checks with it.
	presenterURL := func() string {
		s := settings.Load()
		return fmt.Sprintf("http://%s:%d", config.NormalizeHost(s.PresenterHost), s.PresenterPort)
	}
	client := propresenter.NewDynamic(presenterURL)

	stageDir := filepath.Join(cfg.DataDir, "exports")
	if err := os.MkdirAll(stageDir, 0o700); err != nil {
		return fmt.Errorf("prepare stage dir: %w", err)
	}

	manager := jobs.NewManager(jobRetention)
	exporter := export.New(client, settings, nil, deck.Builder{}, stageDir)
	viewerSvc := viewer.NewService(client)

	healthMgr := health.NewManager(version, cfg.TunnelURL)
	healthMgr.RegisterChecker(health.PresenterChecker{Client: client})

	secure := cfg.TunnelURL != ""
	flow := auth.NewFlow(auth.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.PublicBaseURL() + "/auth/google/callback",
	}, sessions, users, secure)

	server := api.NewServer(api.Deps{
		Config:     cfg,
		Settings:   settings,
		Users:      users,
		Aliases:    aliases,
		Sessions:   sessions,
		Secrets:    secrets,
		Client:     client,
		Jobs:       manager,
		Exporter:   exporter,
		Viewer:     viewerSvc,
		Supervisor: supervisor.New(client),
		Health:     healthMgr,
		OAuth:      flow,
		StaticDir:  config.ParseString("STATIC_DIR", "web"),
		Version:    version,
	})

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.WebHost, cfg.WebPort),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info().
		Str("addr", httpSrv.Addr).
		Str("publicUrl", cfg.PublicBaseURL()).
		Str("presenter", presenterURL()).
		Bool("oauth", cfg.OAuthConfigured()).
		Msg("starting lyric export server")
	announceBearerToken(os.Stdout, secrets.BearerToken)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := viewerSvc.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		manager.RunGC(gctx, jobGCInterval)
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(sessionReap)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := sessions.Reap(); n > 0 {
					logger.Info().Int("removed", n).Msg("expired sessions reaped")
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("daemon stopped")
	return nil
}
