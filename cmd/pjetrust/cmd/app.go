package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/arueira/pjetrust/audit"
	"github.com/arueira/pjetrust/authflow"
	"github.com/arueira/pjetrust/config"
	"github.com/arueira/pjetrust/credential"
	"github.com/arueira/pjetrust/session"
)

// app wires the configured stores and the coordinator for a command run.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *credential.Store
	sessions *session.Store
	coord    *authflow.Coordinator
	log      *audit.Log
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd, cfgFile)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	store := credential.NewStore(credential.WithLogger(logger))
	sessions, err := session.New(cfg.Session.Dir, cfg.Session.Name, cfg.Session.MaxAge,
		session.WithLogger(logger),
		session.WithBrowserLocale(cfg.Session.Locale, cfg.Session.Timezone),
	)
	if err != nil {
		return nil, err
	}

	var log *audit.Log
	if cfg.Audit.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Audit.Path), 0o700); err != nil {
			logger.Warn("creating audit directory, auditing disabled", "error", err)
		} else if log, err = audit.Open(cfg.Audit.Path); err != nil {
			logger.Warn("opening audit log, auditing disabled", "error", err)
			log = nil
		}
	}

	coord := authflow.New(authflow.Config{
		Kind:              cfg.CredentialKind(),
		BundlePath:        cfg.BundlePath(),
		BundlePassword:    []byte(cfg.Credential.BundlePassword),
		Selector:          cfg.Credential.Selector,
		WarnThresholdDays: cfg.Credential.WarnDays,
	}, store, sessions,
		authflow.WithAudit(log),
		authflow.WithLogger(logger),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		sessions: sessions,
		coord:    coord,
		log:      log,
	}, nil
}

func (a *app) close() {
	a.coord.Shutdown()
	if err := a.log.Close(); err != nil {
		a.logger.Warn("closing audit log", "error", err)
	}
}

func printKV(key string, value any) {
	fmt.Printf("%-18s %v\n", key+":", value)
}
