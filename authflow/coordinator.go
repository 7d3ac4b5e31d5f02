// Package authflow decides, per outbound call, whether certificate
// transport material or a persisted browser session backs the
// authentication, and runs the credential lifecycle behind a
// single-flight guard so concurrent first calls share one load.
package authflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/awnumar/memguard"
	"golang.org/x/sync/singleflight"

	"github.com/arueira/pjetrust/audit"
	"github.com/arueira/pjetrust/credential"
	"github.com/arueira/pjetrust/session"
)

// Decision is the authentication route chosen for an outbound call.
type Decision string

const (
	// DecisionCertificate: present the exported cert/key pair (mutual TLS).
	DecisionCertificate Decision = "certificate"
	// DecisionSession: reuse the persisted browser session.
	DecisionSession Decision = "session"
	// DecisionLoginRequired: neither route is usable; the caller must run
	// an external login flow and then call CompleteLogin.
	DecisionLoginRequired Decision = "login-required"
)

// TransportFiles are the exported PEM paths handed to the HTTP client.
type TransportFiles struct {
	CertPath string `json:"cert_path"`
	KeyPath  string `json:"key_path"`
}

// Result carries the decision plus whatever material backs it.
type Result struct {
	Decision  Decision        `json:"decision"`
	Transport *TransportFiles `json:"transport,omitempty"`
	Session   *session.Info   `json:"session,omitempty"`
	// Reason explains a fallback or a required login, for the user-facing
	// layer. Empty on the happy certificate path.
	Reason string `json:"reason,omitempty"`
}

// Config selects the credential source the coordinator manages.
type Config struct {
	Kind credential.Kind
	// BundlePath and BundlePassword apply to KindLocalBundle. The password
	// slice is moved into a memguard enclave by New and wiped.
	BundlePath     string
	BundlePassword []byte
	// Selector applies to KindHardwareOrCloud.
	Selector string
	// WarnThresholdDays flags approaching expiry in trust-window checks.
	WarnThresholdDays int
}

// Coordinator owns the lazily initialized credential handle. It replaces
// the ambient lazy singleton: the first caller loads, concurrent callers
// await the same in-flight result.
type Coordinator struct {
	kind     credential.Kind
	path     string
	selector string
	warnDays int

	password *memguard.Enclave

	store    *credential.Store
	sessions *session.Store
	log      *audit.Log
	logger   *slog.Logger
	group    singleflight.Group
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithAudit attaches an audit log. A nil log disables auditing.
func WithAudit(log *audit.Log) Option {
	return func(c *Coordinator) { c.log = log }
}

// WithLogger sets the structured logger. Defaults to a JSON logger on stderr.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// New builds a Coordinator over the two stores. cfg.BundlePassword is
// consumed: it is sealed into an enclave and the caller's slice is wiped.
func New(cfg Config, store *credential.Store, sessions *session.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		kind:     cfg.Kind,
		path:     cfg.BundlePath,
		selector: cfg.Selector,
		warnDays: cfg.WarnThresholdDays,
		store:    store,
		sessions: sessions,
	}
	if len(cfg.BundlePassword) > 0 {
		c.password = memguard.NewEnclave(cfg.BundlePassword)
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return c
}

// load performs the configured load on the credential store. Callers hold
// the single-flight guard.
func (c *Coordinator) load() error {
	var err error
	switch c.kind {
	case credential.KindLocalBundle:
		var pw *memguard.LockedBuffer
		pw, err = c.openPassword()
		if err == nil {
			_, err = c.store.LoadLocalBundle(c.path, pw.Bytes())
			pw.Destroy()
		}
	case credential.KindHardwareOrCloud:
		_, err = c.store.LoadHardwareOrCloud(c.selector)
	default:
		err = fmt.Errorf("unknown credential kind %q", c.kind)
	}
	if err != nil {
		c.auditAppend(audit.ActionCredentialLoadFailed, err.Error())
		return err
	}
	if info, infoErr := c.store.Describe(); infoErr == nil {
		c.auditAppend(audit.ActionCredentialLoaded, info.Fingerprint)
	}
	return nil
}

func (c *Coordinator) openPassword() (*memguard.LockedBuffer, error) {
	if c.password == nil {
		return nil, fmt.Errorf("no bundle password configured")
	}
	pw, err := c.password.Open()
	if err != nil {
		return nil, fmt.Errorf("opening bundle password enclave: %w", err)
	}
	return pw, nil
}

// ensureLoaded loads the credential once; concurrent callers share the
// in-flight load.
func (c *Coordinator) ensureLoaded() error {
	if c.store.Loaded() {
		return nil
	}
	_, err, _ := c.group.Do("credential", func() (any, error) {
		if c.store.Loaded() {
			return nil, nil
		}
		return nil, c.load()
	})
	return err
}

// TransportMaterial returns the exported cert/key paths, loading and
// exporting on first use. The trust window is re-checked on every call;
// repeat calls return the already-exported paths.
func (c *Coordinator) TransportMaterial(ctx context.Context) (TransportFiles, error) {
	if err := ctx.Err(); err != nil {
		return TransportFiles{}, err
	}
	if certPath, keyPath := c.store.ExportedPaths(); certPath != "" {
		if err := c.store.EnsureUsable(); err != nil {
			return TransportFiles{}, err
		}
		return TransportFiles{CertPath: certPath, KeyPath: keyPath}, nil
	}

	v, err, _ := c.group.Do("credential", func() (any, error) {
		if !c.store.Loaded() {
			if err := c.load(); err != nil {
				return nil, err
			}
		}
		if err := c.store.EnsureUsable(); err != nil {
			return nil, err
		}
		certPath, keyPath, err := c.store.ExportForTransportUse()
		if err != nil {
			return nil, err
		}
		c.auditAppend(audit.ActionTransportExported, certPath)
		return TransportFiles{CertPath: certPath, KeyPath: keyPath}, nil
	})
	if err != nil {
		return TransportFiles{}, err
	}
	return v.(TransportFiles), nil
}

// CredentialInfo describes the managed credential, loading it on first use.
func (c *Coordinator) CredentialInfo(ctx context.Context) (credential.Info, error) {
	if err := ctx.Err(); err != nil {
		return credential.Info{}, err
	}
	if err := c.ensureLoaded(); err != nil {
		return credential.Info{}, err
	}
	return c.store.Describe()
}

// CheckTrustWindow loads the credential if needed and re-validates its
// trust window. warnDays <= 0 falls back to the configured threshold.
func (c *Coordinator) CheckTrustWindow(ctx context.Context, warnDays int) (bool, string, error) {
	if err := ctx.Err(); err != nil {
		return false, "", err
	}
	if err := c.ensureLoaded(); err != nil {
		return false, "", err
	}
	if warnDays <= 0 {
		warnDays = c.warnDays
	}
	ok, msg := c.store.CheckTrustWindow(warnDays)
	return ok, msg, nil
}

// Reload discards the held credential and loads it again. Serialized with
// in-flight loads via the same single-flight key.
func (c *Coordinator) Reload(ctx context.Context) (credential.Info, error) {
	if err := ctx.Err(); err != nil {
		return credential.Info{}, err
	}
	_, err, _ := c.group.Do("credential", func() (any, error) {
		c.store.Release()
		c.auditAppend(audit.ActionCredentialReleased, "reload")
		return nil, c.load()
	})
	if err != nil {
		return credential.Info{}, err
	}
	return c.store.Describe()
}

// EnsureAuthenticated picks the authentication route for an outbound
// call: certificate transport when the managed credential can export key
// material, the persisted browser session when it classifies Valid, and
// LoginRequired otherwise.
func (c *Coordinator) EnsureAuthenticated(ctx context.Context) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var certReason string
	if c.kind == credential.KindLocalBundle {
		tf, err := c.TransportMaterial(ctx)
		if err == nil {
			return Result{Decision: DecisionCertificate, Transport: &tf}, nil
		}
		certReason = err.Error()
		c.logger.Warn("certificate route unavailable, falling back to session", "error", err)
	}

	switch c.sessions.Classify() {
	case session.StateValid:
		c.sessions.Touch()
		c.auditAppend(audit.ActionSessionTouched, c.sessions.Name())
		info := c.sessions.Describe()
		return Result{Decision: DecisionSession, Session: &info, Reason: certReason}, nil
	case session.StateExpired:
		c.auditAppend(audit.ActionSessionExpired, c.sessions.Name())
		info := c.sessions.Describe()
		reason := fmt.Sprintf("session %q expired (age %s, max %s)", c.sessions.Name(), info.AgeHuman, info.MaxAge)
		if certReason != "" {
			reason = certReason + "; " + reason
		}
		return Result{Decision: DecisionLoginRequired, Session: &info, Reason: reason}, nil
	default:
		reason := fmt.Sprintf("no session %q; complete a browser login first", c.sessions.Name())
		if certReason != "" {
			reason = certReason + "; " + reason
		}
		return Result{Decision: DecisionLoginRequired, Reason: reason}, nil
	}
}

// CompleteLogin persists fresh session metadata after an external login
// flow succeeded.
func (c *Coordinator) CompleteLogin(authMethod, username string, extra map[string]string) (session.Info, error) {
	m := c.sessions.NewMetadata(authMethod, username, extra)
	if err := c.sessions.WriteMetadata(m); err != nil {
		return session.Info{}, err
	}
	c.auditAppend(audit.ActionSessionCreated, authMethod)
	return c.sessions.Describe(), nil
}

// ClearSession removes all persisted session artifacts.
func (c *Coordinator) ClearSession() error {
	if err := c.sessions.Clear(); err != nil {
		return err
	}
	c.auditAppend(audit.ActionSessionCleared, c.sessions.Name())
	return nil
}

// Shutdown releases exported transport files. Best-effort: it never fails
// the surrounding shutdown path.
func (c *Coordinator) Shutdown() {
	c.store.ReleaseExportedFiles()
	c.auditAppend(audit.ActionTransportReleased, "shutdown")
}

func (c *Coordinator) auditAppend(action audit.Action, detail string) {
	if err := c.log.Append(action, detail); err != nil {
		c.logger.Warn("audit append failed", "action", action, "error", err)
	}
}
