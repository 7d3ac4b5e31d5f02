// Package credential loads and validates digital identity credentials
// used to authenticate against PJe-style court systems: local PKCS#12
// bundles carrying a private key, or references to identities whose key
// lives in a hardware token or cloud signer.
package credential

import (
	"crypto"
	"crypto/sha1"
	"crypto/x509"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"
	"time"
)

// Kind distinguishes where the credential's private key lives.
type Kind string

const (
	// KindLocalBundle is a password-protected file holding the certificate
	// and its private key.
	KindLocalBundle Kind = "local-bundle"
	// KindHardwareOrCloud is an identity whose private key never leaves a
	// separate trust boundary (smart card, platform store, cloud signer).
	KindHardwareOrCloud Kind = "hardware-or-cloud"
)

// Credential is one loaded identity. It is immutable once constructed;
// a reload replaces the whole value, never merges.
type Credential struct {
	SubjectName  string
	IssuerName   string
	SerialNumber string
	ValidFrom    time.Time
	ValidUntil   time.Time
	// Fingerprint is the SHA-1 hash of the DER certificate, upper-case hex.
	// It is a display identifier, not a trust input.
	Fingerprint string
	Kind        Kind

	cert          *x509.Certificate
	key           crypto.PrivateKey
	intermediates []*x509.Certificate
	source        string
}

// HasKey reports whether local private key material is present.
func (c *Credential) HasKey() bool { return c.key != nil }

// Leaf returns the parsed leaf certificate.
func (c *Credential) Leaf() *x509.Certificate { return c.cert }

// Intermediates returns any additional certificates found in the bundle.
func (c *Credential) Intermediates() []*x509.Certificate { return c.intermediates }

// Source describes where the credential was loaded from (a file path or a
// platform store label).
func (c *Credential) Source() string { return c.source }

func newCredential(cert *x509.Certificate, key crypto.PrivateKey, intermediates []*x509.Certificate, kind Kind, source string) *Credential {
	sum := sha1.Sum(cert.Raw) // #nosec G401 -- display thumbprint, not a trust decision
	return &Credential{
		SubjectName:   cert.Subject.String(),
		IssuerName:    cert.Issuer.String(),
		SerialNumber:  cert.SerialNumber.String(),
		ValidFrom:     cert.NotBefore,
		ValidUntil:    cert.NotAfter,
		Fingerprint:   strings.ToUpper(fmt.Sprintf("%x", sum)),
		Kind:          kind,
		cert:          cert,
		key:           key,
		intermediates: intermediates,
		source:        source,
	}
}

// Info is the outbound description of a loaded credential.
type Info struct {
	Subject      string    `json:"subject"`
	Issuer       string    `json:"issuer"`
	SerialNumber string    `json:"serial_number"`
	ValidFrom    time.Time `json:"valid_from"`
	ValidUntil   time.Time `json:"valid_until"`
	// DaysUntilExpiry is floor-truncated whole days; negative once expired.
	DaysUntilExpiry int    `json:"days_until_expiry"`
	IsValid         bool   `json:"is_valid"`
	Fingerprint     string `json:"fingerprint"`
	Kind            Kind   `json:"kind"`
	Source          string `json:"source,omitempty"`
}

// Store holds at most one loaded credential and its exported transport
// files. The trust window is re-checked at use time, not only at load
// time, because a long-lived process can outlive a short-lived credential.
type Store struct {
	mu     sync.Mutex
	logger *slog.Logger
	now    func() time.Time

	cred *Credential

	exportCert string
	exportKey  string
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger. Defaults to a JSON logger on stderr.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return s
}

// Loaded reports whether a credential is currently held.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred != nil
}

// Current returns the held credential, or nil.
func (s *Store) Current() *Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred
}

// replace installs a freshly loaded credential. Transport files exported
// for the previous credential are released first: they belong to the
// identity being replaced.
func (s *Store) replace(cred *Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exportCert != "" || s.exportKey != "" {
		s.releaseExportsLocked()
	}
	s.cred = cred
	s.logger.Info("credential loaded",
		"kind", cred.Kind,
		"subject", cred.SubjectName,
		"valid_until", cred.ValidUntil,
		"fingerprint", cred.Fingerprint)
}

// Release drops the held credential and removes any exported files.
func (s *Store) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseExportsLocked()
	s.cred = nil
}

// Describe returns the outbound description of the loaded credential.
func (s *Store) Describe() (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return Info{}, ErrNoCredential
	}
	return s.describeLocked(), nil
}

func (s *Store) describeLocked() Info {
	c := s.cred
	now := s.now()
	return Info{
		Subject:         c.SubjectName,
		Issuer:          c.IssuerName,
		SerialNumber:    c.SerialNumber,
		ValidFrom:       c.ValidFrom,
		ValidUntil:      c.ValidUntil,
		DaysUntilExpiry: wholeDays(c.ValidUntil.Sub(now)),
		IsValid:         !now.Before(c.ValidFrom) && !now.After(c.ValidUntil),
		Fingerprint:     c.Fingerprint,
		Kind:            c.Kind,
		Source:          c.source,
	}
}

// wholeDays floor-truncates a duration to whole days, so -1h becomes -1 day.
func wholeDays(d time.Duration) int {
	return int(math.Floor(d.Hours() / 24))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// CheckTrustWindow re-validates the trust window against the current time.
// It returns false with a diagnostic message outside the window, and true
// with a warning-flagged message when expiry is within warnThresholdDays.
func (s *Store) CheckTrustWindow(warnThresholdDays int) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return false, "no credential loaded"
	}
	info := s.describeLocked()

	if !info.IsValid {
		if info.DaysUntilExpiry < 0 {
			return false, fmt.Sprintf("credential expired %d days ago (%s)",
				-info.DaysUntilExpiry, info.ValidUntil.Format("2006-01-02"))
		}
		return false, fmt.Sprintf("credential not yet valid until %s",
			info.ValidFrom.Format(time.RFC3339))
	}
	if info.DaysUntilExpiry <= warnThresholdDays {
		return true, fmt.Sprintf("warning: credential expires in %d days (%s)",
			info.DaysUntilExpiry, info.ValidUntil.Format("2006-01-02"))
	}
	return true, fmt.Sprintf("credential valid for another %d days", info.DaysUntilExpiry)
}

// EnsureUsable is the use-time re-check of the trust window. It returns
// ErrNoCredential, ErrExpired, or ErrNotYetValid when the held credential
// cannot be used for an outbound call right now.
func (s *Store) EnsureUsable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return ErrNoCredential
	}
	now := s.now()
	if now.After(s.cred.ValidUntil) {
		return fmt.Errorf("%w: on %s", ErrExpired, s.cred.ValidUntil.Format(time.RFC3339))
	}
	if now.Before(s.cred.ValidFrom) {
		return fmt.Errorf("%w: until %s", ErrNotYetValid, s.cred.ValidFrom.Format(time.RFC3339))
	}
	return nil
}

// checkWindowAtLoad rejects certificates outside their trust window so a
// load never installs an unusable credential.
func (s *Store) checkWindowAtLoad(cert *x509.Certificate) error {
	now := s.now()
	if cert.NotAfter.Before(now) {
		return fmt.Errorf("%w: on %s", ErrExpired, cert.NotAfter.Format(time.RFC3339))
	}
	if cert.NotBefore.After(now) {
		return fmt.Errorf("%w: until %s", ErrNotYetValid, cert.NotBefore.Format(time.RFC3339))
	}
	return nil
}
