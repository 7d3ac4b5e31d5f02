// Package session persists and classifies the liveness of a named
// browser-authentication session on local disk. The session directory
// doubles as the automation driver's persistent browser profile, holding
// the cookie store, the browser-state store, and a metadata file.
//
// All operations are synchronous and filesystem-bound; callers schedule
// them off any cooperative event loop. Multiple processes may share a
// session directory — the atomic metadata replace is the only
// cross-process guarantee, and it is the only one needed because sessions
// are read-mostly.
package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/arueira/pjetrust/internal/util"
)

// Artifact names inside a session directory. cookiesFile and stateFile are
// written by the external automation driver; only metadataFile is ours.
const (
	cookiesFile  = "cookies.json"
	stateFile    = "state.json"
	metadataFile = "metadata.json"
)

// State classifies a session. It is derived fresh on every call, never
// cached: Valid decays to Expired purely by elapsed time.
type State string

const (
	StateAbsent  State = "absent"
	StateExpired State = "expired"
	StateValid   State = "valid"
)

// Metadata is the persisted record asserting that a prior browser login
// succeeded. Staleness is derived from CreatedAt and the store's max age;
// it is never stored.
type Metadata struct {
	SessionName string            `json:"session_name"`
	CreatedAt   time.Time         `json:"created_at"`
	LastUsedAt  time.Time         `json:"last_used"`
	AuthMethod  string            `json:"auth_method"`
	Username    string            `json:"username,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Info aggregates classification, raw metadata, and a derived
// human-readable age for the tool layer.
type Info struct {
	Exists      bool              `json:"exists"`
	Expired     bool              `json:"expired"`
	Valid       bool              `json:"valid"`
	SessionName string            `json:"session_name"`
	Path        string            `json:"path"`
	MaxAge      time.Duration     `json:"max_age"`
	AuthMethod  string            `json:"auth_method,omitempty"`
	Username    string            `json:"username,omitempty"`
	CreatedAt   time.Time         `json:"created_at,omitzero"`
	LastUsedAt  time.Time         `json:"last_used,omitzero"`
	Age         time.Duration     `json:"age,omitempty"`
	AgeHuman    string            `json:"age_human,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Store owns one session directory, keyed by session name. No other
// component writes into it.
type Store struct {
	name     string
	dir      string
	maxAge   time.Duration
	locale   string
	timezone string
	logger   *slog.Logger
	now      func() time.Time
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

// WithBrowserLocale overrides the locale and IANA timezone handed to the
// automation driver.
func WithBrowserLocale(locale, timezone string) Option {
	return func(s *Store) {
		s.locale = locale
		s.timezone = timezone
	}
}

// New returns a Store rooted at baseDir/name, creating the directory if
// needed. The name is unicode-normalized before it maps to a directory so
// the same session is found regardless of the platform's input
// composition.
func New(baseDir, name string, maxAge time.Duration, opts ...Option) (*Store, error) {
	if name == "" {
		return nil, fmt.Errorf("session name must not be empty")
	}
	if maxAge <= 0 {
		return nil, fmt.Errorf("session max age must be positive, got %s", maxAge)
	}
	normalized := util.Normalize(name)
	s := &Store{
		name:     normalized,
		dir:      filepath.Join(baseDir, normalized),
		maxAge:   maxAge,
		locale:   defaultLocale,
		timezone: defaultTimezone,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating session directory %s: %w", s.dir, err)
	}
	return s, nil
}

// Name returns the (normalized) session name.
func (s *Store) Name() string { return s.name }

// Dir returns the session directory path.
func (s *Store) Dir() string { return s.dir }

// MaxAge returns the configured maximum session age.
func (s *Store) MaxAge() time.Duration { return s.maxAge }

func (s *Store) metadataPath() string { return filepath.Join(s.dir, metadataFile) }

// NewMetadata builds metadata for a session created now, after an external
// login flow succeeded.
func (s *Store) NewMetadata(authMethod, username string, extra map[string]string) Metadata {
	now := s.now()
	m := Metadata{
		SessionName: s.name,
		CreatedAt:   now,
		LastUsedAt:  now,
		AuthMethod:  authMethod,
		Username:    username,
	}
	if len(extra) > 0 {
		m.Extra = make(map[string]string, len(extra))
		for k, v := range extra {
			m.Extra[k] = v
		}
	}
	return m
}

// ReadMetadata returns the persisted metadata, or nil when the metadata
// artifact is absent or unreadable. Corruption is deliberately treated
// like absence — a broken session must never block re-authentication — so
// it is logged, not surfaced.
func (s *Store) ReadMetadata() *Metadata {
	data, err := os.ReadFile(s.metadataPath())
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("reading session metadata", "path", s.metadataPath(), "error", err)
		}
		return nil
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		s.logger.Warn("corrupt session metadata treated as absent", "path", s.metadataPath(), "error", err)
		return nil
	}
	return &m
}

// WriteMetadata atomically replaces the metadata artifact. A concurrent
// reader never observes a partially written file.
func (s *Store) WriteMetadata(m Metadata) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("creating session directory %s: %w", s.dir, err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session metadata: %w", err)
	}
	if err := util.ReplaceFile(s.metadataPath(), data, 0o600); err != nil {
		return fmt.Errorf("writing session metadata: %w", err)
	}
	s.logger.Info("session metadata saved", "session", s.name, "auth_method", m.AuthMethod)
	return nil
}

// Classify derives the session state right now. Absent when no readable
// metadata exists, Expired when the session's age exceeds the max age,
// Valid otherwise.
func (s *Store) Classify() State {
	m := s.ReadMetadata()
	if m == nil {
		return StateAbsent
	}
	if s.now().Sub(m.CreatedAt) > s.maxAge {
		return StateExpired
	}
	return StateValid
}

// Describe aggregates classification, metadata fields, and a derived
// human-readable age.
func (s *Store) Describe() Info {
	info := Info{
		SessionName: s.name,
		Path:        s.dir,
		MaxAge:      s.maxAge,
	}
	m := s.ReadMetadata()
	if m == nil {
		return info
	}
	age := s.now().Sub(m.CreatedAt)
	info.Exists = true
	info.Expired = age > s.maxAge
	info.Valid = !info.Expired
	info.AuthMethod = m.AuthMethod
	info.Username = m.Username
	info.CreatedAt = m.CreatedAt
	info.LastUsedAt = m.LastUsedAt
	info.Age = age
	info.AgeHuman = humanAge(age)
	info.Extra = m.Extra
	return info
}

// Touch refreshes LastUsedAt after a successful authenticated use. It is
// a no-op when no metadata exists, and it never extends the expiry clock:
// max age counts from CreatedAt only.
func (s *Store) Touch() {
	m := s.ReadMetadata()
	if m == nil {
		return
	}
	m.LastUsedAt = s.now()
	if err := s.WriteMetadata(*m); err != nil {
		s.logger.Warn("refreshing session last-used", "session", s.name, "error", err)
	}
}

// Clear removes all session artifacts. Missing artifacts are not an
// error. The metadata file goes first, so a concurrent reader classifies
// the session Absent before the browser profile files disappear.
func (s *Store) Clear() error {
	var firstErr error
	for _, name := range []string{metadataFile, cookiesFile, stateFile} {
		path := filepath.Join(s.dir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("removing session artifact", "path", path, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("removing %s: %w", path, err)
			}
		}
	}
	if firstErr == nil {
		s.logger.Info("session cleared", "session", s.name)
	}
	return firstErr
}

// humanAge buckets an age as minutes below one hour, hours below one day,
// and days from there on, always floor-truncated.
func humanAge(age time.Duration) string {
	switch {
	case age < time.Hour:
		return fmt.Sprintf("%d minutes", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%d hours", int(age.Hours()))
	default:
		return fmt.Sprintf("%d days", int(age.Hours()/24))
	}
}
