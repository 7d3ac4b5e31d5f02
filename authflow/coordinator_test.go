package authflow_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arueira/pjetrust/audit"
	"github.com/arueira/pjetrust/authflow"
	"github.com/arueira/pjetrust/credential"
	"github.com/arueira/pjetrust/session"
)

func bundlePath() string {
	return filepath.Join("..", "credential", "testdata", "valid.pfx")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newSessions(t *testing.T) *session.Store {
	t.Helper()
	s, err := session.New(t.TempDir(), "test", time.Hour, session.WithLogger(quietLogger()))
	require.NoError(t, err)
	return s
}

func newBundleCoordinator(t *testing.T, opts ...authflow.Option) (*authflow.Coordinator, *credential.Store) {
	t.Helper()
	store := credential.NewStore(credential.WithLogger(quietLogger()))
	opts = append(opts, authflow.WithLogger(quietLogger()))
	c := authflow.New(authflow.Config{
		Kind:              credential.KindLocalBundle,
		BundlePath:        bundlePath(),
		BundlePassword:    []byte("changeit"),
		WarnThresholdDays: 30,
	}, store, newSessions(t), opts...)
	t.Cleanup(c.Shutdown)
	return c, store
}

func TestTransportMaterial_LazyLoadAndReuse(t *testing.T) {
	c, store := newBundleCoordinator(t)
	assert.False(t, store.Loaded())

	tf, err := c.TransportMaterial(context.Background())
	require.NoError(t, err)
	assert.True(t, store.Loaded())
	assert.FileExists(t, tf.CertPath)
	assert.FileExists(t, tf.KeyPath)

	again, err := c.TransportMaterial(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tf, again)
}

func TestTransportMaterial_ConcurrentFirstUseSharesOneLoad(t *testing.T) {
	c, _ := newBundleCoordinator(t)

	const callers = 16
	results := make([]authflow.TransportFiles, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.TransportMaterial(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
}

func TestTransportMaterial_WrongPassword(t *testing.T) {
	store := credential.NewStore(credential.WithLogger(quietLogger()))
	c := authflow.New(authflow.Config{
		Kind:           credential.KindLocalBundle,
		BundlePath:     bundlePath(),
		BundlePassword: []byte("wrong"),
	}, store, newSessions(t), authflow.WithLogger(quietLogger()))

	_, err := c.TransportMaterial(context.Background())
	require.ErrorIs(t, err, credential.ErrWrongPassword)
	assert.False(t, store.Loaded())
}

func TestTransportMaterial_MissingPassword(t *testing.T) {
	store := credential.NewStore(credential.WithLogger(quietLogger()))
	c := authflow.New(authflow.Config{
		Kind:       credential.KindLocalBundle,
		BundlePath: bundlePath(),
	}, store, newSessions(t), authflow.WithLogger(quietLogger()))

	_, err := c.TransportMaterial(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no bundle password")
}

func TestTransportMaterial_CanceledContext(t *testing.T) {
	c, _ := newBundleCoordinator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.TransportMaterial(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCredentialInfoAndCheckTrustWindow(t *testing.T) {
	c, _ := newBundleCoordinator(t)

	info, err := c.CredentialInfo(context.Background())
	require.NoError(t, err)
	assert.Contains(t, info.Subject, "Valid Test Identity")
	assert.True(t, info.IsValid)

	ok, msg, err := c.CheckTrustWindow(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, msg, "valid for another")
}

func TestReload(t *testing.T) {
	c, store := newBundleCoordinator(t)

	tf, err := c.TransportMaterial(context.Background())
	require.NoError(t, err)

	info, err := c.Reload(context.Background())
	require.NoError(t, err)
	assert.Contains(t, info.Subject, "Valid Test Identity")

	// The reload released the prior identity's transport files.
	assert.NoFileExists(t, tf.CertPath)
	assert.NoFileExists(t, tf.KeyPath)
	assert.True(t, store.Loaded())
}

func TestEnsureAuthenticated_CertificateRoute(t *testing.T) {
	c, _ := newBundleCoordinator(t)

	res, err := c.EnsureAuthenticated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, authflow.DecisionCertificate, res.Decision)
	require.NotNil(t, res.Transport)
	assert.FileExists(t, res.Transport.CertPath)
	assert.Empty(t, res.Reason)
}

func TestEnsureAuthenticated_SessionFallback(t *testing.T) {
	// A hardware/cloud configuration on a non-windows host cannot take the
	// certificate route, so a valid session carries the call.
	store := credential.NewStore(credential.WithLogger(quietLogger()))
	sessions := newSessions(t)
	c := authflow.New(authflow.Config{
		Kind: credential.KindHardwareOrCloud,
	}, store, sessions, authflow.WithLogger(quietLogger()))

	res, err := c.EnsureAuthenticated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, authflow.DecisionLoginRequired, res.Decision)
	assert.Contains(t, res.Reason, "complete a browser login")

	_, err = c.CompleteLogin("safe_id", "maria", nil)
	require.NoError(t, err)

	res, err = c.EnsureAuthenticated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, authflow.DecisionSession, res.Decision)
	require.NotNil(t, res.Session)
	assert.Equal(t, "safe_id", res.Session.AuthMethod)

	require.NoError(t, c.ClearSession())
	res, err = c.EnsureAuthenticated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, authflow.DecisionLoginRequired, res.Decision)
}

func TestEnsureAuthenticated_ExpiredSession(t *testing.T) {
	store := credential.NewStore(credential.WithLogger(quietLogger()))
	sessions, err := session.New(t.TempDir(), "test", 50*time.Millisecond, session.WithLogger(quietLogger()))
	require.NoError(t, err)
	c := authflow.New(authflow.Config{
		Kind: credential.KindHardwareOrCloud,
	}, store, sessions, authflow.WithLogger(quietLogger()))

	_, err = c.CompleteLogin("cloud", "", nil)
	require.NoError(t, err)

	time.Sleep(120 * time.Millisecond)

	res, err := c.EnsureAuthenticated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, authflow.DecisionLoginRequired, res.Decision)
	assert.Contains(t, res.Reason, "expired")
	require.NotNil(t, res.Session)
	assert.True(t, res.Session.Expired)
}

func TestAuditTrail(t *testing.T) {
	log, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	c, _ := newBundleCoordinator(t, authflow.WithAudit(log))

	_, err = c.TransportMaterial(context.Background())
	require.NoError(t, err)
	_, err = c.CompleteLogin("safe_id", "maria", nil)
	require.NoError(t, err)
	require.NoError(t, c.ClearSession())

	entries, err := log.Recent(10)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	// Newest first.
	assert.Equal(t, audit.ActionSessionCleared, entries[0].Action)

	seen := map[audit.Action]bool{}
	for _, e := range entries {
		seen[e.Action] = true
	}
	assert.True(t, seen[audit.ActionCredentialLoaded])
	assert.True(t, seen[audit.ActionTransportExported])
	assert.True(t, seen[audit.ActionSessionCreated])
}
