package credential

import "errors"

var (
	// ErrNotFound indicates the bundle file or platform identity does not exist.
	ErrNotFound = errors.New("credential not found")
	// ErrWrongPassword indicates the bundle's MAC/password check failed.
	// It is never returned for generic decode corruption.
	ErrWrongPassword = errors.New("wrong bundle password")
	// ErrExpired indicates the certificate's validity window has ended.
	ErrExpired = errors.New("credential expired")
	// ErrNotYetValid indicates the certificate's validity window has not started.
	ErrNotYetValid = errors.New("credential not yet valid")
	// ErrKeyUnavailable indicates the operation needs local private key
	// material the loaded credential does not carry.
	ErrKeyUnavailable = errors.New("private key unavailable")
	// ErrPlatformUnsupported indicates the host has no accessible platform
	// identity store.
	ErrPlatformUnsupported = errors.New("platform identity store unsupported")
	// ErrNotImplemented indicates a hardware-store capability that fails
	// closed rather than pretending to succeed.
	ErrNotImplemented = errors.New("not implemented")
	// ErrNoCredential indicates no credential is currently loaded.
	ErrNoCredential = errors.New("no credential loaded")
	// ErrLoad is the catch-all for malformed bundle data.
	ErrLoad = errors.New("credential load failed")
)
