package credential

import (
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// LoadLocalBundle decodes a password-protected PKCS#12 bundle and installs
// its leaf certificate, private key (when the bundle carries one), and any
// intermediate certificates as the held credential. A failed load leaves a
// previously loaded credential untouched.
//
// The error discriminates ErrNotFound, ErrWrongPassword (only when the
// decoder signals a MAC/password failure), ErrExpired, ErrNotYetValid, and
// ErrLoad for any other malformed data.
func (s *Store) LoadLocalBundle(path string, password []byte) (*Credential, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: stat %s: %v", ErrLoad, path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrLoad, path, err)
	}

	key, leaf, intermediates, err := pkcs12.DecodeChain(data, string(password))
	if err != nil {
		switch {
		case errors.Is(err, pkcs12.ErrIncorrectPassword):
			return nil, fmt.Errorf("%w: %s", ErrWrongPassword, path)
		case strings.Contains(err.Error(), "private key missing"):
			// A bundle may carry certificates only. The credential is
			// installed without key material; key use fails later with
			// ErrKeyUnavailable instead of rejecting the load here.
			leaf, intermediates, err = decodeCertsOnly(data, string(password))
			if err != nil {
				return nil, fmt.Errorf("%w: decoding %s: %v", ErrLoad, path, err)
			}
		default:
			return nil, fmt.Errorf("%w: decoding %s: %v", ErrLoad, path, err)
		}
	}
	if leaf == nil {
		return nil, fmt.Errorf("%w: no certificate in bundle %s", ErrLoad, path)
	}

	if err := s.checkWindowAtLoad(leaf); err != nil {
		return nil, err
	}

	cred := newCredential(leaf, key, intermediates, KindLocalBundle, path)
	s.replace(cred)
	return cred, nil
}

// decodeCertsOnly extracts the certificates from a bundle with no key
// bag. The first certificate is the leaf, the rest are intermediates.
func decodeCertsOnly(data []byte, password string) (*x509.Certificate, []*x509.Certificate, error) {
	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return nil, nil, err
	}
	var certs []*x509.Certificate
	for _, block := range blocks {
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing bundle certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, nil, errors.New("no certificate in bundle")
	}
	return certs[0], certs[1:], nil
}

// ValidateBundleFile checks a bundle file without retaining it: it loads
// into a throwaway Store and reports the trust-window verdict plus the
// credential description. The returned Info is nil when the load itself
// failed.
func ValidateBundleFile(path string, password []byte, warnThresholdDays int) (bool, string, *Info) {
	s := NewStore(WithLogger(discardLogger()))
	if _, err := s.LoadLocalBundle(path, password); err != nil {
		return false, err.Error(), nil
	}
	defer s.Release()

	ok, msg := s.CheckTrustWindow(warnThresholdDays)
	info, err := s.Describe()
	if err != nil {
		return false, err.Error(), nil
	}
	return ok, msg, &info
}
