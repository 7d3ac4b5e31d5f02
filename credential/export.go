package credential

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/awnumar/memguard"
)

// ExportForTransportUse writes the certificate and private key as two
// owner-only PEM files for consumption by an HTTP client configured for
// mutual-TLS auth, and returns their paths.
//
// The export is idempotent: repeated calls while already exported return
// the existing paths rather than re-exporting. Only KindLocalBundle
// credentials carry key material; anything else fails with
// ErrKeyUnavailable.
func (s *Store) ExportForTransportUse() (certPath, keyPath string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cred == nil {
		return "", "", ErrNoCredential
	}
	if !s.cred.HasKey() {
		return "", "", fmt.Errorf("%w: %s credential keeps its key outside this process", ErrKeyUnavailable, s.cred.Kind)
	}
	if s.exportCert != "" && s.exportKey != "" {
		return s.exportCert, s.exportKey, nil
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: s.cred.cert.Raw})

	keyDER, err := x509.MarshalPKCS8PrivateKey(s.cred.key)
	if err != nil {
		return "", "", fmt.Errorf("%w: marshaling private key: %v", ErrKeyUnavailable, err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	memguard.WipeBytes(keyDER)
	defer memguard.WipeBytes(keyPEM)

	certPath, err = writeTransportFile("pjetrust-cert-*.pem", certPEM)
	if err != nil {
		return "", "", err
	}
	keyPath, err = writeTransportFile("pjetrust-key-*.pem", keyPEM)
	if err != nil {
		if rmErr := os.Remove(certPath); rmErr != nil {
			s.logger.Warn("removing orphaned transport cert file", "path", certPath, "error", rmErr)
		}
		return "", "", err
	}

	s.exportCert = certPath
	s.exportKey = keyPath
	s.logger.Info("transport files exported", "cert", certPath, "key", keyPath)
	return certPath, keyPath, nil
}

// writeTransportFile creates an owner-only temp file holding data.
func writeTransportFile(pattern string, data []byte) (string, error) {
	f, err := os.CreateTemp("", pattern) // CreateTemp opens with 0600
	if err != nil {
		return "", fmt.Errorf("creating transport file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("writing transport file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("closing transport file: %w", err)
	}
	return f.Name(), nil
}

// ReleaseExportedFiles deletes the exported transport files. It is
// idempotent and best-effort: deletion failures are logged, never
// propagated, so a shutdown path cannot fail here.
//
// Releasing while another request still holds the paths is a known,
// accepted race; callers sequence release after their transport users
// finish. There is no reference counting.
func (s *Store) ReleaseExportedFiles() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseExportsLocked()
}

func (s *Store) releaseExportsLocked() {
	for _, path := range []string{s.exportCert, s.exportKey} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("removing transport file", "path", path, "error", err)
		}
	}
	s.exportCert = ""
	s.exportKey = ""
}

// ExportedPaths returns the current transport file paths, or empty strings
// when nothing is exported.
func (s *Store) ExportedPaths() (certPath, keyPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exportCert, s.exportKey
}
