//go:build windows

package credential

import (
	"crypto/x509"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

const personalStoreName = "MY"

// LoadHardwareOrCloud enumerates the current user's personal certificate
// store and installs the first identity found as a key-less credential.
// The private key stays on the token/provider; only certificate metadata
// becomes available.
//
// Fingerprint-scoped selection is not wired to the platform module yet and
// fails closed with ErrNotImplemented instead of silently picking the
// wrong identity.
func (s *Store) LoadHardwareOrCloud(selector string) (*Credential, error) {
	if selector != "" {
		return nil, fmt.Errorf("%w: fingerprint-scoped identity selection", ErrNotImplemented)
	}

	storeName, err := windows.UTF16PtrFromString(personalStoreName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	store, err := windows.CertOpenSystemStore(0, storeName)
	if err != nil {
		return nil, fmt.Errorf("%w: opening system store: %v", ErrPlatformUnsupported, err)
	}
	defer windows.CertCloseStore(store, 0)

	certCtx, err := windows.CertEnumCertificatesInStore(store, nil)
	if err != nil || certCtx == nil {
		return nil, fmt.Errorf("%w: no identity in system store %q", ErrNotFound, personalStoreName)
	}
	defer windows.CertFreeCertificateContext(certCtx)

	der := make([]byte, certCtx.Length)
	copy(der, unsafe.Slice(certCtx.EncodedCert, certCtx.Length))

	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing store certificate: %v", ErrLoad, err)
	}

	if err := s.checkWindowAtLoad(leaf); err != nil {
		return nil, err
	}

	source := fmt.Sprintf("system certificate store (%s, first identity)", personalStoreName)
	cred := newCredential(leaf, nil, nil, KindHardwareOrCloud, source)
	s.replace(cred)
	return cred, nil
}
