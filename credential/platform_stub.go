//go:build !windows

package credential

import "fmt"

// LoadHardwareOrCloud fails closed on platforms without an accessible
// system certificate store. On these hosts, hardware identities are used
// by exporting the certificate to a local bundle instead.
func (s *Store) LoadHardwareOrCloud(selector string) (*Credential, error) {
	_ = selector
	return nil, fmt.Errorf("%w: system certificate store access requires windows", ErrPlatformUnsupported)
}
