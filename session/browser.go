package session

// Defaults for the browser profile handed to the automation driver. PJe
// portals render in Brazilian Portuguese and stamp server-side timestamps
// in São Paulo time.
const (
	defaultLocale   = "pt-BR"
	defaultTimezone = "America/Sao_Paulo"

	viewportWidth  = 1920
	viewportHeight = 1080
)

// BrowserConfig describes the persistent browser profile the external
// automation driver constructs for this session. UserDataDir is the
// session's own directory — profiles are never shared across session
// names.
type BrowserConfig struct {
	UserDataDir       string `json:"user_data_dir"`
	AcceptDownloads   bool   `json:"accept_downloads"`
	IgnoreHTTPSErrors bool   `json:"ignore_https_errors"`
	ViewportWidth     int    `json:"viewport_width"`
	ViewportHeight    int    `json:"viewport_height"`
	Locale            string `json:"locale"`
	TimezoneID        string `json:"timezone_id"`
}

// BrowserContextConfig returns the fixed profile descriptor for this
// session. HTTPS errors stay fatal: a court portal behind a broken TLS
// chain is not something to click through.
func (s *Store) BrowserContextConfig() BrowserConfig {
	return BrowserConfig{
		UserDataDir:       s.dir,
		AcceptDownloads:   true,
		IgnoreHTTPSErrors: false,
		ViewportWidth:     viewportWidth,
		ViewportHeight:    viewportHeight,
		Locale:            s.locale,
		TimezoneID:        s.timezone,
	}
}
