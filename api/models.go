package api

// ErrorResponse is the JSON body for all error statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CheckResponse reports a trust-window verdict.
type CheckResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// LoginRequest records a completed external login flow.
type LoginRequest struct {
	AuthMethod string            `json:"auth_method"`
	Username   string            `json:"username,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// ClearResponse confirms session artifact removal.
type ClearResponse struct {
	Cleared bool `json:"cleared"`
}
