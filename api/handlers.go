package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/arueira/pjetrust/audit"
)

func (a *API) handleCredentialInfo(w http.ResponseWriter, r *http.Request) {
	info, err := a.coord.CredentialInfo(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (a *API) handleCredentialCheck(w http.ResponseWriter, r *http.Request) {
	warnDays := 0
	if raw := r.URL.Query().Get("warn_days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "warn_days must be a non-negative integer")
			return
		}
		warnDays = n
	}
	valid, msg, err := a.coord.CheckTrustWindow(r.Context(), warnDays)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CheckResponse{Valid: valid, Message: msg})
}

func (a *API) handleCredentialReload(w http.ResponseWriter, r *http.Request) {
	info, err := a.coord.Reload(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	a.logger.Info("credential reloaded", "fingerprint", info.Fingerprint)
	writeJSON(w, http.StatusOK, info)
}

func (a *API) handleAuthDecision(w http.ResponseWriter, r *http.Request) {
	result, err := a.coord.EnsureAuthenticated(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.sessions.Describe())
}

func (a *API) handleBrowserConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.sessions.BrowserContextConfig())
}

func (a *API) handleSessionLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AuthMethod == "" {
		writeError(w, http.StatusBadRequest, "auth_method is required")
		return
	}
	info, err := a.coord.CompleteLogin(req.AuthMethod, req.Username, req.Extra)
	if err != nil {
		mapError(w, err)
		return
	}
	a.logger.Info("session login recorded", "session", info.SessionName, "auth_method", req.AuthMethod)
	writeJSON(w, http.StatusCreated, info)
}

func (a *API) handleSessionTouch(w http.ResponseWriter, r *http.Request) {
	a.sessions.Touch()
	writeJSON(w, http.StatusOK, a.sessions.Describe())
}

func (a *API) handleSessionClear(w http.ResponseWriter, r *http.Request) {
	if err := a.coord.ClearSession(); err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ClearResponse{Cleared: true})
}

func (a *API) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := a.log.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
