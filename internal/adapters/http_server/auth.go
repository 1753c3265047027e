package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"flex_reviews/internal/auth"
	"flex_reviews/internal/domain"
)

type AuthHandlers struct {
	Sessions   *auth.SessionManager
	Creds      auth.Credentials
	CookieName string
	// Secure selects SameSite=None; Secure cookies for cross-site frontends.
	Secure bool
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<12)).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Request", "body must be {username, password}", "")
		return
	}
	if !a.Creds.Check(req.Username, req.Password) {
		log.Warn().Str("user", req.Username).Str("remote", remoteIP(r)).Msg("failed admin login")
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials", "")
		return
	}
	token, err := a.Sessions.Issue(req.Username)
	if err != nil {
		log.Error().Err(err).Msg("issue session token")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error", "")
		return
	}
	a.setCookie(w, token, a.Sessions.TTL())
	writeJSON(w, http.StatusOK, map[string]string{"user": req.Username, "role": auth.RoleAdmin})
}

func (a *AuthHandlers) logout(w http.ResponseWriter, _ *http.Request) {
	a.setCookie(w, "", -1)
	w.WriteHeader(http.StatusNoContent)
}

func (a *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	c, ok := claimsFrom(r.Context())
	if !ok {
		writeError(w, r, domain.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user": c.Subject, "role": c.Role})
}

func (a *AuthHandlers) setCookie(w http.ResponseWriter, value string, ttl time.Duration) {
	c := &http.Cookie{
		Name:     a.CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if a.Secure {
		c.SameSite = http.SameSiteNoneMode
		c.Secure = true
	}
	if ttl > 0 {
		c.MaxAge = int(ttl.Seconds())
		c.Expires = time.Now().Add(ttl)
	} else {
		c.MaxAge = -1
	}
	http.SetCookie(w, c)
}
