// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"flex_reviews/internal/adapters/observability"
	"flex_reviews/internal/app"
	"flex_reviews/internal/domain"
)

type Handlers struct {
	Q *app.QueryService
	M *app.ModerationService

	AdminPageSize  int
	PublicPageSize int
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Field  string `json:"field,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers, a *AuthHandlers) {
	requireAdmin := RequireAdmin(a.Sessions, a.CookieName)

	s.mux.Get("/healthz", health)
	s.mux.Route("/api", func(r chi.Router) {
		r.Use(CSRFGuard)

		r.Get("/health", health)
		r.Get("/healthz", health)

		r.Post("/auth/login", a.login)
		r.Post("/auth/logout", a.logout)
		r.With(requireAdmin).Get("/auth/me", a.me)

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/reviews/hostaway", h.listHostaway)
			r.Get("/reviews/{id}", h.getReview)
			r.Patch("/reviews/{id}/approve", h.approve)
		})

		r.Get("/public/reviews", h.listPublic)
	})
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "flex-reviews-backend",
		"status":  "ok",
		"time":    domain.FormatTime(time.Now()),
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail, field string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail, Field: field}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// writeError maps service errors to problem responses. Only validation
// details reach the client; everything else is logged and summarized.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *domain.ValidationError
		ue *domain.UpstreamFetchError
		pe *domain.PersistenceError
	)
	switch {
	case errors.As(err, &ve):
		writeProblem(w, http.StatusBadRequest, "Invalid Request", ve.Message, ve.Field)
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "review not found", "")
	case errors.Is(err, domain.ErrUnauthorized):
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "login required", "")
	case errors.As(err, &ue):
		log.Error().Err(err).Str("route", routeOf(r)).Str("source", ue.Source).Msg("upstream fetch failed")
		writeProblem(w, http.StatusBadGateway, "Bad Gateway", "review source unavailable", "")
	case errors.As(err, &pe):
		log.Error().Err(err).Str("route", routeOf(r)).Str("op", pe.Op).Msg("persistence failure")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "storage failure", "")
	default:
		log.Error().Err(err).Str("route", routeOf(r)).Str("err_type", observability.LabelErr(err)).Msg("unhandled error")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
// The hash covers page content only; generatedAt changes on every call.
func calcETagAndBody(page domain.ReviewsPage) (string, []byte) {
	body, err := json.Marshal(page)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal page for ETag/body")
		return "", nil
	}
	stable := page
	stable.Meta.GeneratedAt = ""
	content, err := json.Marshal(stable)
	if err != nil {
		return "", body
	}
	sum := sha1.Sum(content)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body
}

func (h *Handlers) listHostaway(w http.ResponseWriter, r *http.Request) {
	q, err := app.ParseReviewQuery(r.URL.Query(), h.AdminPageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Q.ListHostaway(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, out)
}

// reviewID returns the decoded {id} segment. Clients encode the ':' in
// canonical ids, and chi matches on the raw path when one is present.
func reviewID(r *http.Request) (string, error) {
	id, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil {
		return "", domain.NewValidationError("id", "must be a valid path segment")
	}
	return id, nil
}

func (h *Handlers) getReview(w http.ResponseWriter, r *http.Request) {
	id, err := reviewID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rv, err := h.Q.GetReview(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, rv)
}

func (h *Handlers) approve(w http.ResponseWriter, r *http.Request) {
	id, err := reviewID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body app.ApprovalRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(&body); err != nil {
		writeError(w, r, domain.NewValidationError("approved", "approved must be a boolean"))
		return
	}
	if err := body.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	rv, err := h.M.SetApproved(r.Context(), id, *body.Approved)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if c, ok := claimsFrom(r.Context()); ok {
		log.Info().Str("id", rv.ID).Bool("approved", rv.Approved).Str("by", c.Subject).Msg("review moderated")
	}
	writeJSON(w, http.StatusOK, rv)
}

func (h *Handlers) listPublic(w http.ResponseWriter, r *http.Request) {
	q, err := app.ParseReviewQuery(r.URL.Query(), h.PublicPageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Q.ListPublic(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	etag, body := calcETagAndBody(out)
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=30")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write listPublic body")
	}
}
