package httpserver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"flex_reviews/internal/adapters/hostaway"
	httpserver "flex_reviews/internal/adapters/http_server"
	"flex_reviews/internal/app"
	"flex_reviews/internal/auth"
	"flex_reviews/internal/domain"
	"flex_reviews/internal/storage/memory"
)

const mockPayload = `{"status":"success","result":[
 {"id":7453,"type":"host-to-guest","status":"published","rating":null,"publicReview":"Shane and family are wonderful!",
  "privateFeedback":"quiet guests","reviewCategory":[{"category":"cleanliness","rating":10}],
  "submittedAt":"2020-08-21 22:45:14","guestName":"Shane Finkelstein","listingName":"2B N1 A - 29 Shoreditch Heights","listingMapId":70985,"channelId":1},
 {"id":7454,"type":"guest-to-host","status":"published","rating":4,"publicReview":"Great location",
  "submittedAt":"2021-02-10 09:00:00","guestName":"Ana","listingMapId":70985,"channelId":2},
 "garbage",
 {"id":7455,"type":"guest-to-host","rating":2,"publicReview":"Noisy at night",
  "submittedAt":"2021-03-01 18:30:00","guestName":"Tom","listingMapId":80001,"channelId":3}
]}`

type testEnv struct {
	h     http.Handler
	store *memory.Store
}

func newEnv(t *testing.T) testEnv {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hostaway_mock.json")
	require.NoError(t, os.WriteFile(path, []byte(mockPayload), 0o600))

	store := memory.New()
	src := hostaway.NewFileSource(path)
	norm := app.NewNormalizer(app.ChannelMap{}, app.DateNormalizer{}, nil)

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)

	srv := httpserver.New(httpserver.Options{AllowedOrigins: []string{"http://localhost:3000"}})
	srv.MountHandlers(
		&httpserver.Handlers{
			Q:              app.NewQueryService(store, src, norm, nil, time.Minute),
			M:              app.NewModerationService(store, src, norm, nil),
			AdminPageSize:  50,
			PublicPageSize: 12,
		},
		&httpserver.AuthHandlers{
			Sessions:   auth.NewSessionManager("0123456789abcdef", time.Hour),
			Creds:      auth.Credentials{User: "manager", PassHash: string(hash)},
			CookieName: "flex_admin",
		},
	)
	return testEnv{h: srv.Mux(), store: store}
}

func (e testEnv) do(t *testing.T, method, target, body string, mod func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if mod != nil {
		mod(req)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func (e testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/login", `{"username":"manager","password":"hunter22"}`, fetchHeader)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == "flex_admin" {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func fetchHeader(r *http.Request) { r.Header.Set("X-Requested-With", "fetch") }

func asAdmin(c *http.Cookie, extra ...func(*http.Request)) func(*http.Request) {
	return func(r *http.Request) {
		r.AddCookie(c)
		for _, f := range extra {
			f(r)
		}
	}
}

func decodePage(t *testing.T, rec *httptest.ResponseRecorder) domain.ReviewsPage {
	t.Helper()
	var page domain.ReviewsPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page), rec.Body.String())
	return page
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var p map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	for _, path := range []string{"/healthz", "/api/health", "/api/healthz"} {
		rec := e.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "flex-reviews-backend", body["service"])
		assert.Equal(t, "ok", body["status"])
	}
}

func TestAdminRoutesRequireSession(t *testing.T) {
	e := newEnv(t)
	for _, path := range []string{"/api/reviews/hostaway", "/api/reviews/hostaway:7453", "/api/auth/me"} {
		rec := e.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	bad := &http.Cookie{Name: "flex_admin", Value: "not-a-jwt"}
	rec := e.do(t, http.MethodGet, "/api/reviews/hostaway", "", asAdmin(bad))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/auth/login", `{"username":"manager","password":"nope"}`, fetchHeader)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/auth/login", `{"username":"manager","password":"hunter22"}`, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "missing CSRF header")

	c := e.login(t)
	assert.True(t, c.HttpOnly)

	rec = e.do(t, http.MethodGet, "/api/auth/me", "", asAdmin(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":"manager","role":"admin"}`, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/api/auth/logout", "", fetchHeader)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.True(t, cleared[0].MaxAge < 0)
}

func TestListHostaway(t *testing.T) {
	e := newEnv(t)
	c := e.login(t)

	rec := e.do(t, http.MethodGet, "/api/reviews/hostaway", "", asAdmin(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decodePage(t, rec)
	assert.Equal(t, 3, page.Meta.Count)
	assert.Equal(t, 50, page.Meta.Limit)
	require.Len(t, page.Reviews, 3)
	assert.Equal(t, "hostaway:7455", page.Reviews[0].ID, "newest first")

	rec = e.do(t, http.MethodGet, "/api/reviews/hostaway?channel=booking&minRating=3", "", asAdmin(c))
	page = decodePage(t, rec)
	require.Len(t, page.Reviews, 1)
	assert.Equal(t, "hostaway:7454", page.Reviews[0].ID)

	rec = e.do(t, http.MethodGet, "/api/reviews/hostaway?limit=500", "", asAdmin(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "limit", decodeProblem(t, rec)["field"])
}

func TestApproveFlow_PublicSeesOnlyApproved(t *testing.T) {
	e := newEnv(t)
	c := e.login(t)

	rec := e.do(t, http.MethodGet, "/api/public/reviews", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodePage(t, rec).Reviews)

	rec = e.do(t, http.MethodPatch, "/api/reviews/hostaway:7453/approve", `{"approved":true}`, asAdmin(c, fetchHeader))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var approved domain.Review
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &approved))
	assert.True(t, approved.Approved)
	assert.Equal(t, "hostaway:7453", approved.ID)

	rec = e.do(t, http.MethodGet, "/api/reviews/hostaway:7453", "", asAdmin(c))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/public/reviews", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodePage(t, rec)
	require.Len(t, page.Reviews, 1)
	assert.Equal(t, "hostaway:7453", page.Reviews[0].ID)
	assert.Equal(t, 12, page.Meta.Limit)
	assert.Nil(t, page.Reviews[0].PrivateFeedback)
	assert.NotContains(t, rec.Body.String(), "quiet guests")

	rec = e.do(t, http.MethodGet, "/api/public/reviews?channel=booking", "", nil)
	assert.Empty(t, decodePage(t, rec).Reviews)
}

func TestApprove_Errors(t *testing.T) {
	e := newEnv(t)
	c := e.login(t)

	rec := e.do(t, http.MethodPatch, "/api/reviews/hostaway:7453/approve", `{"approved":"yes"}`, asAdmin(c, fetchHeader))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "approved", decodeProblem(t, rec)["field"])

	rec = e.do(t, http.MethodPatch, "/api/reviews/hostaway:7453/approve", `{}`, asAdmin(c, fetchHeader))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPatch, "/api/reviews/hostaway:1/approve", `{"approved":true}`, asAdmin(c, fetchHeader))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPatch, "/api/reviews/hostaway:7453/approve", `{"approved":true}`, asAdmin(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	_, err := e.store.Get(context.Background(), "hostaway:7453")
	assert.ErrorIs(t, err, domain.ErrNotFound, "rejected requests must not persist anything")
}

func TestReviewRoutes_EncodedID(t *testing.T) {
	e := newEnv(t)
	c := e.login(t)

	rec := e.do(t, http.MethodPatch, "/api/reviews/hostaway%3A7453/approve", `{"approved":true}`, asAdmin(c, fetchHeader))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var approved domain.Review
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &approved))
	assert.Equal(t, "hostaway:7453", approved.ID)
	assert.True(t, approved.Approved)

	rec = e.do(t, http.MethodGet, "/api/reviews/hostaway%3A7453", "", asAdmin(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"quiet guests"`)

	stored, err := e.store.Get(context.Background(), "hostaway:7453")
	require.NoError(t, err)
	assert.True(t, stored.Approved)

	malformed := func(r *http.Request) {
		r.URL.Path = "/api/reviews/%ZZ/approve"
		r.URL.RawPath = "/api/reviews/%ZZ/approve"
	}
	rec = e.do(t, http.MethodPatch, "/api/reviews/x/approve", `{"approved":true}`, asAdmin(c, fetchHeader, malformed))
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "id", decodeProblem(t, rec)["field"])
}

func TestGetReview_PrivateFeedbackNull(t *testing.T) {
	e := newEnv(t)
	c := e.login(t)

	rec := e.do(t, http.MethodGet, "/api/reviews/hostaway:7454", "", asAdmin(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	v, ok := body["privateFeedback"]
	assert.True(t, ok, "privateFeedback must be sent as null")
	assert.Nil(t, v)
}

func TestPublic_ETag(t *testing.T) {
	e := newEnv(t)
	c := e.login(t)
	rec := e.do(t, http.MethodPatch, "/api/reviews/hostaway:7454/approve", `{"approved":true}`, asAdmin(c, fetchHeader))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/public/reviews", "", nil)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rec = e.do(t, http.MethodGet, "/api/public/reviews", "", func(r *http.Request) { r.Header.Set("If-None-Match", etag) })
	assert.Equal(t, http.StatusNotModified, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/public/reviews?sort=bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "sort", decodeProblem(t, rec)["field"])
}

func TestUpstreamFailureIs502(t *testing.T) {
	store := memory.New()
	src := hostaway.NewFileSource(filepath.Join(t.TempDir(), "missing.json"))
	norm := app.NewNormalizer(app.ChannelMap{}, app.DateNormalizer{}, nil)
	sessions := auth.NewSessionManager("0123456789abcdef", time.Hour)

	srv := httpserver.New(httpserver.Options{})
	srv.MountHandlers(
		&httpserver.Handlers{Q: app.NewQueryService(store, src, norm, nil, time.Minute), M: app.NewModerationService(store, src, norm, nil), AdminPageSize: 50, PublicPageSize: 12},
		&httpserver.AuthHandlers{Sessions: sessions, CookieName: "flex_admin"},
	)
	tok, err := sessions.Issue("manager")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/reviews/hostaway", nil)
	req.AddCookie(&http.Cookie{Name: "flex_admin", Value: tok})
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "missing.json", "internal detail must not leak")
}

func TestCORS(t *testing.T) {
	e := newEnv(t)
	cases := map[string]bool{
		"http://localhost:3000":         true,
		"https://flex-pr-12.vercel.app": true,
		"http://flex-pr-12.vercel.app":  false,
		"https://evil.example":          false,
	}
	for origin, allowed := range cases {
		rec := e.do(t, http.MethodGet, "/api/public/reviews", "", func(r *http.Request) { r.Header.Set("Origin", origin) })
		got := rec.Header().Get("Access-Control-Allow-Origin")
		if allowed {
			assert.Equal(t, origin, got, origin)
			assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
		} else {
			assert.Empty(t, got, origin)
		}
	}
}
