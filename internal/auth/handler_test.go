package auth_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/bartosz121/minerva/internal/accesstoken"
	"github.com/bartosz121/minerva/internal/auth"
	"github.com/bartosz121/minerva/internal/platform/db"
	"github.com/bartosz121/minerva/internal/users"
)

const (
	testHeaderName = "Authentication"
	testCookieName = "minerva_access_token"
	testTokenTTL   = time.Hour
)

func newTestRouter(t *testing.T) (*chi.Mux, *bun.DB) {
	t.Helper()
	sqldb, err := sql.Open("sqlite3", ":memory:?cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	bdb := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = bdb.Close()
	})

	ctx := context.Background()
	_, err = bdb.NewCreateTable().Model((*users.User)(nil)).Exec(ctx)
	require.NoError(t, err)
	_, err = bdb.NewCreateTable().Model((*accesstoken.AccessToken)(nil)).Exec(ctx)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := auth.NewHandler(auth.HandlerConfig{
		Logger:     logger,
		CookieName: testCookieName,
		TokenTTL:   testTokenTTL,
	})

	r := chi.NewRouter()
	r.Use(db.TransactionMiddleware(bdb, logger))
	r.Use(auth.Gate(auth.GateConfig{
		Logger:     logger,
		HeaderName: testHeaderName,
		CookieName: testCookieName,
		TokenTTL:   testTokenTTL,
	}))
	r.Route("/users", handler.MountRoutes)
	return r, bdb
}

func doJSON(t *testing.T, router http.Handler, method, target string, body any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func credentials(email, password string) map[string]string {
	return map[string]string{"email": email, "password": password}
}

func TestSignUpCreatesUser(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/users/sign-up", credentials("ada@example.com", "pass1!"))
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["id"])
	assert.Equal(t, "ada@example.com", body["email"])
	assert.NotContains(t, rec.Body.String(), "hashed_password")
	assert.NotContains(t, rec.Body.String(), "pass1!")
}

func TestSignUpDuplicateEmailConflicts(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/users/sign-up", credentials("ada@example.com", "pass1!"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/users/sign-up", credentials("ada@example.com", "other2@"))
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "User with this email address already exists")
}

func TestSignUpValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name     string
		email    string
		password string
		detail   string
	}{
		{"invalid email", "not-an-email", "pass1!", "email"},
		{"password missing special character", "ada@example.com", "abc123", "password"},
		{"password too short", "ada@example.com", "a1!", "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/users/sign-up", credentials(tt.email, tt.password))
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.detail)
		})
	}
}

func TestSignUpRejectsMalformedJSON(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/users/sign-up", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignInIssuesTokenAndCookie(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/users/sign-up", credentials("ada@example.com", "pass1!"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/users/sign-in", credentials("ada@example.com", "pass1!"))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Token          string    `json:"token"`
		ExpirationDate time.Time `json:"expirationDate"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Token)
	assert.WithinDuration(t, time.Now().UTC().Add(testTokenTTL), body.ExpirationDate, 5*time.Second)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, testCookieName, cookie.Name)
	assert.Equal(t, body.Token, cookie.Value)
	assert.Equal(t, "/", cookie.Path)
	assert.InDelta(t, int(testTokenTTL.Seconds()), cookie.MaxAge, 5)
	// Outside production the cookie stays inspectable over plain HTTP.
	assert.False(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure)
}

func TestSignInUnknownEmail(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/users/sign-in", credentials("nobody@example.com", "pass1!"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "User with this email address doesn't exist")
}

func TestSignInWrongPassword(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/users/sign-up", credentials("ada@example.com", "pass1!"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/users/sign-in", credentials("ada@example.com", "wrong2@"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Wrong password")
}

func TestSignOutRequiresAuthentication(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/users/sign-up", credentials("ada@example.com", "pass1!"))
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/users/sign-in", credentials("ada@example.com", "pass1!"))
	require.Equal(t, http.StatusOK, rec.Code)

	// Signed in, but this request presents no credentials.
	req := httptest.NewRequest(http.MethodGet, "/users/sign-out", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "authentication required")
}

func TestSignOutClearsCookie(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/users/sign-up", credentials("ada@example.com", "pass1!"))
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/users/sign-in", credentials("ada@example.com", "pass1!"))
	require.Equal(t, http.StatusOK, rec.Code)
	token := rec.Result().Cookies()[0].Value

	req := httptest.NewRequest(http.MethodGet, "/users/sign-out", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: token})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, testCookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestSignOutAcceptsHeaderToken(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/users/sign-up", credentials("ada@example.com", "pass1!"))
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/users/sign-in", credentials("ada@example.com", "pass1!"))
	require.Equal(t, http.StatusOK, rec.Code)
	token := rec.Result().Cookies()[0].Value

	req := httptest.NewRequest(http.MethodGet, "/users/sign-out", nil)
	req.Header.Set(testHeaderName, token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSignOutLeavesTokenUsable(t *testing.T) {
	router, bdb := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/users/sign-up", credentials("ada@example.com", "pass1!"))
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/users/sign-in", credentials("ada@example.com", "pass1!"))
	require.Equal(t, http.StatusOK, rec.Code)
	token := rec.Result().Cookies()[0].Value

	req := httptest.NewRequest(http.MethodGet, "/users/sign-out", nil)
	req.Header.Set(testHeaderName, token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Sign-out only clears the cookie; the stored token stays valid.
	tokens := accesstoken.NewService(accesstoken.NewRepository(db.NewSession(bdb)), testTokenTTL)
	_, err := tokens.Validate(context.Background(), token)
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/users/sign-out", nil)
	req.Header.Set(testHeaderName, token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}
