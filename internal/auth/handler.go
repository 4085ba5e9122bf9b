package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bartosz121/minerva/internal/accesstoken"
	"github.com/bartosz121/minerva/internal/platform/db"
	"github.com/bartosz121/minerva/internal/platform/httpx"
	"github.com/bartosz121/minerva/internal/users"
)

// HandlerConfig aggregates the account flow dependencies.
type HandlerConfig struct {
	Logger     *slog.Logger
	CookieName string
	TokenTTL   time.Duration
	Production bool
}

// Handler wires the HTTP endpoints for the account flow. Services are built
// per request on the request-scoped session.
type Handler struct {
	logger     *slog.Logger
	validator  *validator.Validate
	cookieName string
	tokenTTL   time.Duration
	production bool
}

// NewHandler constructs a Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		logger:     cfg.Logger,
		validator:  validator.New(),
		cookieName: cfg.CookieName,
		tokenTTL:   cfg.TokenTTL,
		production: cfg.Production,
	}
}

// MountRoutes registers the account routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sign-up", h.signUp)
	r.Post("/sign-in", h.signIn)
	r.With(RequireAuthenticated).Get("/sign-out", h.signOut)
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type signInResponse struct {
	Token          string    `json:"token"`
	ExpirationDate time.Time `json:"expirationDate"`
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "email must be a valid email address")
		return
	}
	if err := users.ValidatePassword(req.Password); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}

	userService, ok := h.userService(w, r)
	if !ok {
		return
	}
	user, err := userService.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrEmailAlreadyExists) {
			httpx.Problem(w, http.StatusConflict, "Conflict", "User with this email address already exists")
			return
		}
		h.logger.Error("sign up", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	httpx.JSON(w, http.StatusCreated, userResponse{ID: user.ID.String(), Email: user.Email})
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "email must be a valid email address")
		return
	}

	userService, ok := h.userService(w, r)
	if !ok {
		return
	}
	user, err := userService.GetOneOrNoneByEmail(r.Context(), req.Email)
	if err != nil {
		h.logger.Error("look up user by email", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	// Unknown email and wrong password yield the same status so responses
	// don't leak which check failed.
	if user == nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "User with this email address doesn't exist")
		return
	}
	if !users.VerifyPassword(req.Password, user.HashedPassword) {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Wrong password")
		return
	}

	tokenService, ok := h.tokenService(w, r)
	if !ok {
		return
	}
	token, err := tokenService.Issue(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("issue access token", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    token.Token,
		Path:     "/",
		MaxAge:   token.SecondsUntilExpiry(),
		SameSite: http.SameSiteLaxMode,
		HttpOnly: h.production,
		Secure:   h.production,
	})

	httpx.JSON(w, http.StatusOK, signInResponse{Token: token.Token, ExpirationDate: token.ExpirationDate})
}

// signOut clears the cookie client-side only; the token row stays in
// storage and remains valid until natural expiry.
func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		SameSite: http.SameSiteLaxMode,
		HttpOnly: h.production,
		Secure:   h.production,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) userService(w http.ResponseWriter, r *http.Request) (*users.Service, bool) {
	sess := db.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing in account handler")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return nil, false
	}
	return users.NewService(users.NewRepository(sess)), true
}

func (h *Handler) tokenService(w http.ResponseWriter, r *http.Request) (*accesstoken.Service, bool) {
	sess := db.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing in account handler")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return nil, false
	}
	return accesstoken.NewService(accesstoken.NewRepository(sess), h.tokenTTL), true
}
