package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/example/pricelist/internal/api/middleware"
	"github.com/example/pricelist/internal/api/problem"
	"github.com/example/pricelist/internal/auth"
)

// AuthHandlers handles admin session requests
type AuthHandlers struct {
	authenticator *auth.Authenticator
	jwtService    *auth.JWTService
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(authenticator *auth.Authenticator, jwtService *auth.JWTService) *AuthHandlers {
	return &AuthHandlers{
		authenticator: authenticator,
		jwtService:    jwtService,
	}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SessionResponse describes the active admin session
type SessionResponse struct {
	Username       string    `json:"username"`
	Role           string    `json:"role"`
	CanEditCatalog bool      `json:"canEditCatalog"`
	Token          string    `json:"token,omitempty"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// Login checks the admin credentials and issues a session token
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Write(w, http.StatusBadRequest, "Validation failed", "invalid request body")
		return
	}

	if err := h.authenticator.Authenticate(req.Username, req.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			logf("failed admin login for %q from %s", req.Username, r.RemoteAddr)
			problem.Write(w, http.StatusUnauthorized, "Unauthorized", err.Error())
			return
		}
		problem.Error(w, err)
		return
	}

	token, expiresAt, err := h.jwtService.GenerateAdminToken(h.authenticator.Username())
	if err != nil {
		problem.Error(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	respondJSON(w, http.StatusOK, SessionResponse{
		Username:       h.authenticator.Username(),
		Role:           auth.RoleAdmin,
		CanEditCatalog: true,
		Token:          token,
		ExpiresAt:      expiresAt,
	})
}

// Logout clears the session cookie
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the session carried by the request
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		problem.Write(w, http.StatusUnauthorized, "Unauthorized", "admin session required")
		return
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	respondJSON(w, http.StatusOK, SessionResponse{
		Username:       claims.Username,
		Role:           claims.Role,
		CanEditCatalog: claims.CanEditCatalog,
		ExpiresAt:      expiresAt,
	})
}
