package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"familybudget/internal/service"
)

// AuthHandler handles registration, token issuance and the caller profile
type AuthHandler struct {
	authService          *service.AuthService
	oauthProviders       map[string]OAuthProvider
	oauthRedirectBaseURL string
	logger               *logrus.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		oauthProviders: map[string]OAuthProvider{},
		logger:         logger,
	}
}

// ConfigureGoogleOAuth enables the Google login flow
func (h *AuthHandler) ConfigureGoogleOAuth(clientID, clientSecret, redirectBaseURL string) {
	h.oauthProviders["google"] = newGoogleProvider(clientID, clientSecret)
	h.oauthRedirectBaseURL = redirectBaseURL
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a password account
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, h.logger, err.Error())
		return
	}

	user, err := h.authService.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, user)
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Token exchanges credentials for an access/refresh pair
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, h.logger, err.Error())
		return
	}

	pair, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, pair)
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// Refresh exchanges a refresh token for a new pair
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, h.logger, err.Error())
		return
	}

	pair, err := h.authService.Refresh(r.Context(), req.Refresh)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, pair)
}

// Me returns the caller's account and family standing
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	profile, err := h.authService.Me(r.Context(), userID)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, profile)
}

func (h *AuthHandler) provider(key string) (OAuthProvider, bool) {
	provider, ok := h.oauthProviders[key]
	if !ok || provider.Config == nil || provider.Config.ClientID == "" || provider.Config.ClientSecret == "" {
		return OAuthProvider{}, false
	}
	return provider, true
}

// OAuthEnabled reports whether any OAuth provider is configured
func (h *AuthHandler) OAuthEnabled() bool {
	for key := range h.oauthProviders {
		if _, ok := h.provider(key); ok {
			return true
		}
	}
	return false
}
