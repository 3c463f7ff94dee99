package core

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Server is the thin JSON facade exposing the auth core to the rest of the
// application. Session materialization (cookies) stays with the caller; the
// handlers only return the core's results.
type Server struct {
	authService *AuthService
}

func NewServer(authService *AuthService) *Server {
	return &Server{
		authService: authService,
	}
}

func (s *Server) HandleAuthURL(w http.ResponseWriter, r *http.Request) {
	if !validateMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Provider string `json:"provider"`
	}

	if !decodeJSON(w, r, &req) {
		return
	}

	url, state, err := s.authService.GenerateAuthURL(Provider(req.Provider))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_provider", "Unsupported provider")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"url":   url,
		"state": state,
	})
}

func (s *Server) HandleCompleteLogin(w http.ResponseWriter, r *http.Request) {
	if !validateMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Provider string `json:"provider"`
		Code     string `json:"code"`
	}

	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	key, err := s.authService.CompleteLogin(ctx, Provider(req.Provider), req.Code)
	if err != nil {
		if errors.Is(err, ErrUnsupportedProvider) {
			respondError(w, http.StatusBadRequest, "invalid_provider", "Unsupported provider")
			return
		}
		respondError(w, http.StatusUnauthorized, "login_failed", "Authentication failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"handoff_key": key,
	})
}

func (s *Server) HandleClaimLogin(w http.ResponseWriter, r *http.Request) {
	if !validateMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Key string `json:"key"`
	}

	if !decodeJSON(w, r, &req) {
		return
	}

	login, ok := s.authService.ClaimLogin(req.Key)
	if !ok {
		respondError(w, http.StatusNotFound, "login_expired", "Login expired or already claimed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"provider":      login.Tokens.Provider,
		"access_token":  login.Tokens.AccessToken,
		"refresh_token": login.Tokens.RefreshToken,
		"expiry":        login.Tokens.Expiry,
		"identity": map[string]interface{}{
			"subject":        login.Identity.Subject,
			"email":          login.Identity.Email,
			"email_verified": login.Identity.EmailVerified,
			"name":           login.Identity.Name,
			"picture":        login.Identity.Picture,
		},
	})
}

func (s *Server) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if !validateMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}

	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	ctx := r.Context()
	user, err := s.authService.SignupLocal(ctx, req.Email, req.Name, req.Password)
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			respondError(w, http.StatusConflict, "already_exists", "Account already exists")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to create account")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"user_id": user.ID.String(),
	})
}

func (s *Server) HandleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	if !validateMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}

	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	if err := s.authService.ConfirmEmail(ctx, req.Email, req.Code); err != nil {
		var invalid *CodeInvalidError
		if errors.As(err, &invalid) {
			respondJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":         "code_invalid",
				"message":       "Code expired or invalid",
				"attempts_left": invalid.AttemptsLeft,
			})
			return
		}
		respondError(w, http.StatusBadRequest, "code_invalid", "Code expired or invalid")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "confirmed",
	})
}

func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !validateMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	user, err := s.authService.LoginLocal(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrEmailNotVerified) {
			respondError(w, http.StatusForbidden, "email_not_verified", "Email address not verified")
			return
		}
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"user_id": user.ID.String(),
		"email":   user.Email,
		"name":    user.Name,
	})
}

func (s *Server) HandleRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	if !validateMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Email string `json:"email"`
	}

	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	if err := s.authService.RequestPasswordReset(ctx, req.Email); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to request password reset")
		return
	}

	// Unknown addresses get the same answer as known ones.
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "reset_requested",
	})
}

// HandleResetPassword accepts the reset token either as a "token" query
// parameter (emailed link) or as a bearer credential.
func (s *Server) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	if !validateMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		NewPassword string `json:"new_password"`
	}

	if !decodeJSON(w, r, &req) {
		return
	}

	if req.NewPassword == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "new_password is required")
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		var err error
		token, err = extractBearerToken(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid_token", "Invalid or missing reset token")
			return
		}
	}

	ctx := r.Context()
	if err := s.authService.ResetPassword(ctx, token, req.NewPassword); err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrExpiredToken) {
			respondError(w, http.StatusUnauthorized, "invalid_token", "Invalid or expired reset token")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to reset password")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "password_reset",
	})
}

// HandleDeleteAccount consumes a deletion token passed as a bearer
// credential.
func (s *Server) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if !validateMethod(w, r, http.MethodPost) {
		return
	}

	token, err := extractBearerToken(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid_token", "Invalid or missing deletion token")
		return
	}

	ctx := r.Context()
	if err := s.authService.DeleteAccount(ctx, token); err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrExpiredToken) {
			respondError(w, http.StatusUnauthorized, "invalid_token", "Invalid or expired deletion token")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to delete account")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "account_deleted",
	})
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Helper functions

func validateMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	respondJSON(w, statusCode, map[string]string{
		"error":   errorCode,
		"message": message,
	})
}
