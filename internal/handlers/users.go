package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"marketscout/internal/apperr"
	"marketscout/internal/auth"
	"marketscout/internal/logger"
	"marketscout/internal/models"
)

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Signup registers a new user.
func (s *Server) Signup(w http.ResponseWriter, r *http.Request) {
	ctx, span, fields := startSpan(r, "Signup")
	defer span.End()

	var req models.UserCreate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	logger.Log.Info("User signup attempt", append(fields, zap.String("username", req.Username))...)

	existing, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if existing != nil {
		logger.Log.Warn("Signup failed, email already registered", fields...)
		writeError(w, r, apperr.Validation("Email already registered"))
		return
	}

	existing, err = s.store.GetUserByUsername(ctx, req.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if existing != nil {
		logger.Log.Warn("Signup failed, username already taken", append(fields, zap.String("username", req.Username))...)
		writeError(w, r, apperr.Validation("Username already taken"))
		return
	}

	user, err := s.store.CreateUser(ctx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Log.Info("User created successfully", append(fields, zap.Int64("user_id", user.ID))...)
	writeData(w, http.StatusCreated, "User created successfully", user)
}

// Token exchanges form-encoded credentials for a bearer token.
func (s *Server) Token(w http.ResponseWriter, r *http.Request) {
	ctx, span, fields := startSpan(r, "Token")
	defer span.End()

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeError(w, r, invalidField("body", "Invalid form body"))
		return
	}

	username := strings.TrimSpace(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")

	var details []apperr.FieldError
	if username == "" {
		details = append(details, apperr.FieldError{Field: "username", Message: "Field required"})
	}
	if password == "" {
		details = append(details, apperr.FieldError{Field: "password", Message: "Field required"})
	}
	if len(details) > 0 {
		writeError(w, r, apperr.Validation("Validation failed", details...))
		return
	}

	user, err := s.store.Authenticate(ctx, username, password)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindAuthentication {
			logger.Log.Warn("Login failed", append(fields, zap.String("username", username))...)
		}
		writeError(w, r, err)
		return
	}

	token, err := s.tokens.Issue(user.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Log.Info("Login successful", append(fields, zap.Int64("user_id", user.ID))...)
	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: auth.TokenType})
}

// currentUser returns the user attached by RequireUser.
func currentUser(r *http.Request) *models.User {
	user, _ := auth.UserFromContext(r.Context())
	return user
}
