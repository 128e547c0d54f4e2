package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/rogerio-castellano/stock-ledger/internal/auth"
	"github.com/rogerio-castellano/stock-ledger/internal/models"
)

// SessionCookie carries the token for browser clients.
const SessionCookie = "session"

// RegisterHandler godoc
// @Summary Register a new guest user
// @Tags auth
// @Accept json
// @Produce json
// @Param user body RegisterRequest true "username, password and confirmation"
// @Success 201 {object} models.User
// @Failure 400 {object} ErrorsResponse
// @Failure 409 {object} ErrorsResponse "User exists"
// @Failure 429 {string} string "Too many requests"
// @Router /register [post]
func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.auth.Register(r.Context(), models.Registration{
		Username:        strings.TrimSpace(req.Username),
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Role:            models.RoleGuest,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, user)
}

// CreateUserHandler godoc
// @Summary Create user with any role
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param user body CreateUserRequest true "User to create with role"
// @Success 201 {object} models.User
// @Failure 400 {object} ErrorsResponse
// @Failure 401 {string} string "Unauthorized"
// @Failure 403 {string} string "Forbidden"
// @Failure 409 {object} ErrorsResponse "User exists"
// @Router /users [post]
func (s *Server) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.auth.CreateUser(r.Context(), auth.SessionFrom(r.Context()), models.Registration{
		Username:        strings.TrimSpace(req.Username),
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Role:            models.Role(strings.ToLower(req.Role)),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, user)
}

// LoginHandler godoc
// @Summary Authenticate user and return JWT token
// @Description The token is also set as the session cookie.
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body CredentialsRequest true "username and password"
// @Success 200 {object} LoginResult
// @Failure 400 {object} ErrorsResponse
// @Failure 401 {string} string "Unauthorized"
// @Failure 429 {string} string "Too many requests"
// @Router /login [post]
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var creds CredentialsRequest
	if err := readJSON(w, r, &creds); err != nil {
		s.writeError(w, r, err)
		return
	}
	if creds.Username == "" || creds.Password == "" {
		s.writeError(w, r, models.ErrInvalidCredentials)
		return
	}

	session, token, err := s.auth.Authenticate(r.Context(), strings.TrimSpace(creds.Username), creds.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   s.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	s.respond(w, http.StatusOK, LoginResult{
		Token:     token,
		Username:  session.Username,
		Role:      session.Role,
		ExpiresAt: session.ExpiresAt,
	})
}

// LogoutHandler godoc
// @Summary Revoke the current token
// @Tags auth
// @Security BearerAuth
// @Success 204 "Logged out"
// @Failure 401 {string} string "Unauthorized"
// @Router /logout [post]
func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), auth.SessionFrom(r.Context())); err != nil {
		s.writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// MeHandler godoc
// @Summary Current session
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} auth.Session
// @Failure 401 {string} string "Unauthorized"
// @Router /me [get]
func (s *Server) MeHandler(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFrom(r.Context())
	if err := auth.Require(session, models.RoleGuest); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, session)
}
