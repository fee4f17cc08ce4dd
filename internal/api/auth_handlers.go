package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/relayarr/relayarr/internal/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type authStatusResponse struct {
	RequiresSetup bool `json:"requiresSetup"`
	RequiresAuth  bool `json:"requiresAuth"`
}

// POST /api/v1/auth/login
func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	if s.limiter.IsAccountLocked(req.Username) {
		return echo.NewHTTPError(http.StatusTooManyRequests,
			"account temporarily locked due to too many failed attempts")
	}

	token, err := s.deps.Auth.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.limiter.RecordFailedAttempt(req.Username)
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}

	s.limiter.RecordSuccessfulLogin(req.Username)
	return c.JSON(http.StatusOK, loginResponse{Token: token})
}

// POST /api/v1/auth/setup creates the first admin account.
func (s *Server) setup(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Username == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username is required")
	}

	err := s.deps.Auth.Setup(c.Request().Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrSetupComplete):
		return echo.NewHTTPError(http.StatusConflict, "setup has already been completed")
	case errors.Is(err, auth.ErrPasswordRequired):
		return echo.NewHTTPError(http.StatusBadRequest, "password is required")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "setup failed")
	}

	token, err := s.deps.Auth.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate token")
	}
	return c.JSON(http.StatusCreated, loginResponse{Token: token})
}

// GET /api/v1/auth/status
func (s *Server) authStatus(c echo.Context) error {
	needsSetup, err := s.deps.Auth.NeedsSetup(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to check setup status")
	}
	return c.JSON(http.StatusOK, authStatusResponse{
		RequiresSetup: needsSetup,
		RequiresAuth:  true,
	})
}

// requireAuth protects routes with bearer JWT authentication.
func (s *Server) requireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := extractBearerToken(c)
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization token")
			}

			claims, err := s.deps.Auth.ValidateToken(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			c.Set("user", claims)
			return next(c)
		}
	}
}

func extractBearerToken(c echo.Context) string {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
