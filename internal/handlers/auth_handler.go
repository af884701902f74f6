package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sadiqgoni/GreenCycle/internal/middleware"
	"github.com/sadiqgoni/GreenCycle/internal/models"
	"github.com/sadiqgoni/GreenCycle/internal/services"
	"github.com/sirupsen/logrus"
)

// AuthAPI is the account surface behind /auth
type AuthAPI interface {
	Register(ctx context.Context, in models.RegisterRequest, client services.ClientInfo) (*models.AuthResponse, error)
	Login(ctx context.Context, email, password string, client services.ClientInfo) (*models.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string, client services.ClientInfo) (*models.AuthResponse, error)
	Logout(ctx context.Context, userID uuid.UUID, refreshToken string, all bool, client services.ClientInfo) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	auth   AuthAPI
	logger logrus.FieldLogger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth AuthAPI, logger logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := h.auth.Register(c.Request.Context(), req, clientInfo(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, clientInfo(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RefreshToken handles POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken, clientInfo(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// LogoutRequest represents the request to logout
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
	LogoutAll    bool   `json:"logout_all"` // If true, logout from all devices
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req LogoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}

	if err := h.auth.Logout(c.Request.Context(), userCtx.UserID, req.RefreshToken, req.LogoutAll, clientInfo(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}

	message := "Successfully logged out"
	if req.LogoutAll {
		message = "Successfully logged out from all devices"
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	c.JSON(http.StatusOK, userCtx)
}
