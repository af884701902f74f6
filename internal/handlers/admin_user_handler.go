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

// AdminUserAPI manages admin accounts and password changes
type AdminUserAPI interface {
	CreateAdmin(ctx context.Context, in models.CreateAdminRequest, createdBy *uuid.UUID, client services.ClientInfo) (*models.User, error)
	ListAdmins(ctx context.Context) ([]models.User, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string, client services.ClientInfo) error
}

// AdminUserHandler handles admin account endpoints
type AdminUserHandler struct {
	admins AdminUserAPI
	logger logrus.FieldLogger
}

// NewAdminUserHandler creates a new admin user handler
func NewAdminUserHandler(admins AdminUserAPI, logger logrus.FieldLogger) *AdminUserHandler {
	return &AdminUserHandler{admins: admins, logger: logger}
}

// CreateAdmin handles POST /api/v1/admin/users
// @Summary Create another admin account
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body models.CreateAdminRequest true "Admin account"
// @Success 201 {object} models.User
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /admin/users [post]
func (h *AdminUserHandler) CreateAdmin(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.CreateAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	admin, err := h.admins.CreateAdmin(c.Request.Context(), req, &userCtx.UserID, clientInfo(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, admin)
}

// ListAdmins handles GET /api/v1/admin/users
func (h *AdminUserHandler) ListAdmins(c *gin.Context) {
	admins, err := h.admins.ListAdmins(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"admins": admins,
		"count":  len(admins),
	})
}

// ChangePassword handles PUT /api/v1/auth/password for any signed-in user
func (h *AdminUserHandler) ChangePassword(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.admins.ChangePassword(c.Request.Context(), userCtx.UserID, req.CurrentPassword, req.NewPassword, clientInfo(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Password changed. Sign in again on your other devices.",
	})
}
