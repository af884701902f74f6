package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sadiqgoni/GreenCycle/internal/middleware"
	"github.com/sadiqgoni/GreenCycle/internal/models"
	"github.com/sadiqgoni/GreenCycle/internal/services"
	"github.com/sadiqgoni/GreenCycle/internal/utils"
	"github.com/sirupsen/logrus"
)

// CompanyAPI is the company surface used by company users and admins
type CompanyAPI interface {
	Register(ctx context.Context, userID uuid.UUID, in models.RegisterCompanyRequest) (*models.Company, error)
	MyCompany(ctx context.Context, userID uuid.UUID) (*models.Company, error)
	SetAvailability(ctx context.Context, userID uuid.UUID, status models.AvailabilityStatus) (*models.Company, error)
	Approve(ctx context.Context, adminID, companyID uuid.UUID, client services.ClientInfo) (*models.Company, error)
	Reject(ctx context.Context, adminID, companyID uuid.UUID, reason string, client services.ClientInfo) (*models.Company, error)
	ListAssignable(ctx context.Context) ([]models.Company, error)
	List(ctx context.Context, filter models.CompanyFilter) ([]models.Company, error)
}

// CompanyHandler handles company profile and admin review endpoints
type CompanyHandler struct {
	companies CompanyAPI
	logger    logrus.FieldLogger
}

// NewCompanyHandler creates a new CompanyHandler
func NewCompanyHandler(companies CompanyAPI, logger logrus.FieldLogger) *CompanyHandler {
	return &CompanyHandler{companies: companies, logger: logger}
}

// Register handles POST /api/v1/companies
func (h *CompanyHandler) Register(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.RegisterCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	company, err := h.companies.Register(c.Request.Context(), userCtx.UserID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Company registered. An admin will review it shortly.",
		"company": company,
	})
}

// Me handles GET /api/v1/companies/me
func (h *CompanyHandler) Me(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	company, err := h.companies.MyCompany(c.Request.Context(), userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, company)
}

// UpdateAvailability handles PUT /api/v1/companies/me/availability
func (h *CompanyHandler) UpdateAvailability(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.UpdateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	company, err := h.companies.SetAvailability(c.Request.Context(), userCtx.UserID, req.AvailabilityStatus)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, company)
}

// List handles GET /api/v1/admin/companies?verification_status=
func (h *CompanyHandler) List(c *gin.Context) {
	filter := models.CompanyFilter{Limit: defaultPageSize}
	if s := c.Query("verification_status"); s != "" {
		status := models.VerificationStatus(s)
		filter.VerificationStatus = &status
	}
	if l, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize))); err == nil && l > 0 && l <= maxPageSize {
		filter.Limit = l
	}
	if o, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil && o >= 0 {
		filter.Offset = o
	}

	companies, err := h.companies.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"companies": companies, "count": len(companies)})
}

// Assignable handles GET /api/v1/admin/companies/assignable
func (h *CompanyHandler) Assignable(c *gin.Context) {
	companies, err := h.companies.ListAssignable(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"companies": companies, "count": len(companies)})
}

// Approve handles POST /api/v1/admin/companies/:id/approve
func (h *CompanyHandler) Approve(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	company, err := h.companies.Approve(c.Request.Context(), userCtx.UserID, id, clientInfo(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, company)
}

// Reject handles POST /api/v1/admin/companies/:id/reject
func (h *CompanyHandler) Reject(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req models.RejectCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	company, err := h.companies.Reject(c.Request.Context(), userCtx.UserID, id, req.Reason, clientInfo(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, company)
}

func clientInfo(c *gin.Context) services.ClientInfo {
	return services.ClientInfo{
		IPAddress: utils.GetRealIP(c),
		UserAgent: utils.GetUserAgent(c),
	}
}
