package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sadiqgoni/GreenCycle/internal/lifecycle"
	"github.com/sadiqgoni/GreenCycle/internal/middleware"
	"github.com/sadiqgoni/GreenCycle/internal/models"
	"github.com/sadiqgoni/GreenCycle/internal/services"
	"github.com/sirupsen/logrus"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxPayloadBytes = 64 << 10
)

// RequestAPI is the service request surface the handler drives
type RequestAPI interface {
	Create(ctx context.Context, actor lifecycle.Actor, in models.CreateServiceRequestRequest) (*models.ServiceRequestView, error)
	Get(ctx context.Context, actor lifecycle.Actor, id uuid.UUID) (*models.ServiceRequestView, error)
	AllowedActions(ctx context.Context, actor lifecycle.Actor, id uuid.UUID) (*models.ActionSet, error)
	GetPayment(ctx context.Context, actor lifecycle.Actor, id uuid.UUID) (*models.Payment, error)
	List(ctx context.Context, actor lifecycle.Actor, filter models.ServiceRequestFilter) ([]models.ServiceRequestView, error)
	Perform(ctx context.Context, actor lifecycle.Actor, id uuid.UUID, payload lifecycle.Payload, client services.ClientInfo) (*models.ServiceRequestView, error)
}

// ServiceRequestHandler handles service request endpoints
type ServiceRequestHandler struct {
	requests RequestAPI
	logger   logrus.FieldLogger
}

// NewServiceRequestHandler creates a new ServiceRequestHandler
func NewServiceRequestHandler(requests RequestAPI, logger logrus.FieldLogger) *ServiceRequestHandler {
	return &ServiceRequestHandler{requests: requests, logger: logger}
}

// Create handles POST /api/v1/service-requests
// @Summary File a pickup request
// @Tags Service Requests
// @Accept json
// @Produce json
// @Param request body models.CreateServiceRequestRequest true "Pickup details"
// @Success 201 {object} models.ServiceRequestView
// @Failure 400 {object} ErrorResponse
// @Router /service-requests [post]
func (h *ServiceRequestHandler) Create(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.CreateServiceRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	view, err := h.requests.Create(c.Request.Context(), userCtx.Actor(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

// List handles GET /api/v1/service-requests?status=&limit=&offset=
func (h *ServiceRequestHandler) List(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	filter := models.ServiceRequestFilter{
		Limit:  defaultPageSize,
		Offset: 0,
	}
	if s := c.Query("status"); s != "" {
		status := models.ServiceRequestStatus(s)
		filter.Status = &status
	}
	if l := c.Query("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit < 1 {
			invalidID(c, "limit")
			return
		}
		if limit > maxPageSize {
			limit = maxPageSize
		}
		filter.Limit = limit
	}
	if o := c.Query("offset"); o != "" {
		offset, err := strconv.Atoi(o)
		if err != nil || offset < 0 {
			invalidID(c, "offset")
			return
		}
		filter.Offset = offset
	}

	views, err := h.requests.List(c.Request.Context(), userCtx.Actor(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"service_requests": views,
		"count":            len(views),
		"limit":            filter.Limit,
		"offset":           filter.Offset,
	})
}

// Get handles GET /api/v1/service-requests/:id
func (h *ServiceRequestHandler) Get(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	view, err := h.requests.Get(c.Request.Context(), userCtx.Actor(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// Actions handles GET /api/v1/service-requests/:id/actions
func (h *ServiceRequestHandler) Actions(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	actions, err := h.requests.AllowedActions(c.Request.Context(), userCtx.Actor(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, actions)
}

// Payment handles GET /api/v1/service-requests/:id/payment
func (h *ServiceRequestHandler) Payment(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	payment, err := h.requests.GetPayment(c.Request.Context(), userCtx.Actor(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if payment == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "No payment has been requested for this service request",
			Code:    "PAYMENT_NOT_FOUND",
		})
		return
	}

	c.JSON(http.StatusOK, payment)
}

// Perform handles POST /api/v1/service-requests/:id/:action
// @Summary Run a lifecycle action
// @Description assign, accept, start, complete, cancel, request-payment, confirm-payment or process-commission
// @Tags Service Requests
// @Accept json
// @Produce json
// @Success 200 {object} models.ServiceRequestView
// @Failure 400 {object} ErrorResponse "Validation error"
// @Failure 404 {object} ErrorResponse "Request or referenced record not found"
// @Failure 409 {object} ErrorResponse "Invalid transition or concurrent update"
// @Failure 423 {object} ErrorResponse "Record locked"
// @Router /service-requests/{id}/{action} [post]
func (h *ServiceRequestHandler) Perform(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	action, ok := lifecycle.ParseAction(c.Param("action"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Unknown action " + strconv.Quote(c.Param("action")),
			Code:    "UNKNOWN_ACTION",
		})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes))
	if err != nil {
		bindError(c, err)
		return
	}

	payload, err := lifecycle.DecodePayload(action, body)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	view, err := h.requests.Perform(c.Request.Context(), userCtx.Actor(), id, payload, clientInfo(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		invalidID(c, "id")
		return uuid.Nil, false
	}
	return id, true
}
