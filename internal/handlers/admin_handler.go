package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sadiqgoni/GreenCycle/internal/models"
	"github.com/sadiqgoni/GreenCycle/internal/services"
	"github.com/sirupsen/logrus"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DashboardAPI aggregates the admin dashboard figures
type DashboardAPI interface {
	GetStats(ctx context.Context) (*models.DashboardStats, error)
}

// SettlementExporter writes the settlement workbook
type SettlementExporter interface {
	Export(ctx context.Context, from, to time.Time, w io.Writer) error
}

// CronAPI exposes scheduled job status and manual runs
type CronAPI interface {
	GetJobStatus() []services.JobStatus
	RunNow(ctx context.Context, job string) error
}

// AuditHistory lists audit rows for one entity
type AuditHistory interface {
	ListForEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]models.AuditLog, error)
}

// AdminHandler handles admin-only reporting and operations endpoints
type AdminHandler struct {
	dashboard   DashboardAPI
	settlements SettlementExporter
	cron        CronAPI
	audit       AuditHistory
	logger      logrus.FieldLogger
}

// NewAdminHandler creates a new admin handler. cron may be nil when
// scheduled jobs are disabled.
func NewAdminHandler(
	dashboard DashboardAPI,
	settlements SettlementExporter,
	cron CronAPI,
	audit AuditHistory,
	logger logrus.FieldLogger,
) *AdminHandler {
	return &AdminHandler{
		dashboard:   dashboard,
		settlements: settlements,
		cron:        cron,
		audit:       audit,
		logger:      logger,
	}
}

// DashboardStats handles GET /api/v1/admin/dashboard/stats
func (h *AdminHandler) DashboardStats(c *gin.Context) {
	stats, err := h.dashboard.GetStats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ExportSettlements handles GET /api/v1/admin/settlements/export?from=2006-01-02&to=2006-01-02
// The to date is inclusive.
func (h *AdminHandler) ExportSettlements(c *gin.Context) {
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		invalidID(c, "from")
		return
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		invalidID(c, "to")
		return
	}

	// Buffer the workbook so a failed export still gets a JSON error
	var buf bytes.Buffer
	if err := h.settlements.Export(c.Request.Context(), from, to.AddDate(0, 0, 1), &buf); err != nil {
		respondError(c, h.logger, err)
		return
	}

	filename := fmt.Sprintf("settlements_%s_%s.xlsx", from.Format("20060102"), to.Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// CronStatus handles GET /api/v1/admin/cron/jobs
func (h *AdminHandler) CronStatus(c *gin.Context) {
	if h.cron == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false, "jobs": []services.JobStatus{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": true, "jobs": h.cron.GetJobStatus()})
}

// RunCronJob handles POST /api/v1/admin/cron/jobs/:job/run
func (h *AdminHandler) RunCronJob(c *gin.Context) {
	if h.cron == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "cron_disabled",
			Message: "Scheduled jobs are disabled",
			Code:    "CRON_DISABLED",
		})
		return
	}

	job := c.Param("job")
	if err := h.cron.RunNow(c.Request.Context(), job); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Job completed", "job": job})
}

// RequestHistory handles GET /api/v1/admin/service-requests/:id/history
func (h *AdminHandler) RequestHistory(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > maxPageSize {
		limit = 50
	}

	logs, err := h.audit.ListForEntity(c.Request.Context(), services.EntityServiceRequest, id, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"service_request_id": id, "history": logs})
}
