package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sadiqgoni/GreenCycle/internal/models"
	"github.com/sirupsen/logrus"
)

// CompanyContextKey holds the caller's *models.Company after RequireApprovedCompany
const CompanyContextKey = "company"

// CompanyByUser finds the company operated by a user
type CompanyByUser interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Company, error)
}

// RequireApprovedCompany checks the calling company user's company is approved.
// Must be used after AuthMiddleware.
func RequireApprovedCompany(companies CompanyByUser, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		if !exists {
			abort(c, http.StatusUnauthorized, "unauthorized", "User context not found", "MISSING_USER_CONTEXT")
			return
		}

		company, err := companies.GetByUserID(c.Request.Context(), userCtx.UserID)
		if err != nil {
			logger.WithError(err).WithField("user_id", userCtx.UserID).Error("Failed to load company for verification check")
			abort(c, http.StatusInternalServerError, "internal_error", "Failed to verify company", "INTERNAL_ERROR")
			return
		}
		if company == nil {
			abort(c, http.StatusForbidden, "not_company", "Company profile not found. Register your company first.", "COMPANY_NOT_FOUND")
			return
		}

		if !company.IsVerified() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":               "not_verified",
				"message":             "Your company is not verified yet. Please wait for admin approval.",
				"code":                "ACCOUNT_NOT_VERIFIED",
				"verification_status": company.VerificationStatus,
			})
			return
		}

		c.Set(CompanyContextKey, company)
		c.Next()
	}
}
