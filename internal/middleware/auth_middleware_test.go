package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sadiqgoni/GreenCycle/internal/models"
	"github.com/sadiqgoni/GreenCycle/pkg/jwt"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestJWTService() *jwt.Service {
	return jwt.NewService(
		"test-access-secret-key-123456789",
		"test-refresh-secret-key-123456789",
		"greencycle",
		time.Hour,
		24*time.Hour,
	)
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func perform(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_Success(t *testing.T) {
	jwtService := setupTestJWTService()
	router := setupTestRouter()
	logger, _ := test.NewNullLogger()

	userID := uuid.New()
	token, err := jwtService.GenerateAccessToken(userID, "amina@example.com", "household")
	require.NoError(t, err)

	router.GET("/protected", AuthMiddleware(jwtService, logger), func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		require.True(t, exists)
		assert.Equal(t, userID, userCtx.Actor().ID)
		assert.Equal(t, models.RoleHousehold, userCtx.Actor().Role)
		c.JSON(http.StatusOK, gin.H{"message": "success", "email": userCtx.Email})
	})

	w := perform(router, "Bearer "+token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "amina@example.com")
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	jwtService := setupTestJWTService()
	logger, _ := test.NewNullLogger()

	expired := jwt.NewService("test-access-secret-key-123456789", "test-refresh-secret-key-123456789", "greencycle", -time.Minute, time.Hour)
	expiredToken, err := expired.GenerateAccessToken(uuid.New(), "a@b.ng", "household")
	require.NoError(t, err)

	otherSecret := jwt.NewService("another-access-secret-key-98765", "test-refresh-secret-key-123456789", "greencycle", time.Hour, time.Hour)
	wrongSecretToken, err := otherSecret.GenerateAccessToken(uuid.New(), "a@b.ng", "household")
	require.NoError(t, err)

	refreshToken, err := jwtService.GenerateRefreshToken(uuid.New(), "a@b.ng", "household")
	require.NoError(t, err)

	badRoleToken, err := jwtService.GenerateAccessToken(uuid.New(), "a@b.ng", "driver")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", "MISSING_AUTH_HEADER"},
		{"basic auth", "Basic dXNlcjpwYXNz", "INVALID_AUTH_FORMAT"},
		{"empty bearer", "Bearer ", "INVALID_AUTH_FORMAT"},
		{"garbage token", "Bearer not.a.jwt", "INVALID_TOKEN"},
		{"expired token", "Bearer " + expiredToken, "TOKEN_EXPIRED"},
		{"wrong secret", "Bearer " + wrongSecretToken, "INVALID_TOKEN"},
		{"refresh token", "Bearer " + refreshToken, "INVALID_TOKEN"},
		{"unknown role", "Bearer " + badRoleToken, "INVALID_TOKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			router.GET("/protected", AuthMiddleware(jwtService, logger), func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"message": "should not reach here"})
			})

			w := perform(router, tt.header)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
			assert.NotContains(t, w.Body.String(), "should not reach here")
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		userRole models.UserRole
		allowed  []models.UserRole
		want     int
	}{
		{"admin allowed", models.RoleAdmin, []models.UserRole{models.RoleAdmin}, http.StatusOK},
		{"one of several", models.RoleCompany, []models.UserRole{models.RoleHousehold, models.RoleCompany}, http.StatusOK},
		{"household forbidden", models.RoleHousehold, []models.UserRole{models.RoleAdmin}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			router.GET("/protected", func(c *gin.Context) {
				c.Set(UserContextKey, UserContext{UserID: uuid.New(), Role: tt.userRole})
				c.Next()
			}, RequireRole(tt.allowed...), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			w := perform(router, "")
			assert.Equal(t, tt.want, w.Code)
		})
	}

	t.Run("no user context", func(t *testing.T) {
		router := setupTestRouter()
		router.GET("/protected", RequireRole(models.RoleAdmin), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := perform(router, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "MISSING_USER_CONTEXT")
	})
}

func TestMustGetUserContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Panics(t, func() { MustGetUserContext(c) })

	c.Set(UserContextKey, "not a user context")
	_, ok := GetUserContext(c)
	assert.False(t, ok)

	want := UserContext{UserID: uuid.New(), Role: models.RoleAdmin}
	c.Set(UserContextKey, want)
	assert.Equal(t, want, MustGetUserContext(c))
}

type companyByUserFunc func(ctx context.Context, userID uuid.UUID) (*models.Company, error)

func (f companyByUserFunc) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Company, error) {
	return f(ctx, userID)
}

func TestRequireApprovedCompany(t *testing.T) {
	userID := uuid.New()
	logger, _ := test.NewNullLogger()

	tests := []struct {
		name    string
		company *models.Company
		err     error
		want    int
		code    string
	}{
		{"approved", &models.Company{UserID: userID, VerificationStatus: models.VerificationStatusApproved}, nil, http.StatusOK, ""},
		{"legacy verified", &models.Company{UserID: userID, VerificationStatus: models.VerificationStatusVerified}, nil, http.StatusOK, ""},
		{"pending", &models.Company{UserID: userID, VerificationStatus: models.VerificationStatusPending}, nil, http.StatusForbidden, "ACCOUNT_NOT_VERIFIED"},
		{"no company", nil, nil, http.StatusForbidden, "COMPANY_NOT_FOUND"},
		{"lookup error", nil, errors.New("db down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup := companyByUserFunc(func(ctx context.Context, id uuid.UUID) (*models.Company, error) {
				assert.Equal(t, userID, id)
				return tt.company, tt.err
			})

			router := setupTestRouter()
			router.GET("/protected", func(c *gin.Context) {
				c.Set(UserContextKey, UserContext{UserID: userID, Role: models.RoleCompany})
				c.Next()
			}, RequireApprovedCompany(lookup, logger), func(c *gin.Context) {
				company, ok := c.Get(CompanyContextKey)
				require.True(t, ok)
				assert.Equal(t, tt.company, company)
				c.Status(http.StatusOK)
			})

			w := perform(router, "")
			assert.Equal(t, tt.want, w.Code)
			if tt.code != "" {
				assert.Contains(t, w.Body.String(), tt.code)
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	router := setupTestRouter()
	router.Use(Metrics())
	router.GET("/service-requests/:id", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest("GET", "/service-requests/"+uuid.NewString(), nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range families {
		if mf.GetName() != "greencycle_http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["route"] == "/service-requests/:id" && labels["code"] == "204" {
				found = true
				assert.GreaterOrEqual(t, m.GetCounter().GetValue(), float64(1))
			}
		}
	}
	assert.True(t, found, "expected a sample labelled with the route pattern")
}
