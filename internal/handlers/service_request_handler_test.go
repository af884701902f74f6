package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sadiqgoni/GreenCycle/internal/lifecycle"
	"github.com/sadiqgoni/GreenCycle/internal/models"
	"github.com/sadiqgoni/GreenCycle/internal/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRequests struct {
	mock.Mock
}

func (m *mockRequests) Create(ctx context.Context, actor lifecycle.Actor, in models.CreateServiceRequestRequest) (*models.ServiceRequestView, error) {
	args := m.Called(actor, in)
	view, _ := args.Get(0).(*models.ServiceRequestView)
	return view, args.Error(1)
}

func (m *mockRequests) Get(ctx context.Context, actor lifecycle.Actor, id uuid.UUID) (*models.ServiceRequestView, error) {
	args := m.Called(actor, id)
	view, _ := args.Get(0).(*models.ServiceRequestView)
	return view, args.Error(1)
}

func (m *mockRequests) AllowedActions(ctx context.Context, actor lifecycle.Actor, id uuid.UUID) (*models.ActionSet, error) {
	args := m.Called(actor, id)
	actions, _ := args.Get(0).(*models.ActionSet)
	return actions, args.Error(1)
}

func (m *mockRequests) GetPayment(ctx context.Context, actor lifecycle.Actor, id uuid.UUID) (*models.Payment, error) {
	args := m.Called(actor, id)
	payment, _ := args.Get(0).(*models.Payment)
	return payment, args.Error(1)
}

func (m *mockRequests) List(ctx context.Context, actor lifecycle.Actor, filter models.ServiceRequestFilter) ([]models.ServiceRequestView, error) {
	args := m.Called(actor, filter)
	views, _ := args.Get(0).([]models.ServiceRequestView)
	return views, args.Error(1)
}

func (m *mockRequests) Perform(ctx context.Context, actor lifecycle.Actor, id uuid.UUID, payload lifecycle.Payload, client services.ClientInfo) (*models.ServiceRequestView, error) {
	args := m.Called(actor, id, payload)
	view, _ := args.Get(0).(*models.ServiceRequestView)
	return view, args.Error(1)
}

func setupRequestRouter(svc *mockRequests, userID uuid.UUID, role models.UserRole) *gin.Engine {
	h := NewServiceRequestHandler(svc, nullLogger())
	router := gin.New()
	g := router.Group("/api/v1/service-requests", asUser(userID, role))
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.GET("/:id/actions", h.Actions)
	g.GET("/:id/payment", h.Payment)
	g.POST("/:id/:action", h.Perform)
	return router
}

func TestServiceRequestHandler_Create(t *testing.T) {
	householdID := uuid.New()
	svc := new(mockRequests)
	router := setupRequestRouter(svc, householdID, models.RoleHousehold)

	actor := lifecycle.Actor{ID: householdID, Role: models.RoleHousehold}
	created := &models.ServiceRequestView{
		ServiceRequest: models.ServiceRequest{ID: uuid.New(), HouseholdID: householdID, Status: models.ServiceRequestStatusPending},
		AllowedActions: []string{"cancel"},
	}
	svc.On("Create", actor, mock.MatchedBy(func(in models.CreateServiceRequestRequest) bool {
		return in.WasteType == "plastic" && in.Address == "12 Marina Road"
	})).Return(created, nil).Once()

	w := doRequest(router, "POST", "/api/v1/service-requests", map[string]interface{}{
		"waste_type":     "plastic",
		"address":        "12 Marina Road",
		"preferred_date": "2025-03-01",
		"preferred_time": "09:00",
		"client_number":  "08031234567",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var got models.ServiceRequestView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, []string{"cancel"}, got.AllowedActions)
	svc.AssertExpectations(t)
}

func TestServiceRequestHandler_CreateRejectsMissingFields(t *testing.T) {
	svc := new(mockRequests)
	router := setupRequestRouter(svc, uuid.New(), models.RoleHousehold)

	w := doRequest(router, "POST", "/api/v1/service-requests", map[string]interface{}{"address": "x"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).Code)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestServiceRequestHandler_List(t *testing.T) {
	companyUser := uuid.New()
	svc := new(mockRequests)
	router := setupRequestRouter(svc, companyUser, models.RoleCompany)

	t.Run("passes status and paging", func(t *testing.T) {
		svc.On("List", mock.Anything, mock.MatchedBy(func(f models.ServiceRequestFilter) bool {
			return f.Status != nil && *f.Status == models.ServiceRequestStatusAccepted && f.Limit == 5 && f.Offset == 10
		})).Return([]models.ServiceRequestView{{}, {}}, nil).Once()

		w := doRequest(router, "GET", "/api/v1/service-requests?status=accepted&limit=5&offset=10", nil)

		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, 2, body.Count)
	})

	t.Run("caps page size", func(t *testing.T) {
		svc.On("List", mock.Anything, mock.MatchedBy(func(f models.ServiceRequestFilter) bool {
			return f.Limit == maxPageSize
		})).Return([]models.ServiceRequestView{}, nil).Once()

		w := doRequest(router, "GET", "/api/v1/service-requests?limit=1000", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("bad offset", func(t *testing.T) {
		w := doRequest(router, "GET", "/api/v1/service-requests?offset=-1", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	svc.AssertExpectations(t)
}

func TestServiceRequestHandler_GetNotVisible(t *testing.T) {
	userID := uuid.New()
	id := uuid.New()
	svc := new(mockRequests)
	router := setupRequestRouter(svc, userID, models.RoleHousehold)

	svc.On("Get", mock.Anything, id).Return(nil, services.ErrRequestNotFound).Once()

	w := doRequest(router, "GET", "/api/v1/service-requests/"+id.String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "REQUEST_NOT_FOUND", decodeError(t, w).Code)
}

func TestServiceRequestHandler_InvalidID(t *testing.T) {
	svc := new(mockRequests)
	router := setupRequestRouter(svc, uuid.New(), models.RoleAdmin)

	w := doRequest(router, "GET", "/api/v1/service-requests/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "id", decodeError(t, w).Field)
}

func TestServiceRequestHandler_Actions(t *testing.T) {
	adminID := uuid.New()
	id := uuid.New()
	svc := new(mockRequests)
	router := setupRequestRouter(svc, adminID, models.RoleAdmin)

	svc.On("AllowedActions", lifecycle.Actor{ID: adminID, Role: models.RoleAdmin}, id).
		Return(&models.ActionSet{ServiceRequestID: id, AllowedActions: []string{"assign", "cancel"}}, nil).Once()

	w := doRequest(router, "GET", "/api/v1/service-requests/"+id.String()+"/actions", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body models.ActionSet
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, id, body.ServiceRequestID)
	assert.Equal(t, []string{"assign", "cancel"}, body.AllowedActions)
	assert.NotContains(t, w.Body.String(), "defaults")
}

func TestServiceRequestHandler_ActionsWithDefaults(t *testing.T) {
	companyUser := uuid.New()
	id := uuid.New()
	svc := new(mockRequests)
	router := setupRequestRouter(svc, companyUser, models.RoleCompany)

	date, clock := "2026-11-02", "09:30:00"
	svc.On("AllowedActions", lifecycle.Actor{ID: companyUser, Role: models.RoleCompany}, id).
		Return(&models.ActionSet{
			ServiceRequestID: id,
			AllowedActions:   []string{"accept"},
			Defaults:         map[string]models.ActionDefaults{"accept": {ScheduledDate: &date, ScheduledTime: &clock}},
		}, nil).Once()

	w := doRequest(router, "GET", "/api/v1/service-requests/"+id.String()+"/actions", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body models.ActionSet
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Contains(t, body.Defaults, "accept")
	assert.Equal(t, "2026-11-02", *body.Defaults["accept"].ScheduledDate)
	assert.Equal(t, "09:30:00", *body.Defaults["accept"].ScheduledTime)
	assert.Nil(t, body.Defaults["accept"].FinalAmount)
}

func TestServiceRequestHandler_Payment(t *testing.T) {
	id := uuid.New()
	svc := new(mockRequests)
	router := setupRequestRouter(svc, uuid.New(), models.RoleHousehold)

	t.Run("none yet", func(t *testing.T) {
		svc.On("GetPayment", mock.Anything, id).Return(nil, nil).Once()

		w := doRequest(router, "GET", "/api/v1/service-requests/"+id.String()+"/payment", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "PAYMENT_NOT_FOUND", decodeError(t, w).Code)
	})

	t.Run("pending payment", func(t *testing.T) {
		payment := &models.Payment{ID: uuid.New(), ServiceRequestID: id, Amount: decimal.NewFromInt(6000), Status: models.PaymentStatusPending}
		svc.On("GetPayment", mock.Anything, id).Return(payment, nil).Once()

		w := doRequest(router, "GET", "/api/v1/service-requests/"+id.String()+"/payment", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"pending"`)
	})
}

func TestServiceRequestHandler_Perform(t *testing.T) {
	companyUser := uuid.New()
	id := uuid.New()
	svc := new(mockRequests)
	router := setupRequestRouter(svc, companyUser, models.RoleCompany)
	actor := lifecycle.Actor{ID: companyUser, Role: models.RoleCompany}

	t.Run("accept decodes typed payload", func(t *testing.T) {
		accepted := &models.ServiceRequestView{ServiceRequest: models.ServiceRequest{ID: id, Status: models.ServiceRequestStatusAccepted}}
		svc.On("Perform", actor, id, mock.MatchedBy(func(p lifecycle.Payload) bool {
			ap, ok := p.(lifecycle.AcceptPayload)
			return ok && ap.ScheduledDate == "2025-03-02" && ap.EstimatedCost != nil && ap.EstimatedCost.Equal(decimal.NewFromInt(5000))
		})).Return(accepted, nil).Once()

		w := doRequest(router, "POST", "/api/v1/service-requests/"+id.String()+"/accept", map[string]interface{}{
			"scheduled_date":     "2025-03-02",
			"scheduled_time":     "10:00",
			"estimated_duration": "2",
			"estimated_cost":     "5000",
		})

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), `"status":"accepted"`)
	})

	t.Run("kebab-case action with empty body", func(t *testing.T) {
		svc.On("Perform", actor, id, lifecycle.ConfirmPaymentPayload{}).
			Return(nil, &lifecycle.Error{Kind: lifecycle.ErrReferenceNotFound, Action: lifecycle.ActionConfirmPayment, Reason: "no payment for request"}).Once()

		w := doRequest(router, "POST", "/api/v1/service-requests/"+id.String()+"/confirm-payment", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "REFERENCE_NOT_FOUND", decodeError(t, w).Code)
	})

	t.Run("invalid transition", func(t *testing.T) {
		svc.On("Perform", actor, id, lifecycle.StartPayload{}).
			Return(nil, &lifecycle.Error{Kind: lifecycle.ErrInvalidTransition, Action: lifecycle.ActionStart, Reason: "request is assigned"}).Once()

		w := doRequest(router, "POST", "/api/v1/service-requests/"+id.String()+"/start", nil)

		assert.Equal(t, http.StatusConflict, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, "INVALID_TRANSITION", resp.Code)
		assert.Equal(t, "request is assigned", resp.Message)
	})

	t.Run("locked", func(t *testing.T) {
		svc.On("Perform", actor, id, lifecycle.CompletePayload{CompletionNotes: "done"}).
			Return(nil, services.ErrRecordLocked).Once()

		w := doRequest(router, "POST", "/api/v1/service-requests/"+id.String()+"/complete", map[string]string{"completion_notes": "done"})

		assert.Equal(t, http.StatusLocked, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := doRequest(router, "POST", "/api/v1/service-requests/"+id.String()+"/accept", `{"estimated_cost": [}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).Code)
	})

	t.Run("unknown action", func(t *testing.T) {
		w := doRequest(router, "POST", "/api/v1/service-requests/"+id.String()+"/teleport", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "UNKNOWN_ACTION", decodeError(t, w).Code)
	})

	svc.AssertExpectations(t)
}
