package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sadiqgoni/GreenCycle/internal/database"
	"github.com/sadiqgoni/GreenCycle/internal/lifecycle"
	"github.com/sadiqgoni/GreenCycle/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
)

// memStore keeps requests, payments and companies in memory and applies
// SaveTransition with the same status/version guard as the SQL repository.
type memStore struct {
	mu         sync.Mutex
	requests   map[uuid.UUID]models.ServiceRequest
	payments   map[uuid.UUID]models.Payment
	companies  map[uuid.UUID]models.Company
	lastFilter models.ServiceRequestFilter
	saveErr    error
	companyErr error
}

func newMemStore() *memStore {
	return &memStore{
		requests:  make(map[uuid.UUID]models.ServiceRequest),
		payments:  make(map[uuid.UUID]models.Payment),
		companies: make(map[uuid.UUID]models.Company),
	}
}

func (m *memStore) Create(ctx context.Context, req *models.ServiceRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req.Status = models.ServiceRequestStatusPending
	req.PaymentStatus = models.RequestPaymentStatusPending
	req.Version = 1
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	m.requests[req.ID] = req.Clone()
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	c := r.Clone()
	return &c, nil
}

func (m *memStore) List(ctx context.Context, filter models.ServiceRequestFilter) ([]models.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	out := []models.ServiceRequest{}
	for _, r := range m.requests {
		if filter.HouseholdID != nil && r.HouseholdID != *filter.HouseholdID {
			continue
		}
		if filter.CompanyUserID != nil && (r.CompanyUserID == nil || *r.CompanyUserID != *filter.CompanyUserID) {
			continue
		}
		if filter.ExcludePending && r.Status == models.ServiceRequestStatusPending {
			continue
		}
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		out = append(out, r.Clone())
	}
	return out, nil
}

func (m *memStore) SaveTransition(ctx context.Context, w *database.TransitionWrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	current, ok := m.requests[w.Request.ID]
	if !ok || current.Status != w.ExpectedStatus || current.Version != w.ExpectedVersion {
		return database.ErrStaleRecord
	}
	if w.CreatePayment {
		if _, exists := m.payments[w.Request.ID]; exists {
			return database.ErrStaleRecord
		}
		m.payments[w.Request.ID] = *w.Payment.Clone()
	}
	if w.ConfirmPayment {
		p, exists := m.payments[w.Request.ID]
		if !exists || p.Status != models.PaymentStatusPending {
			return database.ErrStaleRecord
		}
		m.payments[w.Request.ID] = *w.Payment.Clone()
	}
	w.Request.Version = w.ExpectedVersion + 1
	m.requests[w.Request.ID] = w.Request.Clone()
	return nil
}

func (m *memStore) GetByServiceRequestID(ctx context.Context, requestID uuid.UUID) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[requestID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// companyLookup adapts memStore to CompanyLookup
type companyLookup struct{ *memStore }

func (c companyLookup) GetByID(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.companyErr != nil {
		return nil, c.companyErr
	}
	company, ok := c.companies[id]
	if !ok {
		return nil, nil
	}
	return &company, nil
}

type fakeAuditor struct {
	mu      sync.Mutex
	entries []TransitionAudit
}

func (a *fakeAuditor) LogTransition(ctx context.Context, t TransitionAudit) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, t)
	return nil
}

func (a *fakeAuditor) results() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Action + ":" + e.Result
	}
	return out
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyTransition(ctx context.Context, out lifecycle.Outcome, company *models.Company) {
	m.Called(out.Action, company)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Send(ctx context.Context, phone, message string) (string, error) {
	args := m.Called(phone, message)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) GetName() string { return "mock" }

type lockerFunc func(ctx context.Context, id string) (func(), error)

func (f lockerFunc) Lock(ctx context.Context, id string) (func(), error) { return f(ctx, id) }

func nullLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}
