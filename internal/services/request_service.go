package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sadiqgoni/GreenCycle/internal/database"
	"github.com/sadiqgoni/GreenCycle/internal/lifecycle"
	"github.com/sadiqgoni/GreenCycle/internal/models"
	"github.com/sadiqgoni/GreenCycle/pkg/redislock"
	"github.com/sadiqgoni/GreenCycle/pkg/validator"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ServiceRequestStore is the persistence the orchestrator needs
type ServiceRequestStore interface {
	Create(ctx context.Context, req *models.ServiceRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error)
	List(ctx context.Context, filter models.ServiceRequestFilter) ([]models.ServiceRequest, error)
	SaveTransition(ctx context.Context, w *database.TransitionWrite) error
}

// PaymentStore loads the payment attached to a request
type PaymentStore interface {
	GetByServiceRequestID(ctx context.Context, requestID uuid.UUID) (*models.Payment, error)
}

// CompanyLookup resolves companies by ID
type CompanyLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Company, error)
}

// Locker serializes writers of one record
type Locker interface {
	Lock(ctx context.Context, id string) (func(), error)
}

// TransitionAuditor records attempted actions
type TransitionAuditor interface {
	LogTransition(ctx context.Context, t TransitionAudit) error
}

// TransitionNotifier tells the household about progress
type TransitionNotifier interface {
	NotifyTransition(ctx context.Context, out lifecycle.Outcome, company *models.Company)
}

// RequestService runs lifecycle actions against stored service requests
type RequestService struct {
	requests   ServiceRequestStore
	payments   PaymentStore
	companies  CompanyLookup
	locker     Locker
	audit      TransitionAuditor
	notifier   TransitionNotifier
	commission decimal.Decimal
	phone      *validator.PhoneValidator
	logger     logrus.FieldLogger
	now        func() time.Time
}

// RequestServiceDeps groups the collaborators of RequestService
type RequestServiceDeps struct {
	Requests  ServiceRequestStore
	Payments  PaymentStore
	Companies CompanyLookup
	// Locker may be nil; the versioned write still rejects concurrent updates
	Locker   Locker
	Audit    TransitionAuditor
	Notifier TransitionNotifier
	// DefaultCommission applies when process_commission carries no percentage
	DefaultCommission decimal.Decimal
	Logger            logrus.FieldLogger
}

// NewRequestService creates a request service
func NewRequestService(deps RequestServiceDeps) *RequestService {
	locker := deps.Locker
	if locker == nil {
		locker = redislock.Noop{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RequestService{
		requests:   deps.Requests,
		payments:   deps.Payments,
		companies:  deps.Companies,
		locker:     locker,
		audit:      deps.Audit,
		notifier:   deps.Notifier,
		commission: deps.DefaultCommission,
		phone:      validator.NewPhoneValidator(),
		logger:     logger,
		now:        time.Now,
	}
}

// Create files a new pending request for a household
func (s *RequestService) Create(ctx context.Context, actor lifecycle.Actor, in models.CreateServiceRequestRequest) (*models.ServiceRequestView, error) {
	if actor.Role != models.RoleHousehold {
		return nil, ErrForbidden
	}

	wasteType := strings.TrimSpace(in.WasteType)
	if wasteType == "" {
		return nil, &FieldError{Field: "waste_type", Reason: "is required"}
	}
	address := strings.TrimSpace(in.Address)
	if address == "" {
		return nil, &FieldError{Field: "address", Reason: "is required"}
	}

	preferredDate, err := time.Parse("2006-01-02", strings.TrimSpace(in.PreferredDate))
	if err != nil {
		return nil, &FieldError{Field: "preferred_date", Reason: "must be a date in YYYY-MM-DD format"}
	}
	preferredTime, err := normalizeClock(in.PreferredTime)
	if err != nil {
		return nil, &FieldError{Field: "preferred_time", Reason: "must be a time in HH:MM format"}
	}
	clientNumber, err := s.phone.Validate(in.ClientNumber)
	if err != nil {
		return nil, &FieldError{Field: "client_number", Reason: err.Error()}
	}

	req := &models.ServiceRequest{
		ID:            uuid.New(),
		HouseholdID:   actor.ID,
		WasteType:     wasteType,
		Description:   trimmedOrNil(in.Description),
		Quantity:      trimmedOrNil(in.Quantity),
		PreferredDate: &preferredDate,
		PreferredTime: &preferredTime,
		ClientNumber:  clientNumber,
		Address:       address,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"service_request_id": req.ID,
		"household_id":       actor.ID,
	}).Info("Service request created")

	return s.view(*req, nil, actor), nil
}

// Get returns a request visible to actor, annotated with its allowed actions
func (s *RequestService) Get(ctx context.Context, actor lifecycle.Actor, id uuid.UUID) (*models.ServiceRequestView, error) {
	snap, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.view(snap.Request, snap.Payment, actor), nil
}

// AllowedActions lists what actor may do to the request right now, with
// suggested form values for those actions
func (s *RequestService) AllowedActions(ctx context.Context, actor lifecycle.Actor, id uuid.UUID) (*models.ActionSet, error) {
	snap, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	allowed := lifecycle.AllowedActions(*snap, actor)
	return &models.ActionSet{
		ServiceRequestID: id,
		AllowedActions:   actionNames(allowed),
		Defaults:         lifecycle.DefaultsFor(snap.Request, allowed),
	}, nil
}

// GetPayment returns the payment of a visible request, nil when none exists yet
func (s *RequestService) GetPayment(ctx context.Context, actor lifecycle.Actor, id uuid.UUID) (*models.Payment, error) {
	snap, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return snap.Payment, nil
}

// List returns requests scoped to actor. Households see their own requests,
// companies see requests assigned to them past pending, admins see all.
func (s *RequestService) List(ctx context.Context, actor lifecycle.Actor, filter models.ServiceRequestFilter) ([]models.ServiceRequestView, error) {
	filter.HouseholdID = nil
	filter.CompanyUserID = nil
	filter.ExcludePending = false

	switch actor.Role {
	case models.RoleHousehold:
		filter.HouseholdID = &actor.ID
	case models.RoleCompany:
		filter.CompanyUserID = &actor.ID
		filter.ExcludePending = true
	case models.RoleAdmin:
	default:
		return nil, ErrForbidden
	}

	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, &FieldError{Field: "status", Reason: fmt.Sprintf("unknown status %q", *filter.Status)}
	}

	requests, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	views := make([]models.ServiceRequestView, 0, len(requests))
	for _, r := range requests {
		var payment *models.Payment
		if r.Status == models.ServiceRequestStatusCompleted || r.Status == models.ServiceRequestStatusPaid {
			payment, err = s.payments.GetByServiceRequestID(ctx, r.ID)
			if err != nil {
				return nil, err
			}
		}
		views = append(views, *s.view(r, payment, actor))
	}
	return views, nil
}

// Perform runs one lifecycle action and persists its outcome atomically
func (s *RequestService) Perform(ctx context.Context, actor lifecycle.Actor, id uuid.UUID, payload lifecycle.Payload, client ClientInfo) (*models.ServiceRequestView, error) {
	if payload == nil {
		return nil, &FieldError{Field: "payload", Reason: "is required"}
	}
	action := string(payload.Action())
	log := s.logger.WithFields(logrus.Fields{
		"service_request_id": id,
		"action":             action,
		"actor_id":           actor.ID,
		"actor_role":         actor.Role,
	})

	release, err := s.locker.Lock(ctx, id.String())
	if err != nil {
		if errors.Is(err, redislock.ErrNotAcquired) {
			recordTransition(action, ResultConflict)
			return nil, ErrRecordLocked
		}
		recordTransition(action, ResultError)
		return nil, err
	}
	defer release()

	snap, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		recordTransition(action, ResultRejected)
		return nil, err
	}

	company, err := s.resolveCompany(ctx, snap.Request, payload)
	if err != nil {
		recordTransition(action, ResultError)
		return nil, err
	}

	pct := s.commission
	out, err := lifecycle.Apply(*snap, actor, payload, lifecycle.Env{
		Company:              company,
		Now:                  s.now(),
		CommissionPercentage: &pct,
		NewID:                uuid.New,
	})
	if err != nil {
		recordTransition(action, ResultRejected)
		s.auditTransition(ctx, actor, snap.Request, action, "", ResultRejected, err.Error(), nil, client)
		log.WithError(err).Info("Lifecycle action rejected")
		return nil, err
	}

	write := &database.TransitionWrite{
		Request:         &out.Request,
		ExpectedStatus:  snap.Request.Status,
		ExpectedVersion: snap.Request.Version,
		Payment:         out.Payment,
		CreatePayment:   out.PaymentCreated,
		ConfirmPayment:  out.PaymentConfirmed,
	}
	if err := s.requests.SaveTransition(ctx, write); err != nil {
		if errors.Is(err, database.ErrStaleRecord) {
			recordTransition(action, ResultConflict)
			log.Warn("Lifecycle action lost a concurrent update")
			return nil, ErrConcurrentUpdate
		}
		recordTransition(action, ResultError)
		return nil, err
	}

	recordTransition(action, ResultOK)
	s.auditTransition(ctx, actor, snap.Request, action, out.To, ResultOK, "", out.ReleasedCompanyID, client)
	log.WithFields(logrus.Fields{"from": out.From, "to": out.To}).Info("Lifecycle action applied")

	if s.notifier != nil {
		if company == nil && out.Request.CompanyID != nil {
			var err error
			if company, err = s.companies.GetByID(ctx, *out.Request.CompanyID); err != nil {
				log.WithError(err).Warn("Failed to load company for notification")
			}
		}
		s.notifier.NotifyTransition(ctx, out, company)
	}

	return s.view(out.Request, out.Payment, actor), nil
}

// resolveCompany loads the company named by an assign payload. A missing
// company is left nil so the engine reports it.
func (s *RequestService) resolveCompany(ctx context.Context, r models.ServiceRequest, payload lifecycle.Payload) (*models.Company, error) {
	var companyID *uuid.UUID
	switch p := payload.(type) {
	case lifecycle.AssignPayload:
		companyID = p.CompanyID
	case *lifecycle.AssignPayload:
		if p != nil {
			companyID = p.CompanyID
		}
	}
	if companyID == nil || *companyID == uuid.Nil {
		return nil, nil
	}

	company, err := s.companies.GetByID(ctx, *companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve company: %w", err)
	}
	return company, nil
}

// loadVisible reads the snapshot and hides requests the actor may not see
func (s *RequestService) loadVisible(ctx context.Context, actor lifecycle.Actor, id uuid.UUID) (*lifecycle.Snapshot, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil || !canSee(actor, *req) {
		return nil, ErrRequestNotFound
	}

	payment, err := s.payments.GetByServiceRequestID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &lifecycle.Snapshot{Request: *req, Payment: payment}, nil
}

func canSee(actor lifecycle.Actor, r models.ServiceRequest) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleHousehold:
		return r.HouseholdID == actor.ID
	case models.RoleCompany:
		return r.CompanyUserID != nil && *r.CompanyUserID == actor.ID
	}
	return false
}

func (s *RequestService) view(r models.ServiceRequest, payment *models.Payment, actor lifecycle.Actor) *models.ServiceRequestView {
	allowed := lifecycle.AllowedActions(lifecycle.Snapshot{Request: r, Payment: payment}, actor)
	return &models.ServiceRequestView{
		ServiceRequest: r,
		Payment:        payment,
		AllowedActions: actionNames(allowed),
		ActionDefaults: lifecycle.DefaultsFor(r, allowed),
	}
}

func (s *RequestService) auditTransition(ctx context.Context, actor lifecycle.Actor, r models.ServiceRequest, action string, to models.ServiceRequestStatus, result, reason string, released *uuid.UUID, client ClientInfo) {
	if s.audit == nil {
		return
	}
	err := s.audit.LogTransition(ctx, TransitionAudit{
		ActorID:           actor.ID,
		ActorRole:         actor.Role,
		RequestID:         r.ID,
		Action:            action,
		From:              r.Status,
		To:                to,
		Result:            result,
		Reason:            reason,
		ReleasedCompanyID: released,
		Client:            client,
	})
	if err != nil {
		s.logger.WithError(err).WithField("service_request_id", r.ID).Warn("Failed to write audit log")
	}
}

func actionNames(actions []lifecycle.ActionKind) []string {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	return names
}

func normalizeClock(value string) (string, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("15:04:05"), nil
		}
	}
	return "", fmt.Errorf("invalid time %q", value)
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
