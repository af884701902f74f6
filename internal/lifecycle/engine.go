package lifecycle

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sadiqgoni/GreenCycle/internal/models"
	"github.com/shopspring/decimal"
)

const maxCompanyNotesLength = 500

// Snapshot is the persisted state an action is evaluated against
type Snapshot struct {
	Request models.ServiceRequest
	Payment *models.Payment
}

// Env carries inputs resolved outside the engine
type Env struct {
	// Company is the company named by an assign payload, nil when it does not exist
	Company *models.Company
	Now     time.Time
	// CommissionPercentage is used when the payload has none; nil means DefaultCommissionPercentage
	CommissionPercentage *decimal.Decimal
	NewID                func() uuid.UUID
}

// Outcome is the new state produced by a successful action
type Outcome struct {
	Action           ActionKind
	From             models.ServiceRequestStatus
	To               models.ServiceRequestStatus
	Request          models.ServiceRequest
	Payment          *models.Payment
	PaymentCreated   bool
	PaymentConfirmed bool
	// ReleasedCompanyID is the company unbound by a cancellation
	ReleasedCompanyID *uuid.UUID
}

// AllowedActions returns the actions actor may perform on the record right now
func AllowedActions(s Snapshot, actor Actor) []ActionKind {
	allowed := make([]ActionKind, 0, len(Actions))
	for _, action := range Actions {
		if guard(action, s, actor) == nil {
			allowed = append(allowed, action)
		}
	}
	return allowed
}

// IsAllowed reports whether actor may perform action on the record right now
func IsAllowed(s Snapshot, actor Actor, action ActionKind) bool {
	return guard(action, s, actor) == nil
}

// Apply validates and performs one action. The snapshot is never modified;
// the returned Outcome holds the complete new state to persist.
func Apply(s Snapshot, actor Actor, payload Payload, env Env) (Outcome, error) {
	if payload == nil {
		return Outcome{}, validation("", "payload", "is required")
	}
	payload = deref(payload)
	action := payload.Action()

	if err := guard(action, s, actor); err != nil {
		return Outcome{}, err
	}

	now := env.Now
	if now.IsZero() {
		now = time.Now()
	}

	out := Outcome{
		Action:  action,
		From:    s.Request.Status,
		Request: s.Request.Clone(),
		Payment: s.Payment.Clone(),
	}

	var err error
	switch p := payload.(type) {
	case AssignPayload:
		err = applyAssign(&out, p, env)
	case AcceptPayload:
		err = applyAccept(&out, p)
	case StartPayload:
		out.Request.StartedAt = &now
		out.Request.Status = models.ServiceRequestStatusInProgress
	case CompletePayload:
		err = applyComplete(&out, p, now)
	case CancelPayload:
		out.ReleasedCompanyID = out.Request.CompanyID
		out.Request.CompanyID = nil
		out.Request.CompanyUserID = nil
		out.Request.Status = models.ServiceRequestStatusCancelled
	case RequestPaymentPayload:
		err = applyRequestPayment(&out, p, env, now)
	case ConfirmPaymentPayload:
		out.Payment.Status = models.PaymentStatusConfirmed
		out.Payment.PaidAt = &now
		out.Payment.UpdatedAt = now
		out.PaymentConfirmed = true
		out.Request.PaymentStatus = models.RequestPaymentStatusPaid
		out.Request.PaymentReceivedAt = &now
	case ProcessCommissionPayload:
		err = applyProcessCommission(&out, p, env, now)
	default:
		err = validation(action, "payload", "unsupported payload %T", payload)
	}
	if err != nil {
		return Outcome{}, err
	}

	out.Request.UpdatedAt = now
	out.To = out.Request.Status
	return out, nil
}

// guard checks actor, status and precondition of an action without looking at its payload
func guard(action ActionKind, s Snapshot, actor Actor) *Error {
	r := s.Request
	switch action {
	case ActionAssign:
		if actor.Role != models.RoleAdmin {
			return invalid(action, "only an admin can assign a company")
		}
		return requireStatus(action, r.Status, models.ServiceRequestStatusPending)

	case ActionAccept:
		if err := requireAssignedCompany(action, r, actor); err != nil {
			return err
		}
		return requireStatus(action, r.Status, models.ServiceRequestStatusAssigned)

	case ActionStart:
		if err := requireAssignedCompany(action, r, actor); err != nil {
			return err
		}
		return requireStatus(action, r.Status, models.ServiceRequestStatusAccepted)

	case ActionComplete:
		if err := requireAssignedCompany(action, r, actor); err != nil {
			return err
		}
		return requireStatus(action, r.Status, models.ServiceRequestStatusInProgress)

	case ActionCancel:
		if err := requireHousehold(action, r, actor); err != nil {
			return err
		}
		return requireStatus(action, r.Status, models.ServiceRequestStatusAssigned, models.ServiceRequestStatusAccepted)

	case ActionRequestPayment:
		if err := requireHousehold(action, r, actor); err != nil {
			return err
		}
		if err := requireStatus(action, r.Status, models.ServiceRequestStatusCompleted); err != nil {
			return err
		}
		if s.Payment != nil {
			return invalid(action, "a payment already exists for this request")
		}
		if !r.FinalAmount.Valid {
			return invalid(action, "request has no final amount")
		}
		return nil

	case ActionConfirmPayment:
		if actor.Role != models.RoleAdmin {
			return invalid(action, "only an admin can confirm payments")
		}
		if s.Payment == nil {
			return notFound(action, "no payment exists for this request")
		}
		if !s.Payment.IsPending() {
			return invalid(action, "payment is %s, expected %s", s.Payment.Status, models.PaymentStatusPending)
		}
		return nil

	case ActionProcessCommission:
		if actor.Role != models.RoleAdmin {
			return invalid(action, "only an admin can process commissions")
		}
		if err := requireStatus(action, r.Status, models.ServiceRequestStatusCompleted); err != nil {
			return err
		}
		if r.CommissionPaidAt != nil {
			return invalid(action, "commission was already processed")
		}
		if !s.Payment.IsConfirmed() {
			return invalid(action, "payment has not been confirmed")
		}
		if !r.FinalAmount.Valid {
			return invalid(action, "request has no final amount")
		}
		return nil
	}

	return invalid(action, "unknown action")
}

func requireStatus(action ActionKind, current models.ServiceRequestStatus, allowed ...models.ServiceRequestStatus) *Error {
	for _, s := range allowed {
		if current == s {
			return nil
		}
	}
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return invalid(action, "request is %s, expected %s", current, strings.Join(names, " or "))
}

func requireAssignedCompany(action ActionKind, r models.ServiceRequest, actor Actor) *Error {
	if actor.Role != models.RoleCompany {
		return invalid(action, "only the assigned company can %s this request", action)
	}
	if r.CompanyUserID == nil || *r.CompanyUserID != actor.ID {
		return invalid(action, "request is not assigned to this company")
	}
	return nil
}

func requireHousehold(action ActionKind, r models.ServiceRequest, actor Actor) *Error {
	if actor.Role != models.RoleHousehold || r.HouseholdID != actor.ID {
		return invalid(action, "only the requesting household can %s this request", action)
	}
	return nil
}

func applyAssign(out *Outcome, p AssignPayload, env Env) error {
	if p.CompanyID == nil || *p.CompanyID == uuid.Nil {
		return validation(ActionAssign, "company_id", "is required")
	}
	company := env.Company
	if company == nil || company.ID != *p.CompanyID {
		return notFound(ActionAssign, "company %s does not exist", *p.CompanyID)
	}
	if !company.IsVerified() {
		return invalid(ActionAssign, "company %s is not verified (%s)", company.ID, company.VerificationStatus)
	}
	if !company.IsOpen() {
		return invalid(ActionAssign, "company %s is not open for new jobs", company.ID)
	}

	companyID := company.ID
	userID := company.UserID
	out.Request.CompanyID = &companyID
	out.Request.CompanyUserID = &userID
	out.Request.Status = models.ServiceRequestStatusAssigned
	return nil
}

func applyAccept(out *Outcome, p AcceptPayload) error {
	date, err := parseDate(ActionAccept, "scheduled_date", p.ScheduledDate)
	if err != nil {
		return err
	}
	clock, err := parseClock(ActionAccept, "scheduled_time", p.ScheduledTime)
	if err != nil {
		return err
	}
	if p.EstimatedDuration == nil {
		return validation(ActionAccept, "estimated_duration", "is required")
	}
	if !p.EstimatedDuration.IsPositive() {
		return validation(ActionAccept, "estimated_duration", "must be greater than zero")
	}
	if !p.EstimatedDuration.Equal(p.EstimatedDuration.Round(2)) {
		return validation(ActionAccept, "estimated_duration", "must have at most 2 decimal places")
	}
	if p.EstimatedDuration.GreaterThan(MaxDuration) {
		return validation(ActionAccept, "estimated_duration", "must be at most %s", MaxDuration.StringFixed(2))
	}
	if err := validateMoney(ActionAccept, "estimated_cost", p.EstimatedCost); err != nil {
		return err
	}

	var notes *string
	if p.CompanyNotes != nil {
		trimmed := strings.TrimSpace(*p.CompanyNotes)
		if utf8.RuneCountInString(trimmed) > maxCompanyNotesLength {
			return validation(ActionAccept, "company_notes", "must be at most %d characters", maxCompanyNotesLength)
		}
		if trimmed != "" {
			notes = &trimmed
		}
	}

	out.Request.ScheduledDate = &date
	out.Request.ScheduledTime = &clock
	out.Request.CompanyNotes = notes
	out.Request.EstimatedDuration = decimal.NewNullDecimal(*p.EstimatedDuration)
	out.Request.EstimatedCost = decimal.NewNullDecimal(*p.EstimatedCost)
	out.Request.Status = models.ServiceRequestStatusAccepted
	return nil
}

func applyComplete(out *Outcome, p CompletePayload, now time.Time) error {
	if err := validateMoney(ActionComplete, "final_amount", p.FinalAmount); err != nil {
		return err
	}
	notes := strings.TrimSpace(p.CompletionNotes)
	if notes == "" {
		return validation(ActionComplete, "completion_notes", "is required")
	}
	photos := make(pq.StringArray, 0, len(p.CompletionPhotos))
	for _, ref := range p.CompletionPhotos {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			return validation(ActionComplete, "completion_photos", "must not contain empty references")
		}
		photos = append(photos, ref)
	}

	out.Request.FinalAmount = decimal.NewNullDecimal(*p.FinalAmount)
	out.Request.CompletionNotes = &notes
	out.Request.CompletionPhotos = photos
	out.Request.CompletedAt = &now
	out.Request.Status = models.ServiceRequestStatusCompleted
	return nil
}

func applyRequestPayment(out *Outcome, p RequestPaymentPayload, env Env, now time.Time) error {
	if p.PaymentMethod == "" {
		return validation(ActionRequestPayment, "payment_method", "is required")
	}
	if !p.PaymentMethod.IsValid() {
		return validation(ActionRequestPayment, "payment_method", "must be %s or %s",
			models.PaymentMethodCreditCard, models.PaymentMethodBankTransfer)
	}

	newID := env.NewID
	if newID == nil {
		newID = uuid.New
	}
	out.Payment = &models.Payment{
		ID:               newID(),
		ServiceRequestID: out.Request.ID,
		PaymentMethod:    p.PaymentMethod,
		Amount:           out.Request.FinalAmount.Decimal,
		Status:           models.PaymentStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	out.PaymentCreated = true
	if out.Request.PaymentStatus == "" {
		out.Request.PaymentStatus = models.RequestPaymentStatusPending
	}
	return nil
}

func applyProcessCommission(out *Outcome, p ProcessCommissionPayload, env Env, now time.Time) error {
	pct := DefaultCommissionPercentage
	if env.CommissionPercentage != nil {
		pct = *env.CommissionPercentage
	}
	if p.CommissionPercentage != nil {
		pct = *p.CommissionPercentage
	}
	if err := ValidatePercentage(pct); err != nil {
		return validation(ActionProcessCommission, "commission_percentage", "%s", err.Error())
	}

	commission, payout := Settle(out.Request.FinalAmount.Decimal, pct)
	out.Request.CommissionPercentage = decimal.NewNullDecimal(pct)
	out.Request.CommissionAmount = decimal.NewNullDecimal(commission)
	out.Request.CompanyPayout = decimal.NewNullDecimal(payout)
	out.Request.CommissionPaidAt = &now
	return nil
}

func parseDate(action ActionKind, field, value string) (time.Time, *Error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, validation(action, field, "is required")
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, validation(action, field, "must be a date in YYYY-MM-DD format")
	}
	return t, nil
}

func parseClock(action ActionKind, field, value string) (string, *Error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", validation(action, field, "is required")
	}
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("15:04:05"), nil
		}
	}
	return "", validation(action, field, "must be a time in HH:MM or HH:MM:SS format")
}

func validateMoney(action ActionKind, field string, v *decimal.Decimal) *Error {
	if v == nil {
		return validation(action, field, "is required")
	}
	if !v.IsPositive() {
		return validation(action, field, "must be greater than zero")
	}
	if !v.Equal(v.Round(2)) {
		return validation(action, field, "must have at most 2 decimal places")
	}
	if v.GreaterThan(MaxMoney) {
		return validation(action, field, "must be at most %s", MaxMoney.StringFixed(2))
	}
	return nil
}
