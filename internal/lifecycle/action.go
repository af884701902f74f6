package lifecycle

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/sadiqgoni/GreenCycle/internal/models"
	"github.com/shopspring/decimal"
)

// ActionKind names a transition of the service request lifecycle
type ActionKind string

const (
	ActionAssign            ActionKind = "assign"
	ActionAccept            ActionKind = "accept"
	ActionStart             ActionKind = "start"
	ActionComplete          ActionKind = "complete"
	ActionCancel            ActionKind = "cancel"
	ActionRequestPayment    ActionKind = "request_payment"
	ActionConfirmPayment    ActionKind = "confirm_payment"
	ActionProcessCommission ActionKind = "process_commission"
)

// Actions lists every action in the order they are offered
var Actions = []ActionKind{
	ActionAssign,
	ActionAccept,
	ActionStart,
	ActionComplete,
	ActionCancel,
	ActionRequestPayment,
	ActionConfirmPayment,
	ActionProcessCommission,
}

// ParseAction accepts both snake_case and kebab-case names
func ParseAction(name string) (ActionKind, bool) {
	normalized := ActionKind(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
	for _, a := range Actions {
		if a == normalized {
			return a, true
		}
	}
	return "", false
}

// Actor is the authenticated user performing an action
type Actor struct {
	ID   uuid.UUID
	Role models.UserRole
}

// Payload is the typed input of one action
type Payload interface {
	Action() ActionKind
}

// AssignPayload binds a company to a pending request
type AssignPayload struct {
	CompanyID *uuid.UUID `json:"company_id"`
}

// AcceptPayload is the company's schedule and quote
type AcceptPayload struct {
	ScheduledDate     string           `json:"scheduled_date"`
	ScheduledTime     string           `json:"scheduled_time"`
	CompanyNotes      *string          `json:"company_notes"`
	EstimatedDuration *decimal.Decimal `json:"estimated_duration"`
	EstimatedCost     *decimal.Decimal `json:"estimated_cost"`
}

// StartPayload has no fields
type StartPayload struct{}

// CompletePayload records the finished job
type CompletePayload struct {
	FinalAmount      *decimal.Decimal `json:"final_amount"`
	CompletionNotes  string           `json:"completion_notes"`
	CompletionPhotos []string         `json:"completion_photos"`
}

// CancelPayload has no fields
type CancelPayload struct{}

// RequestPaymentPayload opens a payment for a completed request
type RequestPaymentPayload struct {
	PaymentMethod models.PaymentMethod `json:"payment_method"`
}

// ConfirmPaymentPayload has no fields
type ConfirmPaymentPayload struct{}

// ProcessCommissionPayload overrides the default commission percentage when set
type ProcessCommissionPayload struct {
	CommissionPercentage *decimal.Decimal `json:"commission_percentage"`
}

func (AssignPayload) Action() ActionKind            { return ActionAssign }
func (AcceptPayload) Action() ActionKind            { return ActionAccept }
func (StartPayload) Action() ActionKind             { return ActionStart }
func (CompletePayload) Action() ActionKind          { return ActionComplete }
func (CancelPayload) Action() ActionKind            { return ActionCancel }
func (RequestPaymentPayload) Action() ActionKind    { return ActionRequestPayment }
func (ConfirmPaymentPayload) Action() ActionKind    { return ActionConfirmPayment }
func (ProcessCommissionPayload) Action() ActionKind { return ActionProcessCommission }

// DecodePayload builds the typed payload for action from a JSON body.
// An empty body decodes to the zero payload.
func DecodePayload(action ActionKind, body []byte) (Payload, error) {
	var p Payload
	switch action {
	case ActionAssign:
		p = &AssignPayload{}
	case ActionAccept:
		p = &AcceptPayload{}
	case ActionStart:
		p = &StartPayload{}
	case ActionComplete:
		p = &CompletePayload{}
	case ActionCancel:
		p = &CancelPayload{}
	case ActionRequestPayment:
		p = &RequestPaymentPayload{}
	case ActionConfirmPayment:
		p = &ConfirmPaymentPayload{}
	case ActionProcessCommission:
		p = &ProcessCommissionPayload{}
	default:
		return nil, validation(action, "action", "unknown action")
	}

	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, p); err != nil {
			return nil, validation(action, "body", "malformed payload: %v", err)
		}
	}

	return deref(p), nil
}

func deref(p Payload) Payload {
	switch v := p.(type) {
	case *AssignPayload:
		return *v
	case *AcceptPayload:
		return *v
	case *StartPayload:
		return *v
	case *CompletePayload:
		return *v
	case *CancelPayload:
		return *v
	case *RequestPaymentPayload:
		return *v
	case *ConfirmPaymentPayload:
		return *v
	case *ProcessCommissionPayload:
		return *v
	}
	return p
}
