package lifecycle

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sadiqgoni/GreenCycle/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type fixture struct {
	household Actor
	companyOp Actor
	admin     Actor
	company   *models.Company
}

func newFixture() fixture {
	companyUser := uuid.New()
	return fixture{
		household: Actor{ID: uuid.New(), Role: models.RoleHousehold},
		companyOp: Actor{ID: companyUser, Role: models.RoleCompany},
		admin:     Actor{ID: uuid.New(), Role: models.RoleAdmin},
		company: &models.Company{
			ID:                 uuid.New(),
			UserID:             companyUser,
			CompanyName:        "Clean Lagos Ltd",
			VerificationStatus: models.VerificationStatusApproved,
			AvailabilityStatus: models.AvailabilityOpen,
		},
	}
}

func (f fixture) pending() Snapshot {
	return Snapshot{Request: models.ServiceRequest{
		ID:            uuid.New(),
		HouseholdID:   f.household.ID,
		WasteType:     "Plastic",
		ClientNumber:  "08031234567",
		Address:       "12 Allen Avenue, Ikeja",
		Status:        models.ServiceRequestStatusPending,
		PaymentStatus: models.RequestPaymentStatusPending,
		Version:       1,
	}}
}

// at builds a snapshot in the given status with the fields earlier transitions would have set
func (f fixture) at(status models.ServiceRequestStatus) Snapshot {
	s := f.pending()
	if status.HasCompany() {
		s.Request.CompanyID = &f.company.ID
		s.Request.CompanyUserID = &f.company.UserID
	}
	if status == models.ServiceRequestStatusCompleted || status == models.ServiceRequestStatusPaid {
		s.Request.FinalAmount = decimal.NewNullDecimal(decimal.NewFromInt(6000))
		completed := fixedNow.Add(-time.Hour)
		s.Request.CompletedAt = &completed
	}
	s.Request.Status = status
	return s
}

func (f fixture) env() Env {
	return Env{Company: f.company, Now: fixedNow}
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func strPtr(s string) *string { return &s }

func mustApply(t *testing.T, s Snapshot, actor Actor, p Payload, env Env) Snapshot {
	t.Helper()
	out, err := Apply(s, actor, p, env)
	require.NoError(t, err)
	return Snapshot{Request: out.Request, Payment: out.Payment}
}

func TestLifecycleScenario(t *testing.T) {
	f := newFixture()
	env := f.env()
	s := f.pending()

	s = mustApply(t, s, f.admin, AssignPayload{CompanyID: &f.company.ID}, env)
	assert.Equal(t, models.ServiceRequestStatusAssigned, s.Request.Status)
	require.NotNil(t, s.Request.CompanyID)
	assert.Equal(t, f.company.ID, *s.Request.CompanyID)
	assert.Equal(t, f.company.UserID, *s.Request.CompanyUserID)

	s = mustApply(t, s, f.companyOp, AcceptPayload{
		ScheduledDate:     "2026-03-20",
		ScheduledTime:     "10:00",
		EstimatedDuration: dec("2"),
		EstimatedCost:     dec("5000"),
		CompanyNotes:      strPtr("Bring gloves"),
	}, env)
	assert.Equal(t, models.ServiceRequestStatusAccepted, s.Request.Status)
	assert.Equal(t, "10:00:00", *s.Request.ScheduledTime)
	assert.Equal(t, "2026-03-20", s.Request.ScheduledDate.Format("2006-01-02"))
	assert.Equal(t, "Bring gloves", *s.Request.CompanyNotes)

	s = mustApply(t, s, f.companyOp, StartPayload{}, env)
	assert.Equal(t, models.ServiceRequestStatusInProgress, s.Request.Status)
	require.NotNil(t, s.Request.StartedAt)
	assert.Equal(t, fixedNow, *s.Request.StartedAt)

	s = mustApply(t, s, f.companyOp, CompletePayload{
		FinalAmount:      dec("6000"),
		CompletionNotes:  "done",
		CompletionPhotos: []string{},
	}, env)
	assert.Equal(t, models.ServiceRequestStatusCompleted, s.Request.Status)
	assert.Equal(t, "6000.00", s.Request.FinalAmount.Decimal.StringFixed(2))
	assert.NotNil(t, s.Request.CompletedAt)

	s = mustApply(t, s, f.household, RequestPaymentPayload{PaymentMethod: models.PaymentMethodBankTransfer}, env)
	require.NotNil(t, s.Payment)
	assert.Equal(t, models.PaymentStatusPending, s.Payment.Status)
	assert.Equal(t, "6000.00", s.Payment.Amount.StringFixed(2))
	assert.Equal(t, models.ServiceRequestStatusCompleted, s.Request.Status)

	s = mustApply(t, s, f.admin, ConfirmPaymentPayload{}, env)
	assert.Equal(t, models.PaymentStatusConfirmed, s.Payment.Status)
	assert.Equal(t, models.RequestPaymentStatusPaid, s.Request.PaymentStatus)
	assert.Equal(t, models.ServiceRequestStatusCompleted, s.Request.Status, "confirmation does not move the status enum")

	s = mustApply(t, s, f.admin, ProcessCommissionPayload{CommissionPercentage: dec("10")}, env)
	assert.Equal(t, "600.00", s.Request.CommissionAmount.Decimal.StringFixed(2))
	assert.Equal(t, "5400.00", s.Request.CompanyPayout.Decimal.StringFixed(2))
	require.NotNil(t, s.Request.CommissionPaidAt)

	_, err := Apply(s, f.admin, ProcessCommissionPayload{CommissionPercentage: dec("10")}, env)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, "600.00", s.Request.CommissionAmount.Decimal.StringFixed(2))
	assert.Equal(t, "5400.00", s.Request.CompanyPayout.Decimal.StringFixed(2))
}

func TestApplyAssign(t *testing.T) {
	f := newFixture()

	t.Run("legacy verified status is accepted", func(t *testing.T) {
		env := f.env()
		c := *f.company
		c.VerificationStatus = models.VerificationStatusVerified
		env.Company = &c
		_, err := Apply(f.pending(), f.admin, AssignPayload{CompanyID: &c.ID}, env)
		assert.NoError(t, err)
	})

	tests := []struct {
		name    string
		mutate  func(c *models.Company)
		payload func(c *models.Company) AssignPayload
		missing bool
		kind    error
	}{
		{
			name:    "pending verification",
			mutate:  func(c *models.Company) { c.VerificationStatus = models.VerificationStatusPending },
			payload: func(c *models.Company) AssignPayload { return AssignPayload{CompanyID: &c.ID} },
			kind:    ErrInvalidTransition,
		},
		{
			name:    "rejected company",
			mutate:  func(c *models.Company) { c.VerificationStatus = models.VerificationStatusRejected },
			payload: func(c *models.Company) AssignPayload { return AssignPayload{CompanyID: &c.ID} },
			kind:    ErrInvalidTransition,
		},
		{
			name:    "closed company",
			mutate:  func(c *models.Company) { c.AvailabilityStatus = models.AvailabilityClosed },
			payload: func(c *models.Company) AssignPayload { return AssignPayload{CompanyID: &c.ID} },
			kind:    ErrInvalidTransition,
		},
		{
			name:    "unknown company",
			mutate:  func(c *models.Company) {},
			payload: func(c *models.Company) AssignPayload { id := uuid.New(); return AssignPayload{CompanyID: &id} },
			missing: true,
			kind:    ErrReferenceNotFound,
		},
		{
			name:    "missing company id",
			mutate:  func(c *models.Company) {},
			payload: func(c *models.Company) AssignPayload { return AssignPayload{} },
			kind:    ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *f.company
			tt.mutate(&c)
			env := f.env()
			env.Company = &c
			if tt.missing {
				env.Company = nil
			}
			s := f.pending()

			_, err := Apply(s, f.admin, tt.payload(&c), env)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
			assert.Equal(t, models.ServiceRequestStatusPending, s.Request.Status)
			assert.Nil(t, s.Request.CompanyID)
		})
	}

	t.Run("only admins assign", func(t *testing.T) {
		_, err := Apply(f.pending(), f.household, AssignPayload{CompanyID: &f.company.ID}, f.env())
		assert.True(t, errors.Is(err, ErrInvalidTransition))
	})
}

func TestApplyAcceptValidation(t *testing.T) {
	f := newFixture()
	valid := func() AcceptPayload {
		return AcceptPayload{
			ScheduledDate:     "2026-03-20",
			ScheduledTime:     "10:00:00",
			EstimatedDuration: dec("1.5"),
			EstimatedCost:     dec("2500.50"),
		}
	}

	tests := []struct {
		name   string
		mutate func(p *AcceptPayload)
		field  string
	}{
		{"missing date", func(p *AcceptPayload) { p.ScheduledDate = "" }, "scheduled_date"},
		{"bad date", func(p *AcceptPayload) { p.ScheduledDate = "20/03/2026" }, "scheduled_date"},
		{"missing time", func(p *AcceptPayload) { p.ScheduledTime = " " }, "scheduled_time"},
		{"bad time", func(p *AcceptPayload) { p.ScheduledTime = "25:00" }, "scheduled_time"},
		{"missing duration", func(p *AcceptPayload) { p.EstimatedDuration = nil }, "estimated_duration"},
		{"zero duration", func(p *AcceptPayload) { p.EstimatedDuration = dec("0") }, "estimated_duration"},
		{"missing cost", func(p *AcceptPayload) { p.EstimatedCost = nil }, "estimated_cost"},
		{"negative cost", func(p *AcceptPayload) { p.EstimatedCost = dec("-1") }, "estimated_cost"},
		{"sub-kobo cost", func(p *AcceptPayload) { p.EstimatedCost = dec("10.005") }, "estimated_cost"},
		{"cost above column limit", func(p *AcceptPayload) { p.EstimatedCost = dec("1000000000000") }, "estimated_cost"},
		{"duration with 3 decimals", func(p *AcceptPayload) { p.EstimatedDuration = dec("0.333") }, "estimated_duration"},
		{"duration above column limit", func(p *AcceptPayload) { p.EstimatedDuration = dec("1000000") }, "estimated_duration"},
		{"notes too long", func(p *AcceptPayload) { p.CompanyNotes = strPtr(strings.Repeat("x", 501)) }, "company_notes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(&p)
			_, err := Apply(f.at(models.ServiceRequestStatusAssigned), f.companyOp, p, f.env())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			var lerr *Error
			require.True(t, errors.As(err, &lerr))
			assert.Equal(t, tt.field, lerr.Field)
		})
	}

	t.Run("largest storable values are accepted", func(t *testing.T) {
		p := valid()
		p.EstimatedCost = dec("9999999999.99")
		p.EstimatedDuration = dec("999999.99")
		_, err := Apply(f.at(models.ServiceRequestStatusAssigned), f.companyOp, p, f.env())
		require.NoError(t, err)
	})

	t.Run("notes at limit are kept", func(t *testing.T) {
		p := valid()
		p.CompanyNotes = strPtr(strings.Repeat("é", 500))
		out, err := Apply(f.at(models.ServiceRequestStatusAssigned), f.companyOp, p, f.env())
		require.NoError(t, err)
		assert.Equal(t, models.ServiceRequestStatusAccepted, out.To)
	})

	t.Run("another company user is rejected", func(t *testing.T) {
		other := Actor{ID: uuid.New(), Role: models.RoleCompany}
		_, err := Apply(f.at(models.ServiceRequestStatusAssigned), other, valid(), f.env())
		assert.True(t, errors.Is(err, ErrInvalidTransition))
	})
}

func TestApplyCompleteValidation(t *testing.T) {
	f := newFixture()
	s := f.at(models.ServiceRequestStatusInProgress)

	_, err := Apply(s, f.companyOp, CompletePayload{CompletionNotes: "done"}, f.env())
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = Apply(s, f.companyOp, CompletePayload{FinalAmount: dec("100"), CompletionNotes: "  "}, f.env())
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = Apply(s, f.companyOp, CompletePayload{
		FinalAmount: dec("100"), CompletionNotes: "done", CompletionPhotos: []string{"a.jpg", ""},
	}, f.env())
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = Apply(s, f.companyOp, CompletePayload{FinalAmount: dec("10000000000"), CompletionNotes: "done"}, f.env())
	assert.True(t, errors.Is(err, ErrValidation))

	out, err := Apply(s, f.companyOp, CompletePayload{
		FinalAmount: dec("100"), CompletionNotes: " done ", CompletionPhotos: []string{"photos/a.jpg"},
	}, f.env())
	require.NoError(t, err)
	assert.Equal(t, "done", *out.Request.CompletionNotes)
	assert.Equal(t, []string{"photos/a.jpg"}, []string(out.Request.CompletionPhotos))
}

func TestApplyCancel(t *testing.T) {
	f := newFixture()

	for _, status := range []models.ServiceRequestStatus{models.ServiceRequestStatusAssigned, models.ServiceRequestStatusAccepted} {
		t.Run(string(status), func(t *testing.T) {
			out, err := Apply(f.at(status), f.household, CancelPayload{}, f.env())
			require.NoError(t, err)
			assert.Equal(t, models.ServiceRequestStatusCancelled, out.To)
			assert.Nil(t, out.Request.CompanyID)
			assert.Nil(t, out.Request.CompanyUserID)
			require.NotNil(t, out.ReleasedCompanyID)
			assert.Equal(t, f.company.ID, *out.ReleasedCompanyID)
		})
	}

	for _, status := range []models.ServiceRequestStatus{
		models.ServiceRequestStatusPending,
		models.ServiceRequestStatusInProgress,
		models.ServiceRequestStatusCompleted,
		models.ServiceRequestStatusPaid,
		models.ServiceRequestStatusCancelled,
	} {
		t.Run("rejected from "+string(status), func(t *testing.T) {
			_, err := Apply(f.at(status), f.household, CancelPayload{}, f.env())
			assert.True(t, errors.Is(err, ErrInvalidTransition))
		})
	}

	t.Run("other household", func(t *testing.T) {
		other := Actor{ID: uuid.New(), Role: models.RoleHousehold}
		_, err := Apply(f.at(models.ServiceRequestStatusAssigned), other, CancelPayload{}, f.env())
		assert.True(t, errors.Is(err, ErrInvalidTransition))
	})
}

func TestApplyRequestPayment(t *testing.T) {
	f := newFixture()
	s := f.at(models.ServiceRequestStatusCompleted)

	_, err := Apply(s, f.household, RequestPaymentPayload{PaymentMethod: "cash"}, f.env())
	assert.True(t, errors.Is(err, ErrValidation))

	paymentID := uuid.New()
	env := f.env()
	env.NewID = func() uuid.UUID { return paymentID }
	out, err := Apply(s, f.household, RequestPaymentPayload{PaymentMethod: models.PaymentMethodCreditCard}, env)
	require.NoError(t, err)
	assert.True(t, out.PaymentCreated)
	assert.Equal(t, paymentID, out.Payment.ID)
	assert.Equal(t, s.Request.ID, out.Payment.ServiceRequestID)

	again := Snapshot{Request: out.Request, Payment: out.Payment}
	_, err = Apply(again, f.household, RequestPaymentPayload{PaymentMethod: models.PaymentMethodCreditCard}, env)
	assert.True(t, errors.Is(err, ErrInvalidTransition), "a second payment must never be created")
}

func TestApplyConfirmPayment(t *testing.T) {
	f := newFixture()
	s := f.at(models.ServiceRequestStatusCompleted)

	_, err := Apply(s, f.admin, ConfirmPaymentPayload{}, f.env())
	assert.True(t, errors.Is(err, ErrReferenceNotFound))

	s.Payment = &models.Payment{ID: uuid.New(), Status: models.PaymentStatusConfirmed}
	_, err = Apply(s, f.admin, ConfirmPaymentPayload{}, f.env())
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	s.Payment.Status = models.PaymentStatusPending
	_, err = Apply(s, f.household, ConfirmPaymentPayload{}, f.env())
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	out, err := Apply(s, f.admin, ConfirmPaymentPayload{}, f.env())
	require.NoError(t, err)
	assert.True(t, out.PaymentConfirmed)
	assert.Equal(t, fixedNow, *out.Payment.PaidAt)
	assert.Equal(t, fixedNow, *out.Request.PaymentReceivedAt)
}

func TestApplyProcessCommission(t *testing.T) {
	f := newFixture()
	confirmed := func() Snapshot {
		s := f.at(models.ServiceRequestStatusCompleted)
		s.Payment = &models.Payment{ID: uuid.New(), Status: models.PaymentStatusConfirmed, Amount: decimal.NewFromInt(6000)}
		return s
	}

	t.Run("requires confirmed payment", func(t *testing.T) {
		s := f.at(models.ServiceRequestStatusCompleted)
		_, err := Apply(s, f.admin, ProcessCommissionPayload{}, f.env())
		assert.True(t, errors.Is(err, ErrInvalidTransition))

		s.Payment = &models.Payment{ID: uuid.New(), Status: models.PaymentStatusPending}
		_, err = Apply(s, f.admin, ProcessCommissionPayload{}, f.env())
		assert.True(t, errors.Is(err, ErrInvalidTransition))
	})

	t.Run("default percentage", func(t *testing.T) {
		out, err := Apply(confirmed(), f.admin, ProcessCommissionPayload{}, f.env())
		require.NoError(t, err)
		assert.Equal(t, "10", out.Request.CommissionPercentage.Decimal.String())
		assert.Equal(t, "600.00", out.Request.CommissionAmount.Decimal.StringFixed(2))
	})

	t.Run("configured percentage", func(t *testing.T) {
		env := f.env()
		env.CommissionPercentage = dec("15")
		out, err := Apply(confirmed(), f.admin, ProcessCommissionPayload{}, env)
		require.NoError(t, err)
		assert.Equal(t, "900.00", out.Request.CommissionAmount.Decimal.StringFixed(2))
		assert.Equal(t, "5100.00", out.Request.CompanyPayout.Decimal.StringFixed(2))
	})

	t.Run("out of range", func(t *testing.T) {
		for _, pct := range []string{"-1", "100.01", "12.3456", "0.001"} {
			_, err := Apply(confirmed(), f.admin, ProcessCommissionPayload{CommissionPercentage: dec(pct)}, f.env())
			assert.True(t, errors.Is(err, ErrValidation), pct)
		}
	})

	t.Run("stored percentage reproduces commission", func(t *testing.T) {
		s := confirmed()
		s.Request.FinalAmount = decimal.NewNullDecimal(decimal.NewFromInt(6000))
		out, err := Apply(s, f.admin, ProcessCommissionPayload{CommissionPercentage: dec("12.35")}, f.env())
		require.NoError(t, err)
		stored := out.Request.CommissionPercentage.Decimal.Round(2)
		commission, _ := Settle(s.Request.FinalAmount.Decimal, stored)
		assert.True(t, commission.Equal(out.Request.CommissionAmount.Decimal))
		assert.Equal(t, "741.00", commission.StringFixed(2))
	})

	t.Run("payout plus commission equals final amount", func(t *testing.T) {
		s := confirmed()
		s.Request.FinalAmount = decimal.NewNullDecimal(decimal.RequireFromString("333.33"))
		out, err := Apply(s, f.admin, ProcessCommissionPayload{CommissionPercentage: dec("12.5")}, f.env())
		require.NoError(t, err)
		sum := out.Request.CommissionAmount.Decimal.Add(out.Request.CompanyPayout.Decimal)
		assert.True(t, sum.Equal(s.Request.FinalAmount.Decimal))
	})
}

func TestApplyDoesNotMutateSnapshot(t *testing.T) {
	f := newFixture()
	s := f.at(models.ServiceRequestStatusInProgress)
	s.Request.CompletionPhotos = []string{"before.jpg"}
	before := s.Request.Clone()

	_, err := Apply(s, f.companyOp, CompletePayload{
		FinalAmount: dec("10"), CompletionNotes: "ok", CompletionPhotos: []string{"after.jpg"},
	}, f.env())
	require.NoError(t, err)
	assert.Equal(t, before, s.Request)
}

func TestAllowedActions(t *testing.T) {
	f := newFixture()
	pendingPayment := func() Snapshot {
		s := f.at(models.ServiceRequestStatusCompleted)
		s.Payment = &models.Payment{ID: uuid.New(), Status: models.PaymentStatusPending}
		return s
	}
	confirmedPayment := func() Snapshot {
		s := pendingPayment()
		s.Payment.Status = models.PaymentStatusConfirmed
		return s
	}

	tests := []struct {
		name  string
		snap  Snapshot
		actor Actor
		want  []ActionKind
	}{
		{"admin on pending", f.pending(), f.admin, []ActionKind{ActionAssign}},
		{"household on pending", f.pending(), f.household, []ActionKind{}},
		{"company on assigned", f.at(models.ServiceRequestStatusAssigned), f.companyOp, []ActionKind{ActionAccept}},
		{"household on assigned", f.at(models.ServiceRequestStatusAssigned), f.household, []ActionKind{ActionCancel}},
		{"household on accepted", f.at(models.ServiceRequestStatusAccepted), f.household, []ActionKind{ActionCancel}},
		{"company on accepted", f.at(models.ServiceRequestStatusAccepted), f.companyOp, []ActionKind{ActionStart}},
		{"company on in progress", f.at(models.ServiceRequestStatusInProgress), f.companyOp, []ActionKind{ActionComplete}},
		{"household on completed", f.at(models.ServiceRequestStatusCompleted), f.household, []ActionKind{ActionRequestPayment}},
		{"admin on completed without payment", f.at(models.ServiceRequestStatusCompleted), f.admin, []ActionKind{}},
		{"household with payment", pendingPayment(), f.household, []ActionKind{}},
		{"admin with pending payment", pendingPayment(), f.admin, []ActionKind{ActionConfirmPayment}},
		{"admin with confirmed payment", confirmedPayment(), f.admin, []ActionKind{ActionProcessCommission}},
		{"admin on cancelled", f.at(models.ServiceRequestStatusCancelled), f.admin, []ActionKind{}},
		{"admin on paid", f.at(models.ServiceRequestStatusPaid), f.admin, []ActionKind{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AllowedActions(tt.snap, tt.actor))
		})
	}
}

// Every action a role can trigger from a status must match the transition table
func TestNoTransitionOutsideTable(t *testing.T) {
	f := newFixture()
	allowedFrom := map[ActionKind][]models.ServiceRequestStatus{
		ActionAssign:            {models.ServiceRequestStatusPending},
		ActionAccept:            {models.ServiceRequestStatusAssigned},
		ActionStart:             {models.ServiceRequestStatusAccepted},
		ActionComplete:          {models.ServiceRequestStatusInProgress},
		ActionCancel:            {models.ServiceRequestStatusAssigned, models.ServiceRequestStatusAccepted},
		ActionRequestPayment:    {models.ServiceRequestStatusCompleted},
		ActionConfirmPayment:    models.AllServiceRequestStatuses,
		ActionProcessCommission: {models.ServiceRequestStatusCompleted},
	}

	for _, status := range models.AllServiceRequestStatuses {
		for _, actor := range []Actor{f.admin, f.companyOp, f.household} {
			for _, action := range AllowedActions(f.at(status), actor) {
				assert.Contains(t, allowedFrom[action], status, "%s offered %s from %s", actor.Role, action, status)
			}
		}
	}
}
