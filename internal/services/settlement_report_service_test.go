package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sadiqgoni/GreenCycle/internal/lifecycle"
	"github.com/sadiqgoni/GreenCycle/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type staticSettlements struct {
	rows     []models.SettlementRow
	from, to time.Time
}

func (s *staticSettlements) ListSettlements(ctx context.Context, from, to time.Time) ([]models.SettlementRow, error) {
	s.from, s.to = from, to
	return s.rows, nil
}

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestSettlementReportService_Export(t *testing.T) {
	completed := time.Date(2026, 10, 3, 14, 0, 0, 0, time.UTC)
	processed := completed.Add(48 * time.Hour)
	company := "Clean Lagos Ltd"
	method := "bank_transfer"
	state := "confirmed"
	id := uuid.New()

	source := &staticSettlements{rows: []models.SettlementRow{
		{
			ServiceRequestID:     id,
			WasteType:            "Plastic",
			CompanyName:          &company,
			CompletedAt:          &completed,
			FinalAmount:          nd("6000"),
			PaymentMethod:        &method,
			PaymentState:         &state,
			PaidAt:               &processed,
			CommissionPercentage: nd("10"),
			CommissionAmount:     nd("600"),
			CompanyPayout:        nd("5400"),
			CommissionPaidAt:     &processed,
		},
		{
			ServiceRequestID: uuid.New(),
			WasteType:        "Glass",
			CompletedAt:      &completed,
			FinalAmount:      nd("1500.5"),
		},
	}}

	from := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	svc := NewSettlementReportService(source, "NGN")
	require.NoError(t, svc.Export(context.Background(), from, to, &buf))
	assert.Equal(t, from, source.from)
	assert.Equal(t, to, source.to)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{settlementSheet, summarySheet}, f.GetSheetList())

	rows, err := f.GetRows(settlementSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Request ID", rows[0][0])
	assert.Equal(t, id.String(), rows[1][0])
	assert.Equal(t, "Clean Lagos Ltd", rows[1][2])
	assert.Equal(t, "6000.00", rows[1][4])
	assert.Equal(t, "600.00", rows[1][9])
	assert.Equal(t, "5400.00", rows[1][10])
	assert.Equal(t, "1500.50", rows[2][4])

	summary, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	values := map[string]string{}
	for _, r := range summary {
		if len(r) == 2 {
			values[r[0]] = r[1]
		}
	}
	assert.Equal(t, "NGN", values["Currency"])
	assert.Equal(t, "2", values["Completed requests"])
	assert.Equal(t, "1", values["Commissions processed"])
	assert.Equal(t, "7500.50", values["Total billed"])
	assert.Equal(t, "600.00", values["Total commission"])
	assert.Equal(t, "5400.00", values["Total company payouts"])
}

func TestSettlementReportService_InvalidRange(t *testing.T) {
	svc := NewSettlementReportService(&staticSettlements{}, "NGN")
	now := time.Now()

	err := svc.Export(context.Background(), now, now, &bytes.Buffer{})
	assert.ErrorIs(t, err, lifecycle.ErrValidation)

	err = svc.Export(context.Background(), now.AddDate(-2, 0, 0), now, &bytes.Buffer{})
	assert.ErrorIs(t, err, lifecycle.ErrValidation)
}
