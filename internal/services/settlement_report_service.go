package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sadiqgoni/GreenCycle/internal/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	settlementSheet = "Settlements"
	summarySheet    = "Summary"
	maxExportRange  = 366 * 24 * time.Hour
)

var settlementHeaders = []interface{}{
	"Request ID", "Waste Type", "Company", "Completed At", "Final Amount",
	"Payment Method", "Payment Status", "Paid At",
	"Commission %", "Commission", "Company Payout", "Commission Processed At",
}

// SettlementSource lists completed requests for export
type SettlementSource interface {
	ListSettlements(ctx context.Context, from, to time.Time) ([]models.SettlementRow, error)
}

// SettlementReportService builds the admin settlement workbook
type SettlementReportService struct {
	source   SettlementSource
	currency string
}

// NewSettlementReportService creates a settlement report service
func NewSettlementReportService(source SettlementSource, currency string) *SettlementReportService {
	return &SettlementReportService{source: source, currency: currency}
}

// Export writes an .xlsx covering requests completed in [from, to) to w
func (s *SettlementReportService) Export(ctx context.Context, from, to time.Time, w io.Writer) error {
	if !to.After(from) {
		return &FieldError{Field: "to", Reason: "must be after from"}
	}
	if to.Sub(from) > maxExportRange {
		return &FieldError{Field: "to", Reason: "range must not exceed one year"}
	}

	rows, err := s.source.ListSettlements(ctx, from, to)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	defSheet := f.GetSheetName(0)
	if defSheet == "" {
		defSheet = "Sheet1"
	}
	if err := f.SetSheetName(defSheet, settlementSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	f.SetActiveSheet(0)

	totals, err := writeSettlementRows(f, rows)
	if err != nil {
		return fmt.Errorf("failed to write settlements: %w", err)
	}
	if err := s.writeSummary(f, from, to, len(rows), totals); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

type settlementTotals struct {
	billed     decimal.Decimal
	commission decimal.Decimal
	payouts    decimal.Decimal
	processed  int
}

func writeSettlementRows(f *excelize.File, rows []models.SettlementRow) (settlementTotals, error) {
	var totals settlementTotals

	sw, err := f.NewStreamWriter(settlementSheet)
	if err != nil {
		return totals, err
	}
	if err := sw.SetRow(cellAxis(1, 1), settlementHeaders); err != nil {
		return totals, err
	}

	for i, r := range rows {
		if r.FinalAmount.Valid {
			totals.billed = totals.billed.Add(r.FinalAmount.Decimal)
		}
		if r.CommissionPaidAt != nil {
			totals.processed++
			totals.commission = totals.commission.Add(r.CommissionAmount.Decimal)
			totals.payouts = totals.payouts.Add(r.CompanyPayout.Decimal)
		}

		row := []interface{}{
			r.ServiceRequestID.String(),
			r.WasteType,
			stringOrEmpty(r.CompanyName),
			timeOrEmpty(r.CompletedAt),
			moneyCell(r.FinalAmount),
			stringOrEmpty(r.PaymentMethod),
			stringOrEmpty(r.PaymentState),
			timeOrEmpty(r.PaidAt),
			moneyCell(r.CommissionPercentage),
			moneyCell(r.CommissionAmount),
			moneyCell(r.CompanyPayout),
			timeOrEmpty(r.CommissionPaidAt),
		}
		if err := sw.SetRow(cellAxis(i+2, 1), row); err != nil {
			return totals, err
		}
	}
	return totals, sw.Flush()
}

func (s *SettlementReportService) writeSummary(f *excelize.File, from, to time.Time, count int, totals settlementTotals) error {
	sw, err := f.NewStreamWriter(summarySheet)
	if err != nil {
		return err
	}
	lines := [][]interface{}{
		{"From", from.Format(time.RFC3339)},
		{"To", to.Format(time.RFC3339)},
		{"Currency", s.currency},
		{"Completed requests", count},
		{"Commissions processed", totals.processed},
		{"Total billed", totals.billed.StringFixed(2)},
		{"Total commission", totals.commission.StringFixed(2)},
		{"Total company payouts", totals.payouts.StringFixed(2)},
	}
	for i, line := range lines {
		if err := sw.SetRow(cellAxis(i+1, 1), line); err != nil {
			return err
		}
	}
	return sw.Flush()
}

func cellAxis(row, col int) string {
	axis, _ := excelize.CoordinatesToCellName(col, row)
	return axis
}

func moneyCell(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func timeOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}
