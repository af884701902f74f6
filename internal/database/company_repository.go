package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sadiqgoni/GreenCycle/internal/models"
)

const companyColumns = `
	id, user_id, company_name, registration_number, email, phone, address, service_area,
	verification_status, availability_status, verified_at, verified_by, rejection_reason,
	created_at, updated_at`

// CompanyRepository handles company database operations
type CompanyRepository struct {
	db DB
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// Create registers a company in pending verification and closed availability
func (r *CompanyRepository) Create(ctx context.Context, c *models.Company) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.VerificationStatus = models.VerificationStatusPending
	if c.AvailabilityStatus == "" {
		c.AvailabilityStatus = models.AvailabilityClosed
	}

	query := `
		INSERT INTO companies (
			id, user_id, company_name, registration_number, email, phone, address, service_area,
			verification_status, availability_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		c.ID, c.UserID, c.CompanyName, c.RegistrationNumber, c.Email, c.Phone, c.Address, c.ServiceArea,
		c.VerificationStatus, c.AvailabilityStatus,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create company: %w", err)
	}
	return nil
}

// GetByID returns the company or nil
func (r *CompanyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	return r.getOne(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id)
}

// GetByUserID returns the company operated by userID or nil
func (r *CompanyRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Company, error) {
	return r.getOne(ctx, `SELECT `+companyColumns+` FROM companies WHERE user_id = $1`, userID)
}

func (r *CompanyRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.Company, error) {
	var c models.Company
	if err := r.db.GetContext(ctx, &c, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &c, nil
}

// ListAssignable returns approved companies that are open for jobs
func (r *CompanyRepository) ListAssignable(ctx context.Context) ([]models.Company, error) {
	query := `SELECT ` + companyColumns + `
		FROM companies
		WHERE verification_status IN ('approved', 'verified') AND availability_status = 'open'
		ORDER BY company_name ASC`

	companies := []models.Company{}
	if err := r.db.SelectContext(ctx, &companies, query); err != nil {
		return nil, fmt.Errorf("failed to list assignable companies: %w", err)
	}
	return companies, nil
}

// List returns companies, optionally filtered by verification status
func (r *CompanyRepository) List(ctx context.Context, filter models.CompanyFilter) ([]models.Company, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `SELECT ` + companyColumns + ` FROM companies`
	args := []interface{}{}
	if filter.VerificationStatus != nil {
		args = append(args, *filter.VerificationStatus)
		query += ` WHERE verification_status = $1`
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	companies := []models.Company{}
	if err := r.db.SelectContext(ctx, &companies, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	return companies, nil
}

// UpdateVerificationStatus records an admin review decision
func (r *CompanyRepository) UpdateVerificationStatus(ctx context.Context, id uuid.UUID, status models.VerificationStatus, adminID uuid.UUID, reason *string) error {
	now := time.Now()
	query := `
		UPDATE companies
		SET verification_status = $2, verified_by = $3, verified_at = $4, rejection_reason = $5, updated_at = $4
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status, adminID, now, reason)
	if err != nil {
		return fmt.Errorf("failed to update verification status: %w", err)
	}
	return requireAffected(result)
}

// UpdateAvailability opens or closes a company for new assignments
func (r *CompanyRepository) UpdateAvailability(ctx context.Context, id uuid.UUID, status models.AvailabilityStatus) error {
	query := `UPDATE companies SET availability_status = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update availability: %w", err)
	}
	return requireAffected(result)
}

// CountByVerificationStatus backs the company status chart
func (r *CompanyRepository) CountByVerificationStatus(ctx context.Context) (map[models.VerificationStatus]int64, error) {
	var rows []struct {
		Status models.VerificationStatus `db:"verification_status"`
		Count  int64                     `db:"count"`
	}
	query := `SELECT verification_status, COUNT(*) AS count FROM companies GROUP BY verification_status`

	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count companies: %w", err)
	}

	counts := map[models.VerificationStatus]int64{
		models.VerificationStatusPending:  0,
		models.VerificationStatusApproved: 0,
		models.VerificationStatusRejected: 0,
	}
	for _, row := range rows {
		status := row.Status
		if status == models.VerificationStatusVerified {
			status = models.VerificationStatusApproved
		}
		counts[status] += row.Count
	}
	return counts, nil
}

func requireAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
