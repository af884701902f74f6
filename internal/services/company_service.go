package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sadiqgoni/GreenCycle/internal/database"
	"github.com/sadiqgoni/GreenCycle/internal/models"
	"github.com/sadiqgoni/GreenCycle/pkg/validator"
	"github.com/sirupsen/logrus"
)

// CompanyStore is the company persistence used by CompanyService
type CompanyStore interface {
	Create(ctx context.Context, c *models.Company) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Company, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Company, error)
	ListAssignable(ctx context.Context) ([]models.Company, error)
	List(ctx context.Context, filter models.CompanyFilter) ([]models.Company, error)
	UpdateVerificationStatus(ctx context.Context, id uuid.UUID, status models.VerificationStatus, adminID uuid.UUID, reason *string) error
	UpdateAvailability(ctx context.Context, id uuid.UUID, status models.AvailabilityStatus) error
}

// CompanyAuditor records admin verification decisions
type CompanyAuditor interface {
	LogCompanyVerification(ctx context.Context, adminID, companyID uuid.UUID, status models.VerificationStatus, reason string, client ClientInfo) error
}

// CompanyService handles company registration and admin review
type CompanyService struct {
	companies CompanyStore
	audit     CompanyAuditor
	phone     *validator.PhoneValidator
	logger    logrus.FieldLogger
}

// NewCompanyService creates a company service
func NewCompanyService(companies CompanyStore, audit CompanyAuditor, logger logrus.FieldLogger) *CompanyService {
	return &CompanyService{
		companies: companies,
		audit:     audit,
		phone:     validator.NewPhoneValidator(),
		logger:    logger,
	}
}

// Register creates the company profile of the calling company user
func (s *CompanyService) Register(ctx context.Context, userID uuid.UUID, in models.RegisterCompanyRequest) (*models.Company, error) {
	existing, err := s.companies.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrCompanyExists
	}

	name := strings.TrimSpace(in.CompanyName)
	if name == "" {
		return nil, &FieldError{Field: "company_name", Reason: "is required"}
	}
	phone, err := s.phone.Validate(in.Phone)
	if err != nil {
		return nil, &FieldError{Field: "phone", Reason: err.Error()}
	}

	company := &models.Company{
		UserID:             userID,
		CompanyName:        name,
		RegistrationNumber: trimmedOrNil(in.RegistrationNumber),
		Email:              trimmedOrNil(in.Email),
		Phone:              phone,
		Address:            strings.TrimSpace(in.Address),
		ServiceArea:        trimmedOrNil(in.ServiceArea),
	}
	if err := s.companies.Create(ctx, company); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"company_id": company.ID,
		"user_id":    userID,
	}).Info("Company registered, awaiting verification")
	return company, nil
}

// MyCompany returns the company of the calling user
func (s *CompanyService) MyCompany(ctx context.Context, userID uuid.UUID) (*models.Company, error) {
	company, err := s.companies.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, ErrCompanyNotFound
	}
	return company, nil
}

// SetAvailability opens or closes the calling user's company for assignments
func (s *CompanyService) SetAvailability(ctx context.Context, userID uuid.UUID, status models.AvailabilityStatus) (*models.Company, error) {
	if !status.IsValid() {
		return nil, &FieldError{Field: "availability_status", Reason: "must be open or closed"}
	}
	company, err := s.MyCompany(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !company.IsVerified() {
		return nil, ErrCompanyNotActive
	}
	if err := s.companies.UpdateAvailability(ctx, company.ID, status); err != nil {
		return nil, err
	}
	company.AvailabilityStatus = status
	return company, nil
}

// Approve marks a company verified
func (s *CompanyService) Approve(ctx context.Context, adminID, companyID uuid.UUID, client ClientInfo) (*models.Company, error) {
	return s.review(ctx, adminID, companyID, models.VerificationStatusApproved, "", client)
}

// Reject marks a company rejected with a reason
func (s *CompanyService) Reject(ctx context.Context, adminID, companyID uuid.UUID, reason string, client ClientInfo) (*models.Company, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &FieldError{Field: "reason", Reason: "is required"}
	}
	return s.review(ctx, adminID, companyID, models.VerificationStatusRejected, reason, client)
}

func (s *CompanyService) review(ctx context.Context, adminID, companyID uuid.UUID, status models.VerificationStatus, reason string, client ClientInfo) (*models.Company, error) {
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}

	if err := s.companies.UpdateVerificationStatus(ctx, companyID, status, adminID, reasonPtr); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrCompanyNotFound
		}
		return nil, err
	}

	if s.audit != nil {
		if err := s.audit.LogCompanyVerification(ctx, adminID, companyID, status, reason, client); err != nil {
			s.logger.WithError(err).Warn("Failed to write audit log")
		}
	}
	s.logger.WithFields(logrus.Fields{
		"company_id": companyID,
		"admin_id":   adminID,
		"status":     status,
	}).Info("Company verification updated")

	company, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, ErrCompanyNotFound
	}
	return company, nil
}

// ListAssignable returns approved, open companies for the assign picker
func (s *CompanyService) ListAssignable(ctx context.Context) ([]models.Company, error) {
	return s.companies.ListAssignable(ctx)
}

// List returns companies for the admin listing
func (s *CompanyService) List(ctx context.Context, filter models.CompanyFilter) ([]models.Company, error) {
	if filter.VerificationStatus != nil {
		switch *filter.VerificationStatus {
		case models.VerificationStatusPending, models.VerificationStatusApproved,
			models.VerificationStatusRejected, models.VerificationStatusVerified:
		default:
			return nil, &FieldError{Field: "verification_status", Reason: "unknown status"}
		}
	}
	return s.companies.List(ctx, filter)
}
