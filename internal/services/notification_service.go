package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sadiqgoni/GreenCycle/internal/lifecycle"
	"github.com/sadiqgoni/GreenCycle/internal/models"
	"github.com/sadiqgoni/GreenCycle/pkg/sms"
	"github.com/sadiqgoni/GreenCycle/pkg/validator"
	"github.com/sirupsen/logrus"
)

const notificationTimeout = 15 * time.Second

// NotificationService texts the household when their pickup moves forward
type NotificationService struct {
	gateway  sms.Gateway
	phone    *validator.PhoneValidator
	currency string
	logger   logrus.FieldLogger
}

// NewNotificationService creates a notification service
func NewNotificationService(gateway sms.Gateway, currency string, logger logrus.FieldLogger) *NotificationService {
	return &NotificationService{
		gateway:  gateway,
		phone:    validator.NewPhoneValidator(),
		currency: currency,
		logger:   logger,
	}
}

// NotifyTransition sends the household SMS for out, if the action has one.
// Delivery failures are logged and never returned to the caller.
func (s *NotificationService) NotifyTransition(ctx context.Context, out lifecycle.Outcome, company *models.Company) {
	message := s.messageFor(out, company)
	if message == "" {
		return
	}

	log := s.logger.WithFields(logrus.Fields{
		"service_request_id": out.Request.ID,
		"action":             out.Action,
		"gateway":            s.gateway.GetName(),
	})

	phone, err := s.phone.International(out.Request.ClientNumber)
	if err != nil {
		log.WithError(err).Warn("Skipping SMS: invalid client number")
		return
	}

	// Detached from the request context so a client disconnect does not drop the SMS
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notificationTimeout)
	defer cancel()

	messageID, err := s.gateway.Send(sendCtx, phone, message)
	if err != nil {
		log.WithError(err).Error("Failed to send SMS notification")
		return
	}
	log.WithField("message_id", messageID).Info("SMS notification sent")
}

func (s *NotificationService) messageFor(out lifecycle.Outcome, company *models.Company) string {
	r := out.Request
	name := "A collection company"
	if company != nil && company.CompanyName != "" {
		name = company.CompanyName
	}

	switch out.Action {
	case lifecycle.ActionAssign:
		return fmt.Sprintf("GreenCycle: %s has been assigned to your %s pickup.", name, r.WasteType)
	case lifecycle.ActionAccept:
		when := ""
		if r.ScheduledDate != nil {
			when = " on " + r.ScheduledDate.Format("02 Jan 2006")
			if r.ScheduledTime != nil && len(*r.ScheduledTime) >= 5 {
				when += " at " + (*r.ScheduledTime)[:5]
			}
		}
		return fmt.Sprintf("GreenCycle: %s accepted your %s pickup%s.", name, r.WasteType, when)
	case lifecycle.ActionStart:
		return fmt.Sprintf("GreenCycle: %s has started your %s pickup.", name, r.WasteType)
	case lifecycle.ActionComplete:
		amount := ""
		if r.FinalAmount.Valid {
			amount = fmt.Sprintf(" Amount due: %s %s.", s.currency, r.FinalAmount.Decimal.StringFixed(2))
		}
		return fmt.Sprintf("GreenCycle: your %s pickup is complete.%s", r.WasteType, amount)
	}
	return ""
}
