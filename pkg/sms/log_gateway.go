package sms

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// LogGateway writes messages to the log instead of sending them. Used in dev mode.
type LogGateway struct {
	logger logrus.FieldLogger
	seq    atomic.Int64
}

// NewLogGateway creates a gateway that only logs
func NewLogGateway(logger logrus.FieldLogger) *LogGateway {
	return &LogGateway{logger: logger}
}

// Send implements Gateway
func (g *LogGateway) Send(ctx context.Context, phone, message string) (string, error) {
	id := fmt.Sprintf("dev-%d", g.seq.Add(1))
	g.logger.WithFields(logrus.Fields{
		"phone":      phone,
		"message":    message,
		"message_id": id,
	}).Info("SMS (dev mode, not sent)")
	return id, nil
}

// GetName implements Gateway
func (g *LogGateway) GetName() string {
	return "log"
}
