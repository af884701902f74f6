package sms

import "context"

// Gateway sends text messages to a single recipient
type Gateway interface {
	// Send delivers message to phone and returns the provider's message ID
	Send(ctx context.Context, phone, message string) (string, error)

	// GetName returns the name of the SMS gateway implementation
	GetName() string
}
