package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidLength indicates phone number length is not 11 digits
	ErrInvalidLength = errors.New("phone number must be exactly 11 digits")

	// ErrInvalidPrefix indicates phone number doesn't start with a Nigerian mobile prefix
	ErrInvalidPrefix = errors.New("phone number must start with 070, 080, 081, 090 or 091")

	// ErrInvalidFormat indicates phone number contains invalid characters
	ErrInvalidFormat = errors.New("phone number can only contain digits")

	// ErrEmptyPhone indicates phone number is empty
	ErrEmptyPhone = errors.New("phone number cannot be empty")
)

// validPrefixes are the Nigerian mobile number ranges
var validPrefixes = []string{"070", "080", "081", "090", "091"}

// operators maps 4-digit network codes to the operator that owns them
var operators = map[string]string{
	"0703": "MTN", "0706": "MTN", "0803": "MTN", "0806": "MTN", "0810": "MTN", "0813": "MTN",
	"0814": "MTN", "0816": "MTN", "0903": "MTN", "0906": "MTN", "0913": "MTN", "0916": "MTN",
	"0705": "Glo", "0805": "Glo", "0807": "Glo", "0811": "Glo", "0815": "Glo", "0905": "Glo", "0915": "Glo",
	"0701": "Airtel", "0708": "Airtel", "0802": "Airtel", "0808": "Airtel", "0812": "Airtel",
	"0901": "Airtel", "0902": "Airtel", "0904": "Airtel", "0907": "Airtel", "0912": "Airtel",
	"0809": "9mobile", "0817": "9mobile", "0818": "9mobile", "0908": "9mobile", "0909": "9mobile",
}

var phoneRegex = regexp.MustCompile(`^\d+$`)

// PhoneValidator handles phone number validation
type PhoneValidator struct{}

// NewPhoneValidator creates a new phone validator instance
func NewPhoneValidator() *PhoneValidator {
	return &PhoneValidator{}
}

// Validate validates a Nigerian mobile number.
// Accepts 08031234567, 0803 123 4567, 0803-123-4567 or +2348031234567.
// Returns the sanitized local form (11 digits).
func (v *PhoneValidator) Validate(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", ErrEmptyPhone
	}

	sanitized := v.Sanitize(phone)

	if !phoneRegex.MatchString(sanitized) {
		return "", ErrInvalidFormat
	}

	if len(sanitized) != 11 {
		return "", ErrInvalidLength
	}

	if !v.IsValidPrefix(sanitized) {
		return "", ErrInvalidPrefix
	}

	return sanitized, nil
}

// Sanitize removes separators and converts the 234 country code to a leading 0
func (v *PhoneValidator) Sanitize(phone string) string {
	phone = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "+", "", ".", "").Replace(phone)

	if strings.HasPrefix(phone, "234") && len(phone) == 13 {
		phone = "0" + phone[3:]
	}

	return phone
}

// IsValidPrefix checks if phone number has a Nigerian mobile prefix
func (v *PhoneValidator) IsValidPrefix(phone string) bool {
	if len(phone) < 3 {
		return false
	}

	prefix := phone[:3]
	for _, validPrefix := range validPrefixes {
		if prefix == validPrefix {
			return true
		}
	}

	return false
}

// Format formats a phone number for display: 0803 123 4567
func (v *PhoneValidator) Format(phone string) (string, error) {
	sanitized, err := v.Validate(phone)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s %s %s", sanitized[0:4], sanitized[4:7], sanitized[7:11]), nil
}

// International returns the E.164 form used by SMS gateways: +2348031234567
func (v *PhoneValidator) International(phone string) (string, error) {
	sanitized, err := v.Validate(phone)
	if err != nil {
		return "", err
	}
	return "+234" + sanitized[1:], nil
}

// GetOperator returns the mobile operator name based on the network code
func (v *PhoneValidator) GetOperator(phone string) (string, error) {
	sanitized, err := v.Validate(phone)
	if err != nil {
		return "", err
	}

	if op, ok := operators[sanitized[:4]]; ok {
		return op, nil
	}
	return "Unknown", nil
}

// IsValid is a convenience method that returns true if phone is valid
func (v *PhoneValidator) IsValid(phone string) bool {
	_, err := v.Validate(phone)
	return err == nil
}
