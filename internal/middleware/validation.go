package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
)

// maxMessageBytes bounds an inbound message body. WhatsApp caps text well
// below this; anything larger is hostile input.
const maxMessageBytes = 8192

// ValidateMessageBody validates an inbound or widget message body.
func ValidateMessageBody(body string) error {
	if len(body) == 0 {
		return errors.New("message body cannot be empty")
	}
	if len(body) > maxMessageBytes {
		return errors.New("message body exceeds maximum length")
	}
	if !utf8.ValidString(body) {
		return errors.New("message body must be valid UTF-8")
	}
	return nil
}

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid conversation ID format")
	}
	return nil
}

// ValidateChannelAddress validates a channel address (phone number or widget
// session id).
func ValidateChannelAddress(address string) error {
	if len(address) == 0 {
		return errors.New("channel address cannot be empty")
	}
	if len(address) > 128 {
		return errors.New("channel address exceeds maximum length")
	}
	return nil
}

// ValidateTenantID validates a tenant ID.
func ValidateTenantID(id string) error {
	if len(id) == 0 {
		return errors.New("tenant ID cannot be empty")
	}
	if len(id) > 64 {
		return errors.New("tenant ID exceeds maximum length")
	}
	return nil
}
