package guest

import (
	"fmt"
)

// Exception is a guest exception. Returned from a guest callback it crosses
// host frames unchanged.
type Exception struct {
	Message string
	Payload any
}

// Throw builds an Exception with a formatted message.
func Throw(format string, args ...any) *Exception {
	return &Exception{Message: fmt.Sprintf(format, args...)}
}

func (e *Exception) Error() string { return e.Message }

// Exception returns the guest payload, or the message when there is none.
func (e *Exception) Exception() any {
	if e.Payload != nil {
		return e.Payload
	}
	return e.Message
}
