package interop

import (
	"errors"
)

// Exception protocol on Go error values.

// IsException reports whether h wraps an error.
func (h *HostObject) IsException() bool {
	_, ok := h.hostValue().(error)
	return ok && !h.static
}

func (h *HostObject) exception(op string) (cause, err error) {
	if x, ok := h.hostValue().(error); ok && !h.static {
		return x, nil
	}
	return nil, &UnsupportedMessageError{Receiver: typeNameOf(h), Message: op}
}

func (h *HostObject) ExceptionMessage() (string, error) {
	err, uerr := h.exception("exception message")
	if uerr != nil {
		return "", uerr
	}
	return err.Error(), nil
}

// ExceptionCause returns the next error in the chain, wrapped for the
// guest, or Null at the end of the chain.
func (h *HostObject) ExceptionCause() (any, error) {
	err, uerr := h.exception("exception cause")
	if uerr != nil {
		return nil, uerr
	}
	cause := errors.Unwrap(err)
	if cause == nil {
		return Null, nil
	}
	return h.e.Wrap(cause), nil
}

// ExceptionStackTrace returns the host frames retained for a failed host
// invocation, or nil when the error carries none.
func (h *HostObject) ExceptionStackTrace() ([]string, error) {
	err, uerr := h.exception("exception stack trace")
	if uerr != nil {
		return nil, uerr
	}
	var hi *HostInvocationError
	if errors.As(err, &hi) {
		return hi.StackTrace(), nil
	}
	return nil, nil
}

// ExceptionDetails returns the structured payload of the error.
func (h *HostObject) ExceptionDetails() (map[string]any, error) {
	err, uerr := h.exception("exception details")
	if uerr != nil {
		return nil, uerr
	}
	return ErrorDetails(err), nil
}

// Throw returns the wrapped error so the guest can raise it as-is.
func (h *HostObject) Throw() error {
	err, uerr := h.exception("throw")
	if uerr != nil {
		return uerr
	}
	return err
}
