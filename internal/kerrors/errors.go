// Package kerrors is the host-side error taxonomy: rich,
// typed errors with a small fixed set of reasons that transports map to
// their own status surface (e.g. HTTP), classified with errors.As
// helpers in the IsXxxError style.
package kerrors

import "errors"

// Reason classifies an Error for transport-layer mapping. Kept as a
// small closed set, not a free-form string.
type Reason string

const (
	// InternalError covers poisoned locks, timeouts, channel-send
	// failures, and a plugin returning null where not allowed. REST: 500.
	InternalError Reason = "internal_error"
	// ResourceNotFound: unknown library or peripheral id. REST: 404.
	ResourceNotFound Reason = "resource_not_found"
	// UnprocessableRequest: malformed value, e.g. interior null in a
	// string or a failed type conversion. REST: 422.
	UnprocessableRequest Reason = "unprocessable_request"
	// AttributeDoesNotExist: an attribute id is not present on the
	// peripheral. REST: 404.
	AttributeDoesNotExist Reason = "attribute_does_not_exist"
	// AttributeNotSettable: a set was rejected by phase/callback policy.
	// REST: 422.
	AttributeNotSettable Reason = "attribute_not_settable"
	// AttributeFailure: the plugin's vtable reported a failure servicing
	// an otherwise well-formed request. REST: 500.
	AttributeFailure Reason = "attribute_failure"
	// PluginInitError: plugin_init returned a non-OK code. REST: 500.
	PluginInitError Reason = "plugin_init_error"
	// AdvancePhaseError: a phase transition was attempted out of order.
	// REST: 500.
	AdvancePhaseError Reason = "advance_phase_error"
)

// HTTPStatus is the REST mapping for this reason, refined for the two
// attribute-specific reasons beyond the base three.
func (r Reason) HTTPStatus() int {
	switch r {
	case ResourceNotFound, AttributeDoesNotExist:
		return 404
	case UnprocessableRequest, AttributeNotSettable:
		return 422
	default:
		return 500
	}
}

// Error is the concrete type carried by every Core API failure.
type Error struct {
	Message string
	Reason  Reason
	Cause   error
}

func New(reason Reason, message string) *Error {
	return &Error{Message: message, Reason: reason}
}

func Wrap(reason Reason, message string, cause error) *Error {
	return &Error{Message: message, Reason: reason, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether err carries reason, for errors.Is-style checks
// against a single sentinel-free taxonomy.
func Is(err error, reason Reason) bool {
	var ke *Error
	return errors.As(err, &ke) && ke.Reason == reason
}

func IsResourceNotFound(err error) bool     { return Is(err, ResourceNotFound) }
func IsUnprocessableRequest(err error) bool { return Is(err, UnprocessableRequest) }
func IsAttributeDoesNotExist(err error) bool { return Is(err, AttributeDoesNotExist) }
func IsAttributeNotSettable(err error) bool { return Is(err, AttributeNotSettable) }
func IsInternalError(err error) bool        { return Is(err, InternalError) }
