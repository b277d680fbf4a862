package abi

// Code is one of the thirteen numeric return codes every vtable entry
// produces, resolved against
// original_source/kpal-plugin/src/constants.rs.
type Code int32

const (
	PluginOK               Code = 0
	UndefinedErr           Code = 1
	PluginInitErr          Code = 2
	PluginUninitErr        Code = 3
	AttributeDoesNotExist  Code = 4
	AttributeTypeMismatch  Code = 5
	AttributeIsNotSettable Code = 6
	IOErr                  Code = 7
	ConversionErr          Code = 8
	NullPtrErr             Code = 9
	CallbackErr            Code = 10
	UpdateCachedValueErr   Code = 11
	LifecyclePhaseErr      Code = 12

	numCodes = 13
)

// messages is the daemon's static fallback table, used only when the
// plugin's own error_message_ns returns a null pointer.
// Indexed by Code; values taken verbatim from
// original_source/kpal-plugin/src/constants.rs's ERRORS array.
var messages = [numCodes]string{
	PluginOK:               "Plugin OK",
	UndefinedErr:           "An undefined error occurred",
	PluginInitErr:          "The plugin failed to initialize",
	PluginUninitErr:        "The plugin has not been initialized",
	AttributeDoesNotExist:  "The attribute does not exist",
	AttributeTypeMismatch:  "The attribute value has the wrong type",
	AttributeIsNotSettable: "The attribute cannot be set",
	IOErr:                  "An I/O error occurred",
	ConversionErr:          "A value conversion failed",
	NullPtrErr:             "A null pointer was encountered",
	CallbackErr:            "An attribute callback failed",
	UpdateCachedValueErr:   "Updating the cached attribute value failed",
	LifecyclePhaseErr:      "The operation is not valid in the current lifecycle phase",
}

// FallbackMessage returns the daemon's static message for code, or
// "unknown error" if code is out of range.
func FallbackMessage(code Code) string {
	if code < 0 || int(code) >= numCodes {
		return "unknown error"
	}
	return messages[code]
}

// PluginCode exposes the numeric return code to callers outside this
// package that classify plugin errors without depending on abi.Code
// directly (see internal/executor.toPluginError).
func (e *Error) PluginCode() int32 { return int32(e.Code) }
