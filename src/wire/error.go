package wire

import (
	"github.com/zikwall/tabletstore-client/src/cx"
)

// Error is the semantic failure embedded in a service response. Transport
// failures never reach this type; they surface as plain RPC errors.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewError builds an embedded error from a coded status.
func NewError(err error) *Error {
	return &Error{
		Code:    string(cx.ErrorCode(err)),
		Message: cx.ErrorMessage(err),
	}
}

// StatusFromError translates an embedded error back into a coded error,
// preserving the server's code and message verbatim.
func StatusFromError(e *Error) error {
	return cx.NewError(cx.Code(e.Code), e.Message)
}
