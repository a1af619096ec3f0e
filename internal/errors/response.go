package errors

import (
	"github.com/cockroachdb/errors"
)

// ErrorDetail is the serializable body of an ErrorResponse.
type ErrorDetail struct {
	Message  string                 `json:"message"`
	Hint     string                 `json:"hint,omitempty"`
	Internal map[string]interface{} `json:"details,omitempty"`
}

// ErrorResponse is the wire representation of an error, used by the
// collaborator layers when surfacing engine failures.
type ErrorResponse struct {
	Success bool        `json:"success"`
	Status  int         `json:"-"`
	Error   ErrorDetail `json:"error"`
}

// NewErrorResponse converts any error into its wire representation.
func NewErrorResponse(err error) *ErrorResponse {
	if err == nil {
		return nil
	}

	resp := &ErrorResponse{
		Success: false,
		Status:  httpStatusFromMark(err),
		Error: ErrorDetail{
			Message: err.Error(),
		},
	}

	var ie *InternalError
	if errors.As(err, &ie) {
		resp.Error.Hint = ie.Hint()
		resp.Error.Internal = ie.ReportableDetails()
	}

	return resp
}
