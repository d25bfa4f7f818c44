package manage

import (
	"errors"
	"fmt"

	"github.com/pandeptwidyaop/deploy-manager/internal/validation"
)

// Error codes carried in API error bodies.
const (
	CodeGeneric      = 1
	CodeBadRequest   = 100
	CodeUnauthorized = 102
	CodeDataFields   = 1001
	CodeNotFound     = 1100
	CodeDBDuplicate  = 1101
	CodeBusy         = 1200
)

// Error is the body of every failed API response.
type Error struct {
	Status  int                    `json:"-"`
	Code    int                    `json:"code"`
	Message string                 `json:"error"`
	Fields  validation.FieldErrors `json:"fields,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s (code %d): %v", e.Message, e.Code, e.Fields)
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// IsCode reports whether err is an API error with the given code.
func IsCode(err error, code int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}
