// Package validation checks instance descriptors and identifiers before they are
// stored or interpolated into shell commands.
package validation

import (
	"encoding/json"
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pandeptwidyaop/deploy-manager/internal/models"
)

var (
	// ErrInputInvalid indicates input contains invalid characters.
	ErrInputInvalid = errors.New("input contains invalid characters")
	// ErrInputTooLong indicates input exceeds maximum length.
	ErrInputTooLong = errors.New("input exceeds maximum length")
)

// MaxNameLength is the longest accepted instance name.
const MaxNameLength = 64

var (
	validName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_\-]*$`)
	// Anything the shell would treat specially once the value is spliced into a command.
	shellSpecial = " \t\r\n\x00;&|$`<>(){}[]\"'\\*?!#~"
)

// FieldError is a single invalid field, addressed by its dotted json path.
type FieldError struct {
	Field   string
	Message string
}

// FieldErrors collects every invalid field of a record. It encodes as a list of
// [field, message] pairs.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "invalid fields: " + strings.Join(parts, ", ")
}

func (e FieldErrors) MarshalJSON() ([]byte, error) {
	pairs := make([][2]string, 0, len(e))
	for _, fe := range e {
		pairs = append(pairs, [2]string{fe.Field, fe.Message})
	}
	return json.Marshal(pairs)
}

func (e *FieldErrors) UnmarshalJSON(data []byte) error {
	var pairs [][2]string
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}
	out := make(FieldErrors, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, FieldError{Field: p[0], Message: p[1]})
	}
	*e = out
	return nil
}

// Validator validates descriptors. Build one with New and pass it to whatever
// needs it.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator with the descriptor rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("abspath", func(fl validator.FieldLevel) bool {
		return ValidatePath(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("shellsafe", func(fl validator.FieldLevel) bool {
		return IsShellSafe(fl.Field().String())
	})
	_ = v.RegisterValidation("instancename", func(fl validator.FieldLevel) bool {
		return ValidateName(fl.Field().String()) == nil
	})

	return &Validator{v: v}
}

// Descriptor validates a descriptor record. It returns FieldErrors when one or
// more fields are invalid.
func (v *Validator) Descriptor(d *models.InstanceDescriptor) error {
	return v.check(d)
}

// Rest validates a backend service record the same way.
func (v *Validator) Rest(d *models.RestDescriptor) error {
	return v.check(d)
}

func (v *Validator) check(record any) error {
	err := v.v.Struct(record)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(FieldErrors, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field:   trimNamespace(fe.Namespace()),
			Message: message(fe.Tag()),
		})
	}
	return fields
}

func trimNamespace(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(tag string) string {
	switch tag {
	case "required":
		return "missing"
	case "abspath":
		return "must be an absolute path"
	case "shellsafe":
		return "contains characters not allowed in commands"
	case "instancename":
		return "invalid name"
	default:
		return "failed " + tag
	}
}

// ValidateName validates an instance name.
func ValidateName(name string) error {
	if len(name) > MaxNameLength {
		return ErrInputTooLong
	}
	if !validName.MatchString(name) {
		return ErrInputInvalid
	}
	return nil
}

// ValidatePath validates a file system path.
func ValidatePath(path string) error {
	// Prevent path traversal
	if strings.Contains(path, "..") {
		return ErrInputInvalid
	}

	// Must be absolute path
	if !strings.HasPrefix(path, "/") {
		return ErrInputInvalid
	}

	if strings.ContainsAny(path, "\x00\n\r") {
		return ErrInputInvalid
	}

	return nil
}

// IsShellSafe reports whether s can be spliced unquoted into a shell command.
func IsShellSafe(s string) bool {
	return !strings.ContainsAny(s, shellSpecial)
}

// ValidateBackupID validates a backup identifier, which must name a single
// entry inside the backups directory.
func ValidateBackupID(id string) error {
	if id == "" || id == "." || strings.Contains(id, "..") || strings.Contains(id, "/") {
		return ErrInputInvalid
	}
	if !IsShellSafe(id) {
		return ErrInputInvalid
	}
	return nil
}
