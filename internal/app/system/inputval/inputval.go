// Package inputval validates request input with go-playground/validator.
// Struct fields carry a `validate` rule list and a `label` used to build
// user-facing messages.
package inputval

import (
	"errors"
	"fmt"
	"net/mail"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError is one failed rule on one field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result collects every field error from one Validate call.
type Result struct {
	Errors []FieldError `json:"errors,omitempty"`
}

// HasErrors reports whether validation failed.
func (r *Result) HasErrors() bool { return len(r.Errors) > 0 }

// First returns the first message, or "".
func (r *Result) First() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

// All joins every message with "; ".
func (r *Result) All() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// Field returns the message for field, or "".
func (r *Result) Field(name string) string {
	for _, e := range r.Errors {
		if e.Field == name {
			return e.Message
		}
	}
	return ""
}

// Add appends an error that a struct rule cannot express.
func (r *Result) Add(field, message string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Message: message})
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Field names in errors come from the json tag so they match the
	// request payload.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	must(v.RegisterValidation("email", func(fl validator.FieldLevel) bool {
		return IsValidEmail(fl.Field().String())
	}))
	must(v.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
		return IsValidHTTPURL(fl.Field().String())
	}))
	must(v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return IsStrongPassword(fl.Field().String())
	}))
	must(v.RegisterValidation("resourcetype", func(fl validator.FieldLevel) bool {
		return IsValidResourceType(fl.Field().String())
	}))
	must(v.RegisterValidation("eventtype", func(fl validator.FieldLevel) bool {
		return IsValidEventType(fl.Field().String())
	}))
	return v
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Validate runs the struct's rules and converts failures into messages.
func Validate(s any) *Result {
	res := &Result{}
	err := validate.Struct(s)
	if err == nil {
		return res
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		res.Add("", err.Error())
		return res
	}
	t := reflect.TypeOf(s)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	for _, fe := range verrs {
		res.Add(fe.Field(), message(fe, label(t, fe)))
	}
	return res
}

func label(t reflect.Type, fe validator.FieldError) string {
	if t.Kind() == reflect.Struct {
		if f, ok := t.FieldByName(fe.StructField()); ok {
			if l := f.Tag.Get("label"); l != "" {
				return l
			}
		}
	}
	return fe.Field()
}

func message(fe validator.FieldError, label string) string {
	switch fe.Tag() {
	case "required", "required_unless", "required_if":
		return label + " is required."
	case "max":
		return fmt.Sprintf("%s must be at most %s characters.", label, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters.", label, fe.Param())
	case "email":
		return "A valid email address is required."
	case "httpurl":
		return label + " must be a valid http(s) URL."
	case "password":
		return label + " must be at least 8 characters and contain a letter and a digit."
	case "uuid", "uuid4":
		return label + " is not a valid id."
	case "gtfield":
		return label + " must be after the start."
	default:
		return label + " is invalid."
	}
}

// IsValidEmail accepts a bare addr-spec (no display name) with a non-empty
// local part and domain and no stray dots.
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t<>") {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return false
	}
	for _, part := range []string{s[:at], s[at+1:]} {
		if strings.HasPrefix(part, ".") || strings.HasSuffix(part, ".") || strings.Contains(part, "..") {
			return false
		}
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// IsValidHTTPURL reports whether s is an absolute http or https URL.
func IsValidHTTPURL(s string) bool {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}
	host := s[strings.Index(s, "//")+2:]
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	return host != "" && !strings.ContainsAny(host, " \t")
}

// IsStrongPassword requires at least 8 characters including a letter and a digit.
func IsStrongPassword(s string) bool {
	if len(s) < 8 {
		return false
	}
	var letter, digit bool
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			letter = true
		}
	}
	return letter && digit
}
