// Package validatex validates request structs and reports failures as a
// field-to-message map keyed by the JSON (or form) field name.
package validatex

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

// ErrTranslatorNotFound indicates the requested translator is unavailable.
var ErrTranslatorNotFound = errors.New("validatex: translator not found")

// Error carries one message per offending field.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation error"
	}
	b, _ := json.Marshal(e.Fields)
	return "validation error: " + string(b)
}

// Field returns the message for name, or "".
func (e *Error) Field(name string) string {
	return e.Fields[name]
}

// Validator wraps go-playground/validator with English messages.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// New constructs a Validator with English translations and the custom
// messages used by the challenge forms.
func New() (*Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(fieldName)

	enLang := en.New()
	uni := ut.New(enLang, enLang)
	enTrans, ok := uni.GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}

	if err := enTranslations.RegisterDefaultTranslations(validate, enTrans); err != nil {
		return nil, err
	}
	if err := registerCustom(validate, enTrans); err != nil {
		return nil, err
	}

	return &Validator{validate: validate, translator: enTrans}, nil
}

// MustNew is New for package-level initialisation.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// Struct validates data and returns *Error on failure.
func (v *Validator) Struct(data any) error {
	err := v.validate.Struct(data)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := &Error{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		// Keep the first failure per field.
		if _, seen := out.Fields[fe.Field()]; !seen {
			out.Fields[fe.Field()] = fe.Translate(v.translator)
		}
	}
	return out
}

// fieldName reports fields by their json tag, falling back to the form tag
// and then the Go name.
func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

func registerCustom(validate *validator.Validate, trans ut.Translator) error {
	messages := map[string]string{
		"email": "Enter a valid email address.",
	}
	for tag, msg := range messages {
		err := validate.RegisterTranslation(tag, trans,
			func(t ut.Translator) error { return t.Add(tag, msg, true) },
			func(t ut.Translator, fe validator.FieldError) string {
				s, err := t.T(fe.Tag(), fe.Field())
				if err != nil {
					return fe.Error()
				}
				return s
			},
		)
		if err != nil {
			return err
		}
	}
	return nil
}
