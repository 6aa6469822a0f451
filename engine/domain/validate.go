package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/shopspring/decimal"
)

// ValidatorSvc holds the shared validator and its english translator.
type ValidatorSvc struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	vOnce sync.Once
	vSvc  *ValidatorSvc
)

// Validator returns the shared validator, initializing it on first use. Field
// names in messages come from json tags, then koanf tags; decimal.Decimal fields validate as
// float64; the "equipment" tag checks catalog membership.
func Validator() *ValidatorSvc {
	vOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				tag = fld.Tag.Get("koanf")
			}
			if tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})
		v.RegisterCustomTypeFunc(func(f reflect.Value) any {
			if d, ok := f.Interface().(decimal.Decimal); ok {
				fv, _ := d.Float64()
				return fv
			}
			return nil
		}, decimal.Decimal{})

		_ = en_translations.RegisterDefaultTranslations(v, trans)
		registerEquipment(v, trans)

		vSvc = &ValidatorSvc{Validator: v, Translator: trans}
	})
	return vSvc
}

func registerEquipment(v *validator.Validate, trans ut.Translator) {
	_ = v.RegisterValidation("equipment", func(fl validator.FieldLevel) bool {
		return KnownEquipment(fl.Field().String())
	})
	_ = v.RegisterTranslation("equipment", trans,
		func(ut ut.Translator) error {
			return ut.Add("equipment", "{0} contains an unknown equipment option", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T("equipment", fe.Field())
			return t
		},
	)
}

// Struct validates s and converts failures into ValidationErrors wrapping
// sentinel.
func (svc *ValidatorSvc) Struct(s any, sentinel error) error {
	err := svc.Validator.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("domain: validate: %w", err)
	}
	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, &ValidationError{
			Field:   fieldPath(fe),
			Value:   fmt.Sprint(fe.Value()),
			Message: fe.Translate(svc.Translator),
			Wrapped: sentinel,
		})
	}
	return out
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// ValidateCriteria checks enum membership, equipment tags, non-negative
// prices and the horizon and mileage bounds.
func ValidateCriteria(c SelectionCriteria) error {
	return Validator().Struct(c, ErrInvalidCriteria)
}
