package middleware

import (
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var registerOnce sync.Once

// RegisterValidators configures gin's validator: field names come from json
// tags, decimals validate as numbers and time_hhmm checks "HH:MM" strings.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})

		if err := v.RegisterValidation("time_hhmm", validateTimeHHMM); err != nil {
			panic(err)
		}
	})
}

func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.InexactFloat64()
	}
	return nil
}

func validateTimeHHMM(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) != 5 {
		return false
	}
	_, err := time.Parse("15:04", s)
	return err == nil
}
