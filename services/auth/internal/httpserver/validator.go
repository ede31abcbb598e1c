package httpserver

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

// RequestValidator plugs go-playground/validator into echo's Context.Validate.
type RequestValidator struct {
	once     sync.Once
	validate *validator.Validate
}

func (v *RequestValidator) Validate(i any) error {
	v.once.Do(func() {
		v.validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return v.validate.Struct(i)
}
