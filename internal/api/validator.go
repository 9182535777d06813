package api

import (
	"github.com/go-playground/validator/v10"
	"github.com/yakoovad/finflow/internal/model"
)

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// registration only fails on an empty tag
	_ = v.RegisterValidation("transaction_category", func(fl validator.FieldLevel) bool {
		return model.ValidCategory(model.TransactionCategory(fl.Field().String()))
	})
	_ = v.RegisterValidation("transaction_status", func(fl validator.FieldLevel) bool {
		return model.ValidStatus(model.TransactionStatus(fl.Field().String()))
	})

	return &Validator{validate: v}
}

func (v *Validator) Validate(i any) error {
	return v.validate.Struct(i)
}
