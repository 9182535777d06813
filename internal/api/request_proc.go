package api

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// ProcessRequest runs the steps in order and stops at the first failure.
func ProcessRequest[T any](e echo.Context, req *T, steps ...func(echo.Context, *T) error) error {
	for _, step := range steps {
		if err := step(e, req); err != nil {
			return err
		}
	}
	return nil
}

func bindStep(e echo.Context, req *any) error {
	if err := e.Bind(*req); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

func validateStep(e echo.Context, req *any) error {
	if err := e.Validate(*req); err != nil {
		return errors.Wrap(err, "request validation failed")
	}
	return nil
}
