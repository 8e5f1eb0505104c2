package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator"
)

// ValidateStruct проверяет структуру по тегам validate и возвращает единую
// ошибку с перечислением нарушений по полям.
func ValidateStruct(v any) error {
	err := validator.New().Struct(v)
	if err == nil {
		return nil
	}
	var validateErrs validator.ValidationErrors
	if !errors.As(err, &validateErrs) {
		return err
	}

	var errsMsgs []string
	for _, ve := range validateErrs {
		switch ve.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", ve.Field()))
		case "uuid":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only uuid", ve.Field()))
		case "url":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only url", ve.Field()))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only one of: %s", ve.Field(), ve.Param()))
		case "max":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is too long", ve.Field()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", ve.Field()))
		}
	}
	return errors.New(strings.Join(errsMsgs, ", "))
}
