package record

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags of v and converts failures into a
// validation Error naming the offending fields.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return WrapError(ErrCodeValidation, "invalid input", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "oneof":
			msgs = append(msgs, fe.Field()+" must be one of ["+fe.Param()+"]")
		default:
			msgs = append(msgs, fe.Field()+" failed "+fe.Tag())
		}
	}
	return Errorf(ErrCodeValidation, "%s", strings.Join(msgs, "; "))
}
