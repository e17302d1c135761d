package bulletin

import (
	"fmt"
	"reflect"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/simonmuehling/educafric-platform-sub005/core"
)

var (
	gradeTag = "grade"

	statusTag  = "bulletin_status"
	statusText = "invalid bulletin status"
)

// InitValidators registers the bulletin validation tags. Grades must lie within [0, maxGrade].
func InitValidators(validate *validator.Validate, translator ut.Translator, maxGrade float64) {
	_ = validate.RegisterValidation(gradeTag, gradeValidation(maxGrade))
	core.RegisterCustomTranslation(validate, translator, gradeTag, fmt.Sprintf("{0} must be between 0 and %g", maxGrade))

	_ = validate.RegisterValidation(statusTag, statusValidation)
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}

func gradeValidation(maxGrade float64) validator.Func {
	return func(fl validator.FieldLevel) bool {
		fld := fl.Field()
		if fld.Kind() == reflect.Ptr {
			if fld.IsNil() {
				return true
			}
			fld = fld.Elem()
		}
		switch fld.Kind() {
		case reflect.Float32, reflect.Float64:
			g := fld.Float()
			return g >= 0 && g <= maxGrade
		default:
			return false
		}
	}
}

func statusValidation(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	return Status(fl.Field().String()).Valid()
}
