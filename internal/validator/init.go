package validator

import (
	"ctchen222/Tic-Tac-Toe-AI/internal/bot"
	"ctchen222/Tic-Tac-Toe-AI/internal/session"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(fieldName)

	// difficulty accepts the opponent tier names.
	mustRegister("difficulty", func(fl validator.FieldLevel) bool {
		_, err := bot.ParseDifficulty(fl.Field().String())
		return err == nil
	})
	// session_mode accepts the mode names clients send.
	mustRegister("session_mode", func(fl validator.FieldLevel) bool {
		_, err := session.ParseMode(fl.Field().String())
		return err == nil
	})
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

// fieldName reports fields by their wire name: json first, then yaml.
func fieldName(f reflect.StructField) string {
	for _, key := range []string{"json", "yaml"} {
		name, _, _ := strings.Cut(f.Tag.Get(key), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

func GetValidator() *validator.Validate {
	return validate
}

// Describe flattens validation errors into one line, e.g.
// "position failed max=8; mode failed session_mode". Other errors are
// returned as is.
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), rule))
	}
	return strings.Join(parts, "; ")
}
