package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// в сообщениях - имена полей из JSON
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// decodeAndValidate читает JSON-тело и проверяет теги validate.
// Возвращает сообщение для клиента; пустая строка - всё в порядке.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) string {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		return "Invalid JSON body"
	}
	return validationMessage(validate.Struct(dst))
}

func validationMessage(err error) string {
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return "Missing required field: " + fe.Field()
	case "email":
		return "Invalid email address in field: " + fe.Field()
	case "oneof":
		return fmt.Sprintf("Field %s must be one of: %s", fe.Field(), fe.Param())
	default:
		return "Invalid value in field: " + fe.Field()
	}
}
