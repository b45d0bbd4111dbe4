package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/charlesng35/expensely/internal/models"
	appErrors "github.com/charlesng35/expensely/pkg/errors"
	"github.com/charlesng35/expensely/pkg/response"
	appValidator "github.com/charlesng35/expensely/pkg/validator"
)

func init() {
	enums := map[string]func(string) bool{
		"category": func(v string) bool {
			_, ok := models.ParseCategory(v)
			return ok
		},
		"payment_method": func(v string) bool {
			_, ok := models.ParsePaymentMethod(v)
			return ok
		},
		"member_role": func(v string) bool {
			_, err := models.ParseRole(v)
			return err == nil
		},
	}
	for tag, check := range enums {
		check := check
		if err := appValidator.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return check(fl.Field().String())
		}); err != nil {
			panic(fmt.Sprintf("handlers: register %s validation: %v", tag, err))
		}
	}
}

// bindAndValidate binds the JSON payload into dest and runs struct validation rules.
// When validation fails, an error response is automatically written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest(formatValidationError(err)))
		return false
	}

	return true
}

func formatValidationError(err error) string {
	if err == nil {
		return "invalid request payload"
	}

	if ve, ok := err.(appValidator.ValidationErrors); ok {
		if len(ve) == 0 {
			return "invalid request payload"
		}

		messages := make([]string, 0, len(ve))
		for _, failure := range ve {
			field := prettifyFieldName(failure.Field)
			switch failure.Tag {
			case "required", "notblank":
				messages = append(messages, fmt.Sprintf("%s is required", field))
			case "email":
				messages = append(messages, fmt.Sprintf("%s must be a valid email address", field))
			case "min":
				messages = append(messages, fmt.Sprintf("%s must be at least %s", field, failure.Param))
			case "max":
				messages = append(messages, fmt.Sprintf("%s must be at most %s", field, failure.Param))
			case "gte":
				messages = append(messages, fmt.Sprintf("%s must not be less than %s", field, failure.Param))
			case "category", "payment_method", "member_role":
				messages = append(messages, fmt.Sprintf("%s is not a recognised %s", field, strings.ReplaceAll(failure.Tag, "_", " ")))
			default:
				if failure.Param != "" {
					messages = append(messages, fmt.Sprintf("%s failed validation: %s=%s", field, failure.Tag, failure.Param))
				} else {
					messages = append(messages, fmt.Sprintf("%s failed validation: %s", field, failure.Tag))
				}
			}
		}
		return strings.Join(messages, "; ")
	}

	return "invalid request payload"
}

func prettifyFieldName(name string) string {
	if name == "" {
		return "field"
	}
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ToLower(name)
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// bindRole normalises a validated role field. An empty value yields fallback.
func bindRole(c *gin.Context, value string, fallback models.Role) (models.Role, bool) {
	if strings.TrimSpace(value) == "" {
		return fallback, true
	}
	role, err := models.ParseRole(value)
	if err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return "", false
	}
	return role, true
}
