// internal/service/template_service.go
package service

import (
	"strings"

	appErrors "github.com/telinga/telinga-backend/internal/errors"
	"github.com/telinga/telinga-backend/internal/model"
)

// Placeholders the renderer recognizes. Anything else in {{...}} syntax is
// left verbatim so one odd template does not fail a whole batch.
var templateFields = []string{"phone_number", "email", "first_name", "last_name"}

// TemplateRenderer substitutes customer fields into message templates.
// Defaults, when configured, fill placeholders whose customer field is empty.
type TemplateRenderer struct {
	Defaults map[string]string
}

func NewTemplateRenderer(defaults map[string]string) *TemplateRenderer {
	return &TemplateRenderer{Defaults: defaults}
}

func customerField(c *model.Customer, field string) string {
	switch field {
	case "phone_number":
		return c.Phone
	case "email":
		return c.Email
	case "first_name":
		return c.FirstName
	case "last_name":
		return c.LastName
	}
	return ""
}

// Render fills recognized placeholders from the customer record. A
// referenced field that is empty with no configured default fails the whole
// render: sending a literal unfilled placeholder to a customer is a defect.
func (r *TemplateRenderer) Render(template string, customer *model.Customer) (string, error) {
	rendered := template
	for _, field := range templateFields {
		placeholder := "{{" + field + "}}"
		if !strings.Contains(rendered, placeholder) {
			continue
		}
		value := customerField(customer, field)
		if value == "" {
			value = r.Defaults[field]
		}
		if value == "" {
			return "", appErrors.NewTemplateError(field)
		}
		rendered = strings.ReplaceAll(rendered, placeholder, value)
	}
	return rendered, nil
}
