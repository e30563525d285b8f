package patrimony

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidationError carries the inline message shown next to the form field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Validate checks field presence, length bounds (counted in characters,
// not bytes), and enum membership. It
// trims free-text fields in place so callers persist the trimmed values.
// location == Outro requires a custom location; any other location must not
// carry one.
func (f *Fields) Validate() error {
	f.Number = strings.TrimSpace(f.Number)
	f.Model = strings.TrimSpace(f.Model)
	f.RegisteredBy = strings.TrimSpace(f.RegisteredBy)
	f.Observations = strings.TrimSpace(f.Observations)
	f.CustomLocation = strings.TrimSpace(f.CustomLocation)

	if f.Number == "" {
		return invalid("number", "Número do patrimônio é obrigatório")
	}
	if utf8.RuneCountInString(f.Number) > 50 {
		return invalid("number", "Número deve ter no máximo 50 caracteres")
	}
	if f.Model == "" {
		return invalid("model", "Modelo é obrigatório")
	}
	if utf8.RuneCountInString(f.Model) > 200 {
		return invalid("model", "Modelo deve ter no máximo 200 caracteres")
	}
	if f.RegisteredBy == "" {
		return invalid("registeredBy", "Nome de quem registrou é obrigatório")
	}
	if utf8.RuneCountInString(f.RegisteredBy) > 200 {
		return invalid("registeredBy", "Nome deve ter no máximo 200 caracteres")
	}
	if f.Observations == "" {
		return invalid("observations", "Observações são obrigatórias")
	}
	if utf8.RuneCountInString(f.Observations) > 2000 {
		return invalid("observations", "Observações devem ter no máximo 2000 caracteres")
	}
	if _, ok := allowedStatuses[f.Status]; !ok {
		return invalid("status", "Status inválido")
	}
	if _, ok := allowedLocations[f.Location]; !ok {
		return invalid("location", "Localização inválida")
	}
	if f.Location == LocationOther {
		if f.CustomLocation == "" {
			return invalid("customLocation", "Por favor, especifique o local")
		}
		if utf8.RuneCountInString(f.CustomLocation) > 200 {
			return invalid("customLocation", "Localização deve ter no máximo 200 caracteres")
		}
	} else {
		f.CustomLocation = ""
	}
	if f.Problem != "" {
		if _, ok := allowedProblems[f.Problem]; !ok {
			return invalid("problem", "Problema inválido")
		}
	}
	return nil
}
