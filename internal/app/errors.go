package app

import (
	"fmt"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func permissionDenied() *DomainError {
	return domainError(http.StatusForbidden, "PERMISSION_DENIED", "Você não tem permissão para alterar este patrimônio", nil)
}

func notFound() *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", "Patrimônio não encontrado", nil)
}

func duplicateNumber(number string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "DUPLICATE_NUMBER", "Já existe um patrimônio com este número", map[string]any{"number": number})
}
