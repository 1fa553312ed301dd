package util

import (
	"net/mail"
	"strings"
)

// ValidationError marca erros de entrada do usuário, para que a camada HTTP
// responda 400 em vez de 500.
type ValidationError struct {
	msg string
}

func (e ValidationError) Error() string {
	return e.msg
}

// NewValidationError cria um erro de validação com a mensagem dada.
func NewValidationError(msg string) error {
	return ValidationError{msg: msg}
}

// ValidateEmail retorna erro para e-mails inválidos.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationError{msg: "email obrigatório"}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ValidationError{msg: "email inválido"}
	}
	return nil
}

// ValidatePassword verifica requisitos mínimos de senha.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ValidationError{msg: "senha deve ter pelo menos 8 caracteres"}
	}
	return nil
}

// RequireString garante string não vazia.
func RequireString(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{msg: field + " obrigatório"}
	}
	return nil
}
