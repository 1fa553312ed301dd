package repo

import "errors"

var (
	// ErrNotFound é retornado quando nenhum registro é encontrado.
	ErrNotFound = errors.New("registro não encontrado")
	// ErrTokenUtilizado indica ticket de uso único já consumido.
	ErrTokenUtilizado = errors.New("token já utilizado")
	// ErrTokenDivergente indica ticket válido que não confere com a cópia persistida.
	ErrTokenDivergente = errors.New("token não confere com o registrado")
)
