package unidade

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indica unidade inexistente.
	ErrNotFound = errors.New("unidade de saúde não encontrada")
	// ErrCodigoDuplicado indica código CNES já cadastrado.
	ErrCodigoDuplicado = errors.New("unidade de saúde já cadastrada")
)

// UnidadeSaude representa uma unidade de saúde cadastrada.
type UnidadeSaude struct {
	ID          uuid.UUID `json:"id"`
	Nome        string    `json:"nome_unidade_saude"`
	Codigo      string    `json:"codigo_unidade_saude"`
	Localizacao string    `json:"nome_localizacao"`
	Cidade      string    `json:"cidade_unidade_saude"`
	Ativa       bool      `json:"is_active"`
	CriadoEm    time.Time `json:"criado_em"`
}

// CriarInput reúne os dados de cadastro de unidade.
type CriarInput struct {
	Nome        string
	Codigo      string
	Localizacao string
	Cidade      string
	Ativa       bool
}

// EditarInput reúne alterações parciais; ponteiro nulo mantém o valor atual.
type EditarInput struct {
	Nome        *string
	Localizacao *string
	Cidade      *string
	Ativa       *bool
}
