package repo

import (
	"time"

	"github.com/google/uuid"
)

// Usuario representa um profissional cadastrado no sistema.
// SenhaHash nula indica cadastro pendente: o convite foi emitido mas o
// usuário ainda não concluiu o registro.
type Usuario struct {
	ID              uuid.UUID
	Nome            string
	CPF             string
	Email           string
	SenhaHash       *string
	Ativo           bool
	ConviteToken    *string
	ConviteUsado    bool
	ResetToken      *string
	ResetUsado      bool
	CriadoEm        time.Time
	CriadoPor       *uuid.UUID
	AtualizadoPor   *uuid.UUID
	Roles           []Role
	Unidades        []UnidadeSaude
}

// Pendente indica que o usuário ainda não definiu senha.
func (u Usuario) Pendente() bool {
	return u.SenhaHash == nil
}

// Role representa uma função do catálogo global com nível de acesso.
// Níveis maiores significam mais privilégio (ADMIN=3 no seed).
type Role struct {
	ID          uuid.UUID
	Nome        string
	NivelAcesso int
}

// UnidadeSaude representa a unidade de saúde de vínculo.
type UnidadeSaude struct {
	ID          uuid.UUID
	Nome        string
	Codigo      string
	Localizacao string
	Cidade      string
	Ativa       bool
	CriadoEm    time.Time
}

// CriarUsuarioPendenteParams reúne os dados de um convite de cadastro.
type CriarUsuarioPendenteParams struct {
	Email        string
	CPF          string
	RoleID       uuid.UUID
	UnidadeID    uuid.UUID
	ConviteToken string
	CriadoPor    uuid.UUID
}

// EditarUsuarioParams reúne as alterações administrativas sobre um usuário.
type EditarUsuarioParams struct {
	CPF           string
	RoleID        uuid.UUID
	UnidadeID     uuid.UUID
	Ativo         bool
	AtualizadoPor uuid.UUID
}
