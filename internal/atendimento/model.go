package atendimento

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indica atendimento ou paciente inexistente.
	ErrNotFound = errors.New("registro não encontrado")
	// ErrPacienteDuplicado indica CPF de paciente já cadastrado.
	ErrPacienteDuplicado = errors.New("paciente já cadastrado")
	// ErrTermoJaCadastrado indica atendimento que já possui termo de consentimento.
	ErrTermoJaCadastrado = errors.New("atendimento já possui um termo de consentimento")
)

// Paciente representa a pessoa atendida.
type Paciente struct {
	ID               uuid.UUID `json:"id"`
	Nome             string    `json:"nome_paciente"`
	DataNascimento   time.Time `json:"data_nascimento"`
	Sexo             string    `json:"sexo"`
	CPF              string    `json:"cpf_paciente"`
	CartaoSUS        string    `json:"num_cartao_sus"`
	Endereco         string    `json:"endereco_paciente"`
	Telefone         string    `json:"telefone_paciente"`
	Email            string    `json:"email_paciente"`
	AutorizaPesquisa bool      `json:"autoriza_pesquisa"`
	CriadoEm         time.Time `json:"criado_em"`
	CriadoPor        uuid.UUID `json:"-"`
}

// Atendimento representa uma visita clínica de um paciente.
type Atendimento struct {
	ID         uuid.UUID `json:"id"`
	PacienteID uuid.UUID `json:"paciente_id"`
	UsuarioID  uuid.UUID `json:"usuario_id"`
	TermoURL   *string   `json:"termo_consentimento_url"`
	CriadoEm   time.Time `json:"criado_em"`
}

// Lesao representa uma lesão registrada em um atendimento.
type Lesao struct {
	ID            uuid.UUID   `json:"id"`
	AtendimentoID uuid.UUID   `json:"atendimento_id"`
	Local         string      `json:"local_lesao"`
	Descricao     string      `json:"descricao_lesao"`
	CriadoEm      time.Time   `json:"criado_em"`
	Fotos         []FotoLesao `json:"fotos"`
}

// FotoLesao referencia a imagem armazenada no object storage.
type FotoLesao struct {
	ID       uuid.UUID `json:"id"`
	LesaoID  uuid.UUID `json:"-"`
	URL      string    `json:"url"`
	CriadoEm time.Time `json:"criado_em"`
}

// PacienteInput reúne os dados de cadastro do paciente.
type PacienteInput struct {
	Nome             string    `json:"nome_paciente"`
	DataNascimento   time.Time `json:"data_nascimento"`
	Sexo             string    `json:"sexo"`
	CPF              string    `json:"cpf_paciente"`
	CartaoSUS        string    `json:"num_cartao_sus"`
	Endereco         string    `json:"endereco_paciente"`
	Telefone         string    `json:"telefone_paciente"`
	Email            string    `json:"email_paciente"`
	AutorizaPesquisa bool      `json:"autoriza_pesquisa"`
}
