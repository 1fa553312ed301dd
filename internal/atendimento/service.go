package atendimento

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dermalert/registro/internal/storage"
	"github.com/dermalert/registro/internal/util"
)

type clinicaRepository interface {
	GetPacienteByCPF(ctx context.Context, cpf string) (Paciente, error)
	CriarPacienteComAtendimento(ctx context.Context, input PacienteInput, usuarioID uuid.UUID) (Atendimento, error)
	GetAtendimento(ctx context.Context, id uuid.UUID) (Atendimento, error)
	ListAtendimentosByUsuario(ctx context.Context, usuarioID uuid.UUID) ([]Atendimento, error)
	DefinirTermo(ctx context.Context, atendimentoID uuid.UUID, url string) error
	CriarLesao(ctx context.Context, atendimentoID uuid.UUID, local, descricao string, fotoURLs []string) (Lesao, error)
	ListLesoes(ctx context.Context, atendimentoID uuid.UUID) ([]Lesao, error)
}

// Service contém as regras do módulo clínico. Fotos e termos vão para o
// object storage; apenas a URL resultante é persistida.
type Service struct {
	repo     clinicaRepository
	uploader storage.Uploader
}

// NewService cria nova instância.
func NewService(repo clinicaRepository, uploader storage.Uploader) *Service {
	return &Service{repo: repo, uploader: uploader}
}

// CadastrarAtendimento cria paciente e primeiro atendimento. CPF de paciente
// já cadastrado é rejeitado.
func (s *Service) CadastrarAtendimento(ctx context.Context, usuarioID uuid.UUID, input PacienteInput) (Atendimento, error) {
	if err := util.RequireString(input.Nome, "nome do paciente"); err != nil {
		return Atendimento{}, err
	}
	if !util.ValidarCPF(input.CPF) {
		return Atendimento{}, util.NewValidationError("CPF do paciente inválido")
	}

	if _, err := s.repo.GetPacienteByCPF(ctx, input.CPF); err == nil {
		return Atendimento{}, ErrPacienteDuplicado
	} else if !errors.Is(err, ErrNotFound) {
		return Atendimento{}, err
	}

	return s.repo.CriarPacienteComAtendimento(ctx, input, usuarioID)
}

// ListarAtendimentos devolve os atendimentos do usuário logado.
func (s *Service) ListarAtendimentos(ctx context.Context, usuarioID uuid.UUID) ([]Atendimento, error) {
	return s.repo.ListAtendimentosByUsuario(ctx, usuarioID)
}

// AnexarTermo sobe o termo de consentimento e vincula ao atendimento.
func (s *Service) AnexarTermo(ctx context.Context, atendimentoID uuid.UUID, nomeArquivo, contentType string, conteudo []byte) (string, error) {
	if len(conteudo) == 0 {
		return "", util.NewValidationError("arquivo vazio")
	}

	key := fmt.Sprintf("termos/%s/%d-%s", atendimentoID, time.Now().UnixMilli(), nomeArquivo)
	result, err := s.uploader.Upload(ctx, storage.UploadInput{
		Key:         key,
		Body:        conteudo,
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}

	if err := s.repo.DefinirTermo(ctx, atendimentoID, result.URL); err != nil {
		return "", err
	}
	return result.URL, nil
}

// FotoUpload carrega os bytes de uma foto recebida no multipart.
type FotoUpload struct {
	Nome        string
	ContentType string
	Conteudo    []byte
}

// RegistrarLesao sobe as fotos e grava a lesão com as URLs resultantes.
func (s *Service) RegistrarLesao(ctx context.Context, atendimentoID uuid.UUID, local, descricao string, fotos []FotoUpload) (Lesao, error) {
	if err := util.RequireString(local, "local da lesão"); err != nil {
		return Lesao{}, err
	}

	if _, err := s.repo.GetAtendimento(ctx, atendimentoID); err != nil {
		return Lesao{}, err
	}

	var urls []string
	for _, foto := range fotos {
		if len(foto.Conteudo) == 0 {
			continue
		}
		key := fmt.Sprintf("lesoes/%s/%d-%s", atendimentoID, time.Now().UnixMilli(), foto.Nome)
		result, err := s.uploader.Upload(ctx, storage.UploadInput{
			Key:         key,
			Body:        foto.Conteudo,
			ContentType: foto.ContentType,
		})
		if err != nil {
			return Lesao{}, err
		}
		urls = append(urls, result.URL)
	}

	return s.repo.CriarLesao(ctx, atendimentoID, local, descricao, urls)
}

// ListarLesoes devolve as lesões de um atendimento, com fotos.
func (s *Service) ListarLesoes(ctx context.Context, atendimentoID uuid.UUID) ([]Lesao, error) {
	return s.repo.ListLesoes(ctx, atendimentoID)
}
