package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dermalert/registro/internal/auth"
	"github.com/dermalert/registro/internal/mailer"
	"github.com/dermalert/registro/internal/repo"
	"github.com/dermalert/registro/internal/util"
)

var (
	// ErrCadastroCompleto indica CPF ou e-mail já pertencente a registro concluído.
	ErrCadastroCompleto = errors.New("CPF ou e-mail já cadastrado com registro completo")
	// ErrRoleNaoPermitida indica tentativa de atribuir role acima do nível do solicitante.
	ErrRoleNaoPermitida = errors.New("você não pode atribuir roles com nível de acesso maior que o seu")
	// ErrSemUnidade indica solicitante sem unidade de saúde vinculada.
	ErrSemUnidade = errors.New("solicitante não possui unidade de saúde definida")
	// ErrForaDaUnidade indica alvo fora da unidade de saúde do solicitante.
	ErrForaDaUnidade = errors.New("usuário não pertence à sua unidade de saúde")
	// ErrAutoDesativacao impede que o usuário inative a si mesmo.
	ErrAutoDesativacao = errors.New("você não pode inativar a si mesmo")
	// ErrSenhaAtualIncorreta indica falha na reverificação da senha vigente.
	ErrSenhaAtualIncorreta = errors.New("senha atual incorreta")
)

type contaRepository interface {
	GetUsuarioByCPF(ctx context.Context, cpf string) (repo.Usuario, error)
	GetUsuarioByEmail(ctx context.Context, email string) (repo.Usuario, error)
	GetRoleByID(ctx context.Context, id uuid.UUID) (repo.Role, error)
	ListRoles(ctx context.Context) ([]repo.Role, error)
	CriarUsuarioPendente(ctx context.Context, arg repo.CriarUsuarioPendenteParams) (repo.Usuario, error)
	DefinirConviteToken(ctx context.Context, email, token string, atualizadoPor uuid.UUID) error
	DefinirResetToken(ctx context.Context, email, token string) error
	CompletarCadastro(ctx context.Context, email, token, nome, senhaHash string) error
	RedefinirSenha(ctx context.Context, email, token, senhaHash string) error
	AtualizarSenha(ctx context.Context, id uuid.UUID, senhaHash string) error
	EditarUsuario(ctx context.Context, arg repo.EditarUsuarioParams) (repo.Usuario, error)
}

// ContaService cobre o ciclo de vida da conta: convite, conclusão de
// cadastro, redefinição e troca de senha, edição administrativa.
type ContaService struct {
	repo     contaRepository
	tokens   *auth.TokenManager
	mail     mailer.Mailer
	linkBase string
}

// NewContaService cria novo serviço.
func NewContaService(r contaRepository, tokens *auth.TokenManager, mail mailer.Mailer, linkBase string) *ContaService {
	return &ContaService{repo: r, tokens: tokens, mail: mail, linkBase: linkBase}
}

// ListarRoles devolve o catálogo global de roles, usado pela tela de convite
// para escolher o nível do novo profissional.
func (s *ContaService) ListarRoles(ctx context.Context) ([]repo.Role, error) {
	return s.repo.ListRoles(ctx)
}

// ConviteInput reúne os dados para convidar um novo profissional.
type ConviteInput struct {
	Email     string
	CPF       string
	RoleID    uuid.UUID
	UnidadeID uuid.UUID
}

// Convidar cria (ou reaproveita) um cadastro pendente e emite um novo token
// de convite. O token anterior, consumido ou não, deixa de valer.
// Supervisores só convidam para a própria unidade e até o próprio nível.
func (s *ContaService) Convidar(ctx context.Context, solicitante repo.Usuario, input ConviteInput) error {
	if err := util.ValidateEmail(input.Email); err != nil {
		return err
	}
	if !util.ValidarCPF(input.CPF) {
		return util.NewValidationError("CPF inválido")
	}

	nivelSolicitante, err := NivelEfetivo(solicitante)
	if err != nil {
		return err
	}

	role, err := s.repo.GetRoleByID(ctx, input.RoleID)
	if err != nil {
		return err
	}
	if role.NivelAcesso > nivelSolicitante {
		return ErrRoleNaoPermitida
	}

	unidadeID := input.UnidadeID
	if nivelSolicitante < NivelAdmin {
		if len(solicitante.Unidades) == 0 {
			return ErrSemUnidade
		}
		unidadeID = solicitante.Unidades[0].ID
	}

	if existente, err := s.repo.GetUsuarioByCPF(ctx, input.CPF); err == nil {
		if !existente.Pendente() {
			return ErrCadastroCompleto
		}
		return s.reenviarConvite(ctx, existente, solicitante.ID)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return err
	}

	if existente, err := s.repo.GetUsuarioByEmail(ctx, input.Email); err == nil {
		if !existente.Pendente() {
			return ErrCadastroCompleto
		}
		return s.reenviarConvite(ctx, existente, solicitante.ID)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return err
	}

	token, err := s.tokens.GenerateTicket(auth.TicketConvite, input.Email)
	if err != nil {
		return err
	}

	user, err := s.repo.CriarUsuarioPendente(ctx, repo.CriarUsuarioPendenteParams{
		Email:        input.Email,
		CPF:          input.CPF,
		RoleID:       role.ID,
		UnidadeID:    unidadeID,
		ConviteToken: token,
		CriadoPor:    solicitante.ID,
	})
	if err != nil {
		return err
	}

	s.enviarConvite(user.Email, token)
	return nil
}

func (s *ContaService) reenviarConvite(ctx context.Context, pendente repo.Usuario, solicitanteID uuid.UUID) error {
	token, err := s.tokens.GenerateTicket(auth.TicketConvite, pendente.Email)
	if err != nil {
		return err
	}
	if err := s.repo.DefinirConviteToken(ctx, pendente.Email, token, solicitanteID); err != nil {
		return err
	}
	s.enviarConvite(pendente.Email, token)
	return nil
}

// PreVisualizarConvite valida apenas a assinatura do ticket e devolve o
// cadastro pendente correspondente, sem consumir nada.
func (s *ContaService) PreVisualizarConvite(ctx context.Context, token string) (repo.Usuario, error) {
	email, err := s.tokens.VerifyTicketSignature(auth.TicketConvite, token)
	if err != nil {
		return repo.Usuario{}, err
	}
	return s.repo.GetUsuarioByEmail(ctx, email)
}

// CompletarCadastro consome o convite e define nome, senha e ativação.
// A comparação com a cópia persistida e a marcação de uso acontecem no mesmo
// UPDATE da mutação autorizada.
func (s *ContaService) CompletarCadastro(ctx context.Context, token, nome, senha string) error {
	if err := util.RequireString(nome, "nome"); err != nil {
		return err
	}
	if err := util.ValidatePassword(senha); err != nil {
		return err
	}

	email, err := s.tokens.VerifyTicketSignature(auth.TicketConvite, token)
	if err != nil {
		return err
	}

	hash, err := auth.Hash(senha)
	if err != nil {
		return err
	}

	return s.repo.CompletarCadastro(ctx, email, token, nome, hash)
}

// EsqueciSenha emite ticket de redefinição e dispara o e-mail. Responde
// sucesso mesmo para e-mails desconhecidos ou cadastros pendentes, para não
// revelar cadastros nem abrir atalho paralelo ao fluxo de convite.
func (s *ContaService) EsqueciSenha(ctx context.Context, email string) error {
	user, err := s.repo.GetUsuarioByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			log.Warn().Msg("esqueci-senha: e-mail não cadastrado")
			return nil
		}
		return err
	}

	// Cadastro pendente redefine senha só pelo convite.
	if user.Pendente() {
		log.Warn().Msg("esqueci-senha: cadastro pendente")
		return nil
	}

	token, err := s.tokens.GenerateTicket(auth.TicketReset, user.Email)
	if err != nil {
		return err
	}
	if err := s.repo.DefinirResetToken(ctx, user.Email, token); err != nil {
		return err
	}

	s.enviarReset(user.Email, token)
	return nil
}

// RedefinirSenha consome o ticket de redefinição e grava a nova senha.
func (s *ContaService) RedefinirSenha(ctx context.Context, token, novaSenha string) error {
	if err := util.ValidatePassword(novaSenha); err != nil {
		return err
	}

	email, err := s.tokens.VerifyTicketSignature(auth.TicketReset, token)
	if err != nil {
		return err
	}

	hash, err := auth.Hash(novaSenha)
	if err != nil {
		return err
	}

	return s.repo.RedefinirSenha(ctx, email, token, hash)
}

// AlterarSenha troca a senha de usuário autenticado, reverificando a atual.
func (s *ContaService) AlterarSenha(ctx context.Context, usuario repo.Usuario, senhaAtual, novaSenha string) error {
	if usuario.Pendente() || !auth.Verify(senhaAtual, *usuario.SenhaHash) {
		return ErrSenhaAtualIncorreta
	}
	if err := util.ValidatePassword(novaSenha); err != nil {
		return err
	}

	hash, err := auth.Hash(novaSenha)
	if err != nil {
		return err
	}
	return s.repo.AtualizarSenha(ctx, usuario.ID, hash)
}

// EdicaoInput reúne as alterações administrativas sobre um usuário.
type EdicaoInput struct {
	CPF       string
	RoleID    uuid.UUID
	UnidadeID uuid.UUID
	Ativo     bool
}

// EditarUsuario substitui role, unidade e estado ativo, com as mesmas regras
// de alçada do convite. Gate de nível não substitui as regras de negócio:
// ninguém se auto-inativa, supervisores só editam a própria unidade.
func (s *ContaService) EditarUsuario(ctx context.Context, solicitante repo.Usuario, input EdicaoInput) (repo.Usuario, error) {
	alvo, err := s.repo.GetUsuarioByCPF(ctx, input.CPF)
	if err != nil {
		return repo.Usuario{}, err
	}

	if alvo.ID == solicitante.ID && !input.Ativo {
		return repo.Usuario{}, ErrAutoDesativacao
	}

	nivelSolicitante, err := NivelEfetivo(solicitante)
	if err != nil {
		return repo.Usuario{}, err
	}

	role, err := s.repo.GetRoleByID(ctx, input.RoleID)
	if err != nil {
		return repo.Usuario{}, err
	}
	if role.NivelAcesso > nivelSolicitante {
		return repo.Usuario{}, ErrRoleNaoPermitida
	}

	unidadeID := input.UnidadeID
	if nivelSolicitante < NivelAdmin {
		if len(solicitante.Unidades) == 0 {
			return repo.Usuario{}, ErrSemUnidade
		}
		unidadeID = solicitante.Unidades[0].ID
		if !pertenceAUnidade(alvo, unidadeID) {
			return repo.Usuario{}, ErrForaDaUnidade
		}
	}

	return s.repo.EditarUsuario(ctx, repo.EditarUsuarioParams{
		CPF:           alvo.CPF,
		RoleID:        role.ID,
		UnidadeID:     unidadeID,
		Ativo:         input.Ativo,
		AtualizadoPor: solicitante.ID,
	})
}

func pertenceAUnidade(u repo.Usuario, unidadeID uuid.UUID) bool {
	for _, un := range u.Unidades {
		if un.ID == unidadeID {
			return true
		}
	}
	return false
}

// Envio de e-mail é colaborador fire-and-forget: a requisição não espera.
func (s *ContaService) enviarConvite(email, token string) {
	link := fmt.Sprintf("%s://register?token=%s", s.linkBase, token)
	corpo := fmt.Sprintf("Olá,\n\nVocê foi convidado a acessar nossa plataforma. Para concluir seu cadastro, acesse:\n\n%s\n\nEste link expira em 24 horas.\n\nAtenciosamente,\nEquipe DermAlert.", link)
	s.enviar(email, "Convite para completar seu cadastro", corpo)
}

func (s *ContaService) enviarReset(email, token string) {
	link := fmt.Sprintf("%s://reset-password?token=%s", s.linkBase, token)
	corpo := fmt.Sprintf("Olá,\n\nRecebemos uma solicitação para redefinir sua senha. Para criar uma nova senha, acesse:\n\n%s\n\nSe você não solicitou esta redefinição, ignore este e-mail.\n\nAtenciosamente,\nEquipe DermAlert.", link)
	s.enviar(email, "Redefinição de Senha", corpo)
}

func (s *ContaService) enviar(para, assunto, corpo string) {
	if s.mail == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.mail.Enviar(ctx, mailer.Mensagem{Para: para, Assunto: assunto, Corpo: corpo}); err != nil {
			log.Warn().Err(err).Str("para", para).Msg("falha ao enviar e-mail")
		}
	}()
}
