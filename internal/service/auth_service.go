package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dermalert/registro/internal/auth"
	"github.com/dermalert/registro/internal/repo"
)

var (
	// ErrCredenciaisInvalidas indica CPF desconhecido ou senha incorreta,
	// indistinguíveis de propósito para não revelar cadastros existentes.
	ErrCredenciaisInvalidas = errors.New("CPF ou senha incorretos")
	// ErrContaInativa indica credenciais corretas em conta desativada.
	ErrContaInativa = errors.New("usuário inativo")
	// ErrNaoAutenticado indica bearer token ausente, inválido, expirado ou
	// cujo titular não existe mais.
	ErrNaoAutenticado = errors.New("não foi possível validar as credenciais")
)

type authRepository interface {
	GetUsuarioByCPF(ctx context.Context, cpf string) (repo.Usuario, error)
}

// AuthService concentra autenticação por credenciais e resolução de sessão.
type AuthService struct {
	repo   authRepository
	tokens *auth.TokenManager
	// hashReferencia equaliza o custo do caminho de falha: CPF desconhecido
	// ou cadastro pendente também paga uma verificação de argon2id.
	hashReferencia string
}

// NewAuthService cria novo serviço.
func NewAuthService(r authRepository, tokens *auth.TokenManager) *AuthService {
	referencia, err := auth.Hash(uuid.NewString())
	if err != nil {
		referencia = ""
	}
	return &AuthService{repo: r, tokens: tokens, hashReferencia: referencia}
}

// Tokens expõe o gerenciador (útil em middlewares e serviços vizinhos).
func (s *AuthService) Tokens() *auth.TokenManager {
	return s.tokens
}

// TokenPair é a resposta padrão de login e refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Login autentica CPF + senha e emite o par de tokens.
func (s *AuthService) Login(ctx context.Context, cpf, senha string) (*TokenPair, error) {
	user, err := s.repo.GetUsuarioByCPF(ctx, cpf)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			auth.Verify(senha, s.hashReferencia)
			log.Warn().Msg("login: usuário não encontrado")
			return nil, ErrCredenciaisInvalidas
		}
		return nil, err
	}

	// Cadastro pendente não tem senha; trata como credencial inválida.
	if user.Pendente() {
		auth.Verify(senha, s.hashReferencia)
		log.Warn().Msg("login: cadastro pendente")
		return nil, ErrCredenciaisInvalidas
	}

	if !auth.Verify(senha, *user.SenhaHash) {
		log.Warn().Msg("login: senha inválida")
		return nil, ErrCredenciaisInvalidas
	}

	if !user.Ativo {
		return nil, ErrContaInativa
	}

	return s.emitirPar(user.CPF)
}

// Refresh troca refresh token válido por um novo par, revalidando o usuário.
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (*TokenPair, error) {
	cpf, err := s.tokens.ParseRefresh(rawToken)
	if err != nil {
		return nil, ErrNaoAutenticado
	}

	user, err := s.repo.GetUsuarioByCPF(ctx, cpf)
	if err != nil {
		return nil, err
	}

	return s.emitirPar(user.CPF)
}

// ResolveSession decodifica o bearer token e carrega o usuário com roles e
// unidades materializadas. Qualquer falha vira ErrNaoAutenticado.
func (s *AuthService) ResolveSession(ctx context.Context, bearer string) (repo.Usuario, error) {
	cpf, err := s.tokens.ParseAccess(bearer)
	if err != nil {
		return repo.Usuario{}, ErrNaoAutenticado
	}

	user, err := s.repo.GetUsuarioByCPF(ctx, cpf)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Token válido de identidade removida ou renomeada.
			return repo.Usuario{}, ErrNaoAutenticado
		}
		return repo.Usuario{}, err
	}

	return user, nil
}

func (s *AuthService) emitirPar(cpf string) (*TokenPair, error) {
	access, err := s.tokens.GenerateAccessToken(cpf)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.GenerateRefreshToken(cpf)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}
