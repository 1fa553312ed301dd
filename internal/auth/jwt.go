package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenExpirado indica token com prazo de validade vencido.
	ErrTokenExpirado = errors.New("token expirado")
	// ErrTokenInvalido indica assinatura inválida, formato inesperado ou claims ausentes.
	ErrTokenInvalido = errors.New("token inválido")
)

// TokenTypeRefresh marca tokens de refresh; tokens de acesso não carregam type.
const TokenTypeRefresh = "refresh"

// Claims representa as informações presentes em um JWT emitido pela API.
type Claims struct {
	Type string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager encapsula geração e validação de todos os tokens assinados.
// O segredo é injetado na construção e nunca trocado em runtime.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	ticketTTL  map[TicketKind]time.Duration
}

// NewTokenManager cria o gerenciador com segredo e TTLs configurados.
func NewTokenManager(secret string, accessTTL, refreshTTL, inviteTTL, resetTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		ticketTTL: map[TicketKind]time.Duration{
			TicketConvite: inviteTTL,
			TicketReset:   resetTTL,
		},
	}
}

// GenerateAccessToken cria um JWT HS256 de acesso com sub = CPF.
func (m *TokenManager) GenerateAccessToken(cpf string) (string, error) {
	return m.sign("", cpf, m.accessTTL)
}

// GenerateRefreshToken cria um JWT de refresh (type=refresh) com sub = CPF.
func (m *TokenManager) GenerateRefreshToken(cpf string) (string, error) {
	return m.sign(TokenTypeRefresh, cpf, m.refreshTTL)
}

func (m *TokenManager) sign(tokenType, subject string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()

	claims := Claims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Parse verifica assinatura e expiração e devolve as claims.
func (m *TokenManager) Parse(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpirado
		}
		return nil, ErrTokenInvalido
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalido
	}

	return claims, nil
}

// ParseAccess valida um token de acesso e devolve o CPF do portador.
// Tokens de refresh (ou qualquer ticket) apresentados aqui são rejeitados.
func (m *TokenManager) ParseAccess(tokenString string) (string, error) {
	claims, err := m.Parse(tokenString)
	if err != nil {
		return "", err
	}
	if claims.Type != "" {
		return "", ErrTokenInvalido
	}
	return claims.Subject, nil
}

// ParseRefresh valida um token de refresh; tokens de acesso são rejeitados.
func (m *TokenManager) ParseRefresh(tokenString string) (string, error) {
	claims, err := m.Parse(tokenString)
	if err != nil {
		return "", err
	}
	if claims.Type != TokenTypeRefresh {
		return "", ErrTokenInvalido
	}
	return claims.Subject, nil
}
