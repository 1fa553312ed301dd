package auth

// TicketKind identifica a finalidade de um ticket de uso único.
// Convite e redefinição de senha compartilham o mesmo codec, mudando apenas
// a claim type e a janela de validade.
type TicketKind string

const (
	// TicketConvite permite concluir um cadastro pendente (24h por padrão).
	TicketConvite TicketKind = "invite"
	// TicketReset permite redefinir a senha sem sessão (1h por padrão).
	TicketReset TicketKind = "reset"
)

// GenerateTicket emite um ticket assinado com sub = e-mail do destinatário.
// A cópia persistida no cadastro do usuário é responsabilidade do chamador.
func (m *TokenManager) GenerateTicket(kind TicketKind, email string) (string, error) {
	return m.sign(string(kind), email, m.ticketTTL[kind])
}

// VerifyTicketSignature faz somente a checagem criptográfica e de expiração,
// devolvendo o e-mail do assunto. Serve para leituras de baixo risco (pré-
// visualizar um cadastro pendente); qualquer mutação exige o consumo atômico
// da cópia persistida, feito na camada de serviço.
func (m *TokenManager) VerifyTicketSignature(kind TicketKind, tokenString string) (string, error) {
	claims, err := m.Parse(tokenString)
	if err != nil {
		return "", err
	}
	if claims.Type != string(kind) {
		return "", ErrTokenInvalido
	}
	return claims.Subject, nil
}
