package mailer

import "context"

// Mensagem descreve um e-mail transacional simples.
type Mensagem struct {
	Para    string
	Assunto string
	Corpo   string
}

// Mailer envia e-mails através de um colaborador externo.
type Mailer interface {
	Enviar(ctx context.Context, msg Mensagem) error
}
