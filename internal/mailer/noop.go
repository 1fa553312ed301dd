package mailer

import (
	"context"

	"github.com/rs/zerolog/log"
)

// NoopMailer registra o envio em log sem entregar nada. Útil em ambientes de
// desenvolvimento sem serviço de e-mail configurado.
type NoopMailer struct{}

// Enviar apenas loga o destinatário e o assunto.
func (NoopMailer) Enviar(ctx context.Context, msg Mensagem) error {
	log.Info().Str("para", msg.Para).Str("assunto", msg.Assunto).Msg("mailer noop: envio ignorado")
	return nil
}
