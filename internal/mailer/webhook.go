package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// WebhookMailer entrega mensagens a um serviço transacional de e-mail via
// HTTP POST. O transporte em si (SMTP, fila) é responsabilidade do serviço.
type WebhookMailer struct {
	webhookURL  string
	fromAddress string
	client      *http.Client
}

// NewWebhookMailer cria o mailer; URL vazia devolve nil (desabilitado).
func NewWebhookMailer(webhookURL, fromAddress string) *WebhookMailer {
	if webhookURL == "" {
		return nil
	}
	return &WebhookMailer{
		webhookURL:  webhookURL,
		fromAddress: fromAddress,
		client:      &http.Client{Timeout: 5 * time.Second},
	}
}

// Enviar publica a mensagem no endpoint configurado.
func (m *WebhookMailer) Enviar(ctx context.Context, msg Mensagem) error {
	if m == nil || m.webhookURL == "" {
		return errors.New("mailer não configurado")
	}

	payload := map[string]any{
		"from":    m.fromAddress,
		"to":      msg.Para,
		"subject": msg.Assunto,
		"text":    msg.Corpo,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.webhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("mailer: status %d", resp.StatusCode)
	}
	return nil
}
