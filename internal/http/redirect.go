package http

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
)

var redirectPage = template.Must(template.New("redirect").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
  <meta charset="utf-8">
  <meta http-equiv="refresh" content="0;url={{.DeepLink}}">
  <title>DermAlert</title>
</head>
<body>
  <p>Abrindo o aplicativo DermAlert…</p>
  <p>Se nada acontecer, <a href="{{.DeepLink}}">toque aqui</a>.</p>
</body>
</html>
`))

// Redirect serve uma página mínima que encaminha o navegador para o deep
// link do aplicativo. E-mails apontam para cá porque clientes de e-mail não
// abrem esquemas customizados diretamente.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	source := strings.TrimSpace(r.URL.Query().Get("source"))

	if token == "" {
		http.Error(w, "token ausente", http.StatusBadRequest)
		return
	}

	destino := "register"
	if source == "reset" || source == "reset-password" {
		destino = "reset-password"
	}

	deepLink := fmt.Sprintf("%s://%s?token=%s", h.cfg.AppLinkBase, destino, url.QueryEscape(token))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = redirectPage.Execute(w, map[string]string{"DeepLink": deepLink})
}
