package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dermalert/registro/internal/auth"
	httpmiddleware "github.com/dermalert/registro/internal/http/middleware"
	"github.com/dermalert/registro/internal/repo"
	"github.com/dermalert/registro/internal/service"
	"github.com/dermalert/registro/internal/util"
)

// ConvidarUsuario emite (ou reemite) um convite de cadastro.
func (h *Handler) ConvidarUsuario(w http.ResponseWriter, r *http.Request) {
	solicitante, ok := httpmiddleware.GetUsuario(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "sessão inválida", nil)
		return
	}

	var payload struct {
		Email     string    `json:"email"`
		CPF       string    `json:"cpf"`
		RoleID    uuid.UUID `json:"role_id"`
		UnidadeID uuid.UUID `json:"unidade_saude_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "JSON inválido", nil)
		return
	}

	err := h.contaService.Convidar(r.Context(), solicitante, service.ConviteInput{
		Email:     strings.TrimSpace(payload.Email),
		CPF:       strings.TrimSpace(payload.CPF),
		RoleID:    payload.RoleID,
		UnidadeID: payload.UnidadeID,
	})
	if err != nil {
		h.handleContaError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]string{"mensagem": "convite enviado"})
}

// ListarRoles devolve o catálogo de roles para a tela de convite.
func (h *Handler) ListarRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.contaService.ListarRoles(r.Context())
	if err != nil {
		h.handleContaError(w, err)
		return
	}

	resposta := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		resposta = append(resposta, novoRoleResponse(role))
	}

	WriteJSON(w, http.StatusOK, map[string]any{"roles": resposta})
}

// EditarUsuario altera role, unidade e estado ativo de um usuário.
func (h *Handler) EditarUsuario(w http.ResponseWriter, r *http.Request) {
	solicitante, ok := httpmiddleware.GetUsuario(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "sessão inválida", nil)
		return
	}

	var payload struct {
		CPF       string    `json:"cpf"`
		RoleID    uuid.UUID `json:"role_id"`
		UnidadeID uuid.UUID `json:"unidade_saude_id"`
		Ativo     bool      `json:"fl_ativo"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "JSON inválido", nil)
		return
	}

	atualizado, err := h.contaService.EditarUsuario(r.Context(), solicitante, service.EdicaoInput{
		CPF:       strings.TrimSpace(payload.CPF),
		RoleID:    payload.RoleID,
		UnidadeID: payload.UnidadeID,
		Ativo:     payload.Ativo,
	})
	if err != nil {
		h.handleContaError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"usuario": novoUsuarioResponse(atualizado)})
}

// PreVisualizarConvite confere a assinatura do token e devolve os dados do
// cadastro pendente, para o app preencher a tela de conclusão.
func (h *Handler) PreVisualizarConvite(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "token obrigatório", nil)
		return
	}

	pendente, err := h.contaService.PreVisualizarConvite(r.Context(), token)
	if err != nil {
		h.handleContaError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"usuario": novoUsuarioResponse(pendente)})
}

// CompletarCadastro consome o convite e conclui o registro.
func (h *Handler) CompletarCadastro(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token string `json:"invite_token"`
		Nome  string `json:"nome_usuario"`
		Senha string `json:"senha"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "JSON inválido", nil)
		return
	}

	if err := h.contaService.CompletarCadastro(r.Context(), payload.Token, payload.Nome, payload.Senha); err != nil {
		h.handleContaError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"mensagem": "cadastro concluído"})
}

// EsqueciSenha inicia a redefinição. A resposta é idêntica para e-mails
// conhecidos e desconhecidos.
func (h *Handler) EsqueciSenha(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "JSON inválido", nil)
		return
	}

	if err := h.contaService.EsqueciSenha(r.Context(), strings.TrimSpace(payload.Email)); err != nil {
		h.handleContaError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"mensagem": "se o e-mail existir, enviaremos instruções"})
}

// RedefinirSenha consome o token de reset e grava a nova senha.
func (h *Handler) RedefinirSenha(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token     string `json:"reset_token"`
		NovaSenha string `json:"nova_senha"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "JSON inválido", nil)
		return
	}

	if err := h.contaService.RedefinirSenha(r.Context(), payload.Token, payload.NovaSenha); err != nil {
		h.handleContaError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"mensagem": "senha redefinida"})
}

// AlterarSenha troca a senha do usuário logado, reverificando a atual.
func (h *Handler) AlterarSenha(w http.ResponseWriter, r *http.Request) {
	usuario, ok := httpmiddleware.GetUsuario(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "sessão inválida", nil)
		return
	}

	var payload struct {
		SenhaAtual string `json:"senha_atual"`
		NovaSenha  string `json:"nova_senha"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "JSON inválido", nil)
		return
	}

	if err := h.contaService.AlterarSenha(r.Context(), usuario, payload.SenhaAtual, payload.NovaSenha); err != nil {
		h.handleContaError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"mensagem": "senha alterada"})
}

func (h *Handler) handleContaError(w http.ResponseWriter, err error) {
	var ve util.ValidationError
	switch {
	case errors.As(err, &ve):
		WriteError(w, http.StatusBadRequest, "VALIDACAO", ve.Error(), nil)
	case errors.Is(err, auth.ErrTokenExpirado):
		WriteError(w, http.StatusUnauthorized, "TOKEN_EXPIRADO", "token expirado", nil)
	case errors.Is(err, auth.ErrTokenInvalido):
		WriteError(w, http.StatusUnauthorized, "TOKEN_INVALIDO", "token inválido", nil)
	case errors.Is(err, repo.ErrTokenUtilizado):
		WriteError(w, http.StatusBadRequest, "TOKEN_UTILIZADO", "token já utilizado", nil)
	case errors.Is(err, repo.ErrTokenDivergente):
		WriteError(w, http.StatusBadRequest, "TOKEN_DIVERGENTE", "token não corresponde ao convite vigente", nil)
	case errors.Is(err, repo.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "usuário não encontrado", nil)
	case errors.Is(err, service.ErrCadastroCompleto):
		WriteError(w, http.StatusConflict, "CADASTRO_COMPLETO", service.ErrCadastroCompleto.Error(), nil)
	case errors.Is(err, service.ErrRoleNaoPermitida),
		errors.Is(err, service.ErrForaDaUnidade),
		errors.Is(err, service.ErrSemRole),
		errors.Is(err, service.ErrNivelInsuficiente):
		WriteError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	case errors.Is(err, service.ErrAutoDesativacao),
		errors.Is(err, service.ErrSemUnidade),
		errors.Is(err, service.ErrSenhaAtualIncorreta):
		WriteError(w, http.StatusBadRequest, "VALIDACAO", err.Error(), nil)
	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
	}
}
