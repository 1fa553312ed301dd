package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	httpmiddleware "github.com/dermalert/registro/internal/http/middleware"
	"github.com/dermalert/registro/internal/repo"
	"github.com/dermalert/registro/internal/service"
)

// Login autentica por CPF e senha. O corpo segue o fluxo "password" clássico:
// formulário com campos username e password.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "formulário inválido", nil)
		return
	}

	cpf := strings.TrimSpace(r.PostFormValue("username"))
	senha := r.PostFormValue("password")

	if cpf == "" || senha == "" {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "username e password são obrigatórios", nil)
		return
	}

	pair, err := h.authService.Login(r.Context(), cpf, senha)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, pair)
}

// Refresh troca um refresh token válido por um novo par de tokens.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		RefreshToken string `json:"refresh_token"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "JSON inválido", nil)
		return
	}

	if strings.TrimSpace(payload.RefreshToken) == "" {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "refresh_token obrigatório", nil)
		return
	}

	pair, err := h.authService.Refresh(r.Context(), payload.RefreshToken)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, pair)
}

// Me devolve o perfil do usuário autenticado, com roles e unidades.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	usuario, ok := httpmiddleware.GetUsuario(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "sessão inválida", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"usuario": novoUsuarioResponse(usuario)})
}

func (h *Handler) handleAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrCredenciaisInvalidas):
		WriteError(w, http.StatusBadRequest, "CREDENCIAIS", service.ErrCredenciaisInvalidas.Error(), nil)
	case errors.Is(err, service.ErrContaInativa):
		WriteError(w, http.StatusForbidden, "INATIVO", service.ErrContaInativa.Error(), nil)
	case errors.Is(err, service.ErrNaoAutenticado), errors.Is(err, repo.ErrNotFound):
		WriteError(w, http.StatusUnauthorized, "AUTH", "não foi possível validar as credenciais", nil)
	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
	}
}

type usuarioResponse struct {
	ID       uuid.UUID         `json:"id"`
	Nome     string            `json:"nome_usuario"`
	CPF      string            `json:"cpf"`
	Email    string            `json:"email"`
	Ativo    bool              `json:"fl_ativo"`
	Roles    []roleResponse    `json:"roles"`
	Unidades []unidadeResponse `json:"unidades_saude"`
}

type roleResponse struct {
	ID          uuid.UUID `json:"id"`
	Nome        string    `json:"nome_role"`
	NivelAcesso int       `json:"nivel_acesso"`
}

type unidadeResponse struct {
	ID     uuid.UUID `json:"id"`
	Nome   string    `json:"nome_unidade_saude"`
	Codigo string    `json:"codigo_unidade_saude"`
	Cidade string    `json:"cidade_unidade_saude"`
}

func novoRoleResponse(r repo.Role) roleResponse {
	return roleResponse{ID: r.ID, Nome: r.Nome, NivelAcesso: r.NivelAcesso}
}

func novoUsuarioResponse(u repo.Usuario) usuarioResponse {
	resp := usuarioResponse{
		ID:       u.ID,
		Nome:     u.Nome,
		CPF:      u.CPF,
		Email:    u.Email,
		Ativo:    u.Ativo,
		Roles:    make([]roleResponse, 0, len(u.Roles)),
		Unidades: make([]unidadeResponse, 0, len(u.Unidades)),
	}
	for _, role := range u.Roles {
		resp.Roles = append(resp.Roles, novoRoleResponse(role))
	}
	for _, un := range u.Unidades {
		resp.Unidades = append(resp.Unidades, unidadeResponse{ID: un.ID, Nome: un.Nome, Codigo: un.Codigo, Cidade: un.Cidade})
	}
	return resp
}
