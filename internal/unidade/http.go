package unidade

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ServiceProvider interface {
	Cadastrar(ctx context.Context, input CriarInput) (UnidadeSaude, error)
	Listar(ctx context.Context) ([]UnidadeSaude, error)
	Buscar(ctx context.Context, id uuid.UUID) (UnidadeSaude, error)
	Editar(ctx context.Context, id uuid.UUID, input EditarInput) (UnidadeSaude, error)
}

// Handler expõe os endpoints REST de unidades de saúde.
type Handler struct {
	service ServiceProvider
}

func NewHandler(service ServiceProvider) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/unidades-saude", h.listar)
	r.Get("/unidades-saude/{unidadeID}", h.buscar)
}

// RegisterAdminRoutes registra as rotas de escrita, restritas a administradores.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/unidades-saude", h.cadastrar)
	r.Patch("/unidades-saude/{unidadeID}", h.editar)
}

type criarRequest struct {
	Nome        string `json:"nome_unidade_saude"`
	Codigo      string `json:"codigo_unidade_saude"`
	Localizacao string `json:"nome_localizacao"`
	Cidade      string `json:"cidade_unidade_saude"`
	Ativa       *bool  `json:"is_active"`
}

type editarRequest struct {
	Nome        *string `json:"nome_unidade_saude"`
	Localizacao *string `json:"nome_localizacao"`
	Cidade      *string `json:"cidade_unidade_saude"`
	Ativa       *bool   `json:"is_active"`
}

func (h *Handler) cadastrar(w http.ResponseWriter, r *http.Request) {
	var req criarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDACAO", "JSON inválido", nil)
		return
	}

	if strings.TrimSpace(req.Nome) == "" || strings.TrimSpace(req.Codigo) == "" {
		writeError(w, http.StatusBadRequest, "VALIDACAO", "nome e código da unidade são obrigatórios", nil)
		return
	}

	ativa := true
	if req.Ativa != nil {
		ativa = *req.Ativa
	}

	criada, err := h.service.Cadastrar(r.Context(), CriarInput{
		Nome:        strings.TrimSpace(req.Nome),
		Codigo:      strings.TrimSpace(req.Codigo),
		Localizacao: strings.TrimSpace(req.Localizacao),
		Cidade:      strings.TrimSpace(req.Cidade),
		Ativa:       ativa,
	})
	if err != nil {
		if errors.Is(err, ErrCodigoDuplicado) {
			writeError(w, http.StatusConflict, "UNIDADE_DUPLICADA", "código CNES já cadastrado", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível cadastrar unidade", nil)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"unidade_saude": criada})
}

func (h *Handler) listar(w http.ResponseWriter, r *http.Request) {
	unidades, err := h.service.Listar(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível listar unidades", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"unidades_saude": unidades})
}

func (h *Handler) buscar(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "unidadeID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDACAO", "identificador inválido", nil)
		return
	}

	u, err := h.service.Buscar(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "unidade de saúde não encontrada", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível carregar unidade", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"unidade_saude": u})
}

func (h *Handler) editar(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "unidadeID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDACAO", "identificador inválido", nil)
		return
	}

	var req editarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDACAO", "JSON inválido", nil)
		return
	}

	atualizada, err := h.service.Editar(r.Context(), id, EditarInput{
		Nome:        req.Nome,
		Localizacao: req.Localizacao,
		Cidade:      req.Cidade,
		Ativa:       req.Ativa,
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "unidade de saúde não encontrada", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível editar unidade", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"unidade_saude": atualizada})
}

type successEnvelope struct {
	Data  any `json:"data"`
	Error any `json:"error"`
}

type errorEnvelope struct {
	Data  any        `json:"data"`
	Error *errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(successEnvelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Data: nil,
		Error: &errorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}
