package atendimento

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	httpmiddleware "github.com/dermalert/registro/internal/http/middleware"
	"github.com/dermalert/registro/internal/util"
)

// Limite por arquivo enviado no multipart (fotos e termos).
const maxUploadBytes = 10 << 20

type ServiceProvider interface {
	CadastrarAtendimento(ctx context.Context, usuarioID uuid.UUID, input PacienteInput) (Atendimento, error)
	ListarAtendimentos(ctx context.Context, usuarioID uuid.UUID) ([]Atendimento, error)
	AnexarTermo(ctx context.Context, atendimentoID uuid.UUID, nomeArquivo, contentType string, conteudo []byte) (string, error)
	RegistrarLesao(ctx context.Context, atendimentoID uuid.UUID, local, descricao string, fotos []FotoUpload) (Lesao, error)
	ListarLesoes(ctx context.Context, atendimentoID uuid.UUID) ([]Lesao, error)
}

// Handler expõe os endpoints REST do módulo clínico.
type Handler struct {
	service ServiceProvider
}

func NewHandler(service ServiceProvider) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/atendimentos", h.criarAtendimento)
	r.Get("/atendimentos", h.listarAtendimentos)
	r.Post("/atendimentos/{atendimentoID}/termo", h.anexarTermo)
	r.Post("/atendimentos/{atendimentoID}/lesoes", h.registrarLesao)
	r.Get("/atendimentos/{atendimentoID}/lesoes", h.listarLesoes)
}

func (h *Handler) criarAtendimento(w http.ResponseWriter, r *http.Request) {
	usuario, ok := httpmiddleware.GetUsuario(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "AUTH", "sessão inválida", nil)
		return
	}

	var input PacienteInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDACAO", "JSON inválido", nil)
		return
	}

	atend, err := h.service.CadastrarAtendimento(r.Context(), usuario.ID, input)
	if err != nil {
		var ve util.ValidationError
		switch {
		case errors.Is(err, ErrPacienteDuplicado):
			writeError(w, http.StatusConflict, "PACIENTE_DUPLICADO", "paciente já cadastrado", nil)
		case errors.As(err, &ve):
			writeError(w, http.StatusBadRequest, "VALIDACAO", ve.Error(), nil)
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível criar atendimento", nil)
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"atendimento": atend})
}

func (h *Handler) listarAtendimentos(w http.ResponseWriter, r *http.Request) {
	usuario, ok := httpmiddleware.GetUsuario(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "AUTH", "sessão inválida", nil)
		return
	}

	itens, err := h.service.ListarAtendimentos(r.Context(), usuario.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível listar atendimentos", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"atendimentos": itens})
}

func (h *Handler) anexarTermo(w http.ResponseWriter, r *http.Request) {
	atendimentoID, err := uuid.Parse(chi.URLParam(r, "atendimentoID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDACAO", "identificador inválido", nil)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDACAO", "formulário multipart inválido", nil)
		return
	}

	file, header, err := r.FormFile("termo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDACAO", "arquivo 'termo' obrigatório", nil)
		return
	}
	defer file.Close()

	conteudo, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDACAO", "falha ao ler arquivo", nil)
		return
	}

	url, err := h.service.AnexarTermo(r.Context(), atendimentoID, header.Filename, header.Header.Get("Content-Type"), conteudo)
	if err != nil {
		var ve util.ValidationError
		switch {
		case errors.As(err, &ve):
			writeError(w, http.StatusBadRequest, "VALIDACAO", ve.Error(), nil)
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "atendimento não encontrado", nil)
		case errors.Is(err, ErrTermoJaCadastrado):
			writeError(w, http.StatusConflict, "TERMO_JA_CADASTRADO", "termo já anexado a este atendimento", nil)
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível anexar termo", nil)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"termo_url": url})
}

func (h *Handler) registrarLesao(w http.ResponseWriter, r *http.Request) {
	atendimentoID, err := uuid.Parse(chi.URLParam(r, "atendimentoID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDACAO", "identificador inválido", nil)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDACAO", "formulário multipart inválido", nil)
		return
	}

	local := r.FormValue("local")
	descricao := r.FormValue("descricao")

	var fotos []FotoUpload
	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["fotos"] {
			file, err := header.Open()
			if err != nil {
				writeError(w, http.StatusBadRequest, "VALIDACAO", "falha ao ler foto", nil)
				return
			}
			conteudo, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
			file.Close()
			if err != nil {
				writeError(w, http.StatusBadRequest, "VALIDACAO", "falha ao ler foto", nil)
				return
			}
			fotos = append(fotos, FotoUpload{
				Nome:        header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Conteudo:    conteudo,
			})
		}
	}

	lesao, err := h.service.RegistrarLesao(r.Context(), atendimentoID, local, descricao, fotos)
	if err != nil {
		var ve util.ValidationError
		switch {
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "atendimento não encontrado", nil)
		case errors.As(err, &ve):
			writeError(w, http.StatusBadRequest, "VALIDACAO", ve.Error(), nil)
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível registrar lesão", nil)
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"lesao": lesao})
}

func (h *Handler) listarLesoes(w http.ResponseWriter, r *http.Request) {
	atendimentoID, err := uuid.Parse(chi.URLParam(r, "atendimentoID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDACAO", "identificador inválido", nil)
		return
	}

	lesoes, err := h.service.ListarLesoes(r.Context(), atendimentoID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível listar lesões", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"lesoes": lesoes})
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
