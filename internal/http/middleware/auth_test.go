package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dermalert/registro/internal/repo"
	"github.com/dermalert/registro/internal/service"
)

type stubResolver struct {
	usuario repo.Usuario
	err     error
}

func (s *stubResolver) ResolveSession(_ context.Context, _ string) (repo.Usuario, error) {
	return s.usuario, s.err
}

func okHandler(t *testing.T, esperaUsuario bool) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if esperaUsuario {
			if _, ok := GetUsuario(r.Context()); !ok {
				t.Error("usuário ausente do contexto")
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthSemHeader(t *testing.T) {
	handler := Auth(&stubResolver{})(okHandler(t, false))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, esperado 401", rec.Code)
	}
}

func TestAuthHeaderMalformado(t *testing.T) {
	handler := Auth(&stubResolver{})(okHandler(t, false))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, esperado 401", rec.Code)
	}
}

func TestAuthTokenInvalido(t *testing.T) {
	handler := Auth(&stubResolver{err: service.ErrNaoAutenticado})(okHandler(t, false))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token-qualquer")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, esperado 401", rec.Code)
	}
}

func TestAuthInjetaUsuario(t *testing.T) {
	usuario := repo.Usuario{CPF: "52998224725", Ativo: true}
	handler := Auth(&stubResolver{usuario: usuario})(okHandler(t, true))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token-valido")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, esperado 204", rec.Code)
	}
}

func comUsuario(req *http.Request, niveis ...int) *http.Request {
	u := repo.Usuario{CPF: "52998224725"}
	for _, n := range niveis {
		u.Roles = append(u.Roles, repo.Role{NivelAcesso: n})
	}
	ctx := context.WithValue(req.Context(), ContextKeyUsuario, u)
	return req.WithContext(ctx)
}

func TestExigirNivel(t *testing.T) {
	casos := []struct {
		nome   string
		niveis []int
		minimo int
		status int
	}{
		{"pesquisador em rota de pesquisador", []int{service.NivelPesquisador}, service.NivelPesquisador, http.StatusNoContent},
		{"pesquisador em rota de supervisor", []int{service.NivelPesquisador}, service.NivelSupervisor, http.StatusForbidden},
		{"pesquisador em rota de admin", []int{service.NivelPesquisador}, service.NivelAdmin, http.StatusForbidden},
		{"supervisor em rota de pesquisador", []int{service.NivelSupervisor}, service.NivelPesquisador, http.StatusNoContent},
		{"admin em rota de admin", []int{service.NivelAdmin}, service.NivelAdmin, http.StatusNoContent},
		{"maior role prevalece", []int{service.NivelPesquisador, service.NivelAdmin}, service.NivelSupervisor, http.StatusNoContent},
		{"sem roles", nil, service.NivelPesquisador, http.StatusForbidden},
	}

	for _, caso := range casos {
		t.Run(caso.nome, func(t *testing.T) {
			handler := ExigirNivel(caso.minimo)(okHandler(t, false))

			req := comUsuario(httptest.NewRequest(http.MethodGet, "/", nil), caso.niveis...)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != caso.status {
				t.Fatalf("status = %d, esperado %d", rec.Code, caso.status)
			}
		})
	}
}

func TestExigirNivelSemSessao(t *testing.T) {
	handler := ExigirNivel(service.NivelPesquisador)(okHandler(t, false))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, esperado 401", rec.Code)
	}
}
