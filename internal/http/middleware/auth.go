package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dermalert/registro/internal/repo"
	"github.com/dermalert/registro/internal/service"
)

type contextKey string

// ContextKeyUsuario guarda o usuário resolvido da sessão.
const ContextKeyUsuario contextKey = "usuario"

// SessionResolver carrega o usuário (com roles e unidades) a partir do
// bearer token de acesso.
type SessionResolver interface {
	ResolveSession(ctx context.Context, bearer string) (repo.Usuario, error)
}

// Auth valida o bearer token e injeta o usuário resolvido no contexto.
// Token ausente, expirado, adulterado ou de titular inexistente: 401.
func Auth(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "AUTH", "token ausente")
				return
			}

			user, err := resolver.ResolveSession(r.Context(), parts[1])
			if err != nil {
				if errors.Is(err, service.ErrNaoAutenticado) {
					writeError(w, http.StatusUnauthorized, "AUTH", "não foi possível validar as credenciais")
					return
				}
				writeError(w, http.StatusInternalServerError, "INTERNAL", "erro interno")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUsuario, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUsuario recupera o usuário da sessão no contexto.
func GetUsuario(ctx context.Context) (repo.Usuario, bool) {
	val, ok := ctx.Value(ContextKeyUsuario).(repo.Usuario)
	return val, ok
}

// ExigirNivel aplica o gate de hierarquia: o nível efetivo (máximo entre as
// roles do usuário) precisa alcançar o mínimo. Gate puro, sem efeitos
// colaterais; handlers continuam livres para revalidar regras de negócio.
func ExigirNivel(minimo int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUsuario(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "AUTH", "sessão não resolvida")
				return
			}

			if err := service.AutorizarNivel(user, minimo); err != nil {
				writeError(w, http.StatusForbidden, "FORBIDDEN", err.Error())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": nil,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
