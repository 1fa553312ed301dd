package unidade

import "github.com/go-chi/chi/v5"

// Mount registra rotas de leitura de unidades de saúde.
func Mount(r chi.Router, handler *Handler) {
	handler.RegisterRoutes(r)
}

// MountAdmin registra rotas de escrita de unidades de saúde.
func MountAdmin(r chi.Router, handler *Handler) {
	handler.RegisterAdminRoutes(r)
}
