package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dermalert/registro/internal/atendimento"
	"github.com/dermalert/registro/internal/config"
	httpmiddleware "github.com/dermalert/registro/internal/http/middleware"
	"github.com/dermalert/registro/internal/service"
	"github.com/dermalert/registro/internal/storage"
	"github.com/dermalert/registro/internal/unidade"
)

type Handler struct {
	cfg           *config.Config
	pool          *pgxpool.Pool
	redis         *redis.Client
	authService   *service.AuthService
	contaService  *service.ContaService
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
}

// NewRouter devolve roteador configurado com todas as rotas da API.
func NewRouter(cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client, authService *service.AuthService, contaService *service.ContaService) (http.Handler, error) {
	var uploader storage.Uploader = storage.NoopUploader{}
	switch cfg.Storage.Provider {
	case "", "noop":
		// mantém uploader padrão
	case "s3", "r2", "cloudflare-r2":
		s3Cfg := storage.S3Config{
			Endpoint:     cfg.Storage.S3Endpoint,
			Region:       cfg.Storage.S3Region,
			Bucket:       cfg.Storage.S3Bucket,
			AccessKey:    cfg.Storage.S3AccessKey,
			SecretKey:    cfg.Storage.S3SecretKey,
			PublicDomain: cfg.Storage.S3PublicURL,
		}
		var err error
		uploader, err = storage.NewS3Uploader(s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
	default:
		return nil, fmt.Errorf("storage: provedor %s não suportado", cfg.Storage.Provider)
	}

	h := &Handler{
		cfg:           cfg,
		pool:          pool,
		redis:         redisClient,
		authService:   authService,
		contaService:  contaService,
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
	}

	unidadeRepo := unidade.NewRepository(pool)
	unidadeService := unidade.NewService(unidadeRepo, redisClient)
	unidadeHandler := unidade.NewHandler(unidadeService)

	atendimentoRepo := atendimento.NewRepository(pool)
	atendimentoService := atendimento.NewService(atendimentoRepo, uploader)
	atendimentoHandler := atendimento.NewHandler(atendimentoService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)
		public.Get("/redirect", h.Redirect)

		public.Post("/token", h.Login)
		public.Post("/token/refresh", h.Refresh)

		public.Route("/cadastro", func(cadastro chi.Router) {
			cadastro.Get("/convite", h.PreVisualizarConvite)
			cadastro.Post("/completar", h.CompletarCadastro)
		})

		public.Post("/senha/esqueci", h.EsqueciSenha)
		public.Post("/senha/redefinir", h.RedefinirSenha)

		unidade.Mount(public, unidadeHandler)
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(authService))
		private.Use(httpmiddleware.UserRateLimit(h.authLimiter))

		private.Get("/token/get-current-user", h.Me)
		private.Post("/senha/alterar", h.AlterarSenha)

		private.Group(func(gestao chi.Router) {
			gestao.Use(httpmiddleware.ExigirNivel(service.NivelSupervisor))
			gestao.Get("/roles", h.ListarRoles)
			gestao.Post("/usuarios/convidar", h.ConvidarUsuario)
			gestao.Patch("/usuarios", h.EditarUsuario)
		})

		private.Group(func(admin chi.Router) {
			admin.Use(httpmiddleware.ExigirNivel(service.NivelAdmin))
			unidade.MountAdmin(admin, unidadeHandler)
		})

		private.Group(func(clinico chi.Router) {
			clinico.Use(httpmiddleware.ExigirNivel(service.NivelPesquisador))
			atendimento.Mount(clinico, atendimentoHandler)
		})
	})

	return r, nil
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready valida conexões com Postgres e Redis.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbErr := h.pool.Ping(ctx)
	redisErr := h.redis.Ping(ctx).Err()

	if dbErr != nil || redisErr != nil {
		WriteError(w, http.StatusServiceUnavailable, "INTERNAL", "dependências indisponíveis", map[string]any{
			"db":    errorString(dbErr),
			"redis": errorString(redisErr),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
