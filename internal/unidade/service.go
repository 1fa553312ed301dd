package unidade

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dermalert/registro/internal/util"
)

const (
	cacheKeyLista = "unidades:lista"
	cacheTTL      = 5 * time.Minute
)

type unidadeRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (UnidadeSaude, error)
	GetByCodigo(ctx context.Context, codigo string) (UnidadeSaude, error)
	List(ctx context.Context) ([]UnidadeSaude, error)
	Create(ctx context.Context, input CriarInput) (UnidadeSaude, error)
	Update(ctx context.Context, id uuid.UUID, input EditarInput) (UnidadeSaude, error)
}

// Service contém as regras de cadastro de unidades de saúde.
type Service struct {
	repo  unidadeRepository
	cache *redis.Client
}

// NewService cria nova instância.
func NewService(repo unidadeRepository, cache *redis.Client) *Service {
	return &Service{repo: repo, cache: cache}
}

// Cadastrar cria unidade, rejeitando código duplicado.
func (s *Service) Cadastrar(ctx context.Context, input CriarInput) (UnidadeSaude, error) {
	if err := util.RequireString(input.Nome, "nome"); err != nil {
		return UnidadeSaude{}, err
	}
	if err := util.RequireString(input.Codigo, "código"); err != nil {
		return UnidadeSaude{}, err
	}

	if _, err := s.repo.GetByCodigo(ctx, input.Codigo); err == nil {
		return UnidadeSaude{}, ErrCodigoDuplicado
	} else if !errors.Is(err, ErrNotFound) {
		return UnidadeSaude{}, err
	}

	u, err := s.repo.Create(ctx, input)
	if err != nil {
		return UnidadeSaude{}, err
	}
	s.invalidarCache(ctx)
	return u, nil
}

// Listar devolve todas as unidades, com cache read-through.
func (s *Service) Listar(ctx context.Context) ([]UnidadeSaude, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKeyLista).Bytes(); err == nil {
			var unidades []UnidadeSaude
			if json.Unmarshal(data, &unidades) == nil {
				return unidades, nil
			}
		}
	}

	unidades, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(unidades); err == nil {
			s.cache.Set(ctx, cacheKeyLista, payload, cacheTTL)
		}
	}

	return unidades, nil
}

// Buscar devolve uma unidade pelo ID.
func (s *Service) Buscar(ctx context.Context, id uuid.UUID) (UnidadeSaude, error) {
	return s.repo.GetByID(ctx, id)
}

// Editar altera os campos informados.
func (s *Service) Editar(ctx context.Context, id uuid.UUID, input EditarInput) (UnidadeSaude, error) {
	u, err := s.repo.Update(ctx, id, input)
	if err != nil {
		return UnidadeSaude{}, err
	}
	s.invalidarCache(ctx)
	return u, nil
}

func (s *Service) invalidarCache(ctx context.Context) {
	if s.cache != nil {
		s.cache.Del(ctx, cacheKeyLista)
	}
}
