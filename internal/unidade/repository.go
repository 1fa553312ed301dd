package unidade

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository fornece acesso aos dados de unidades de saúde.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const unidadeColumns = `id, nome, codigo, localizacao, cidade, fl_ativa, criado_em`

func scanUnidade(row pgx.Row) (UnidadeSaude, error) {
	var u UnidadeSaude
	err := row.Scan(&u.ID, &u.Nome, &u.Codigo, &u.Localizacao, &u.Cidade, &u.Ativa, &u.CriadoEm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UnidadeSaude{}, ErrNotFound
		}
		return UnidadeSaude{}, err
	}
	return u, nil
}

// GetByID recupera unidade pelo ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (UnidadeSaude, error) {
	const query = `SELECT ` + unidadeColumns + ` FROM unidades_saude WHERE id = $1`
	return scanUnidade(r.pool.QueryRow(ctx, query, id))
}

// GetByCodigo recupera unidade pelo código.
func (r *Repository) GetByCodigo(ctx context.Context, codigo string) (UnidadeSaude, error) {
	const query = `SELECT ` + unidadeColumns + ` FROM unidades_saude WHERE codigo = $1`
	return scanUnidade(r.pool.QueryRow(ctx, query, strings.TrimSpace(codigo)))
}

// List devolve todas as unidades cadastradas.
func (r *Repository) List(ctx context.Context) ([]UnidadeSaude, error) {
	const query = `SELECT ` + unidadeColumns + ` FROM unidades_saude ORDER BY nome`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var unidades []UnidadeSaude
	for rows.Next() {
		u, err := scanUnidade(rows)
		if err != nil {
			return nil, err
		}
		unidades = append(unidades, u)
	}
	return unidades, rows.Err()
}

// Create insere nova unidade.
func (r *Repository) Create(ctx context.Context, input CriarInput) (UnidadeSaude, error) {
	const query = `
        INSERT INTO unidades_saude (id, nome, codigo, localizacao, cidade, fl_ativa)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING ` + unidadeColumns + `
    `

	return scanUnidade(r.pool.QueryRow(ctx, query,
		uuid.New(),
		strings.TrimSpace(input.Nome),
		strings.TrimSpace(input.Codigo),
		strings.TrimSpace(input.Localizacao),
		strings.TrimSpace(input.Cidade),
		input.Ativa,
	))
}

// Update altera campos informados, mantendo os demais.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, input EditarInput) (UnidadeSaude, error) {
	const query = `
        UPDATE unidades_saude
        SET nome = COALESCE($2, nome),
            localizacao = COALESCE($3, localizacao),
            cidade = COALESCE($4, cidade),
            fl_ativa = COALESCE($5, fl_ativa)
        WHERE id = $1
        RETURNING ` + unidadeColumns + `
    `

	return scanUnidade(r.pool.QueryRow(ctx, query, id, input.Nome, input.Localizacao, input.Cidade, input.Ativa))
}
