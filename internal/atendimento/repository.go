package atendimento

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dermalert/registro/internal/db"
)

// Repository fornece acesso aos dados clínicos.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetPacienteByCPF recupera paciente pelo CPF.
func (r *Repository) GetPacienteByCPF(ctx context.Context, cpf string) (Paciente, error) {
	const query = `
        SELECT id, nome, data_nascimento, sexo, cpf, cartao_sus, endereco, telefone, email, autoriza_pesquisa, criado_em, criado_por
        FROM pacientes
        WHERE cpf = $1
    `

	var p Paciente
	err := r.pool.QueryRow(ctx, query, strings.TrimSpace(cpf)).Scan(
		&p.ID, &p.Nome, &p.DataNascimento, &p.Sexo, &p.CPF, &p.CartaoSUS,
		&p.Endereco, &p.Telefone, &p.Email, &p.AutorizaPesquisa, &p.CriadoEm, &p.CriadoPor,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Paciente{}, ErrNotFound
		}
		return Paciente{}, err
	}
	return p, nil
}

// CriarPacienteComAtendimento insere paciente e seu primeiro atendimento na
// mesma transação.
func (r *Repository) CriarPacienteComAtendimento(ctx context.Context, input PacienteInput, usuarioID uuid.UUID) (Atendimento, error) {
	var at Atendimento
	err := db.WithTx(ctx, r.pool, func(tctx context.Context, tx pgx.Tx) error {
		const insertPaciente = `
            INSERT INTO pacientes (id, nome, data_nascimento, sexo, cpf, cartao_sus, endereco, telefone, email, autoriza_pesquisa, criado_por)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        `

		pacienteID := uuid.New()
		if _, err := tx.Exec(tctx, insertPaciente, pacienteID,
			strings.TrimSpace(input.Nome), input.DataNascimento, input.Sexo,
			strings.TrimSpace(input.CPF), input.CartaoSUS, input.Endereco,
			input.Telefone, strings.ToLower(strings.TrimSpace(input.Email)),
			input.AutorizaPesquisa, usuarioID,
		); err != nil {
			return err
		}

		const insertAtendimento = `
            INSERT INTO atendimentos (id, paciente_id, usuario_id)
            VALUES ($1, $2, $3)
            RETURNING id, paciente_id, usuario_id, termo_url, criado_em
        `

		return tx.QueryRow(tctx, insertAtendimento, uuid.New(), pacienteID, usuarioID).
			Scan(&at.ID, &at.PacienteID, &at.UsuarioID, &at.TermoURL, &at.CriadoEm)
	})
	if err != nil {
		return Atendimento{}, err
	}
	return at, nil
}

// GetAtendimento recupera um atendimento pelo ID.
func (r *Repository) GetAtendimento(ctx context.Context, id uuid.UUID) (Atendimento, error) {
	const query = `SELECT id, paciente_id, usuario_id, termo_url, criado_em FROM atendimentos WHERE id = $1`

	var at Atendimento
	err := r.pool.QueryRow(ctx, query, id).Scan(&at.ID, &at.PacienteID, &at.UsuarioID, &at.TermoURL, &at.CriadoEm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Atendimento{}, ErrNotFound
		}
		return Atendimento{}, err
	}
	return at, nil
}

// ListAtendimentosByUsuario devolve os atendimentos registrados pelo usuário.
func (r *Repository) ListAtendimentosByUsuario(ctx context.Context, usuarioID uuid.UUID) ([]Atendimento, error) {
	const query = `
        SELECT id, paciente_id, usuario_id, termo_url, criado_em
        FROM atendimentos
        WHERE usuario_id = $1
        ORDER BY criado_em DESC
    `

	rows, err := r.pool.Query(ctx, query, usuarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var atendimentos []Atendimento
	for rows.Next() {
		var at Atendimento
		if err := rows.Scan(&at.ID, &at.PacienteID, &at.UsuarioID, &at.TermoURL, &at.CriadoEm); err != nil {
			return nil, err
		}
		atendimentos = append(atendimentos, at)
	}
	return atendimentos, rows.Err()
}

// DefinirTermo grava a URL do termo de consentimento. UPDATE condicional:
// só o primeiro termo de cada atendimento é aceito.
func (r *Repository) DefinirTermo(ctx context.Context, atendimentoID uuid.UUID, url string) error {
	const query = `UPDATE atendimentos SET termo_url = $2 WHERE id = $1 AND termo_url IS NULL`

	tag, err := r.pool.Exec(ctx, query, atendimentoID, url)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	if _, err := r.GetAtendimento(ctx, atendimentoID); err != nil {
		return err
	}
	return ErrTermoJaCadastrado
}

// CriarLesao insere lesão e fotos na mesma transação.
func (r *Repository) CriarLesao(ctx context.Context, atendimentoID uuid.UUID, local, descricao string, fotoURLs []string) (Lesao, error) {
	var lesao Lesao
	err := db.WithTx(ctx, r.pool, func(tctx context.Context, tx pgx.Tx) error {
		const insertLesao = `
            INSERT INTO lesoes (id, atendimento_id, local, descricao)
            VALUES ($1, $2, $3, $4)
            RETURNING id, atendimento_id, local, descricao, criado_em
        `

		if err := tx.QueryRow(tctx, insertLesao, uuid.New(), atendimentoID, local, descricao).
			Scan(&lesao.ID, &lesao.AtendimentoID, &lesao.Local, &lesao.Descricao, &lesao.CriadoEm); err != nil {
			return err
		}

		const insertFoto = `
            INSERT INTO fotos_lesao (id, lesao_id, url)
            VALUES ($1, $2, $3)
            RETURNING id, lesao_id, url, criado_em
        `

		for _, url := range fotoURLs {
			var foto FotoLesao
			if err := tx.QueryRow(tctx, insertFoto, uuid.New(), lesao.ID, url).
				Scan(&foto.ID, &foto.LesaoID, &foto.URL, &foto.CriadoEm); err != nil {
				return err
			}
			lesao.Fotos = append(lesao.Fotos, foto)
		}
		return nil
	})
	if err != nil {
		return Lesao{}, err
	}
	return lesao, nil
}

// ListLesoes devolve as lesões (com fotos) de um atendimento.
func (r *Repository) ListLesoes(ctx context.Context, atendimentoID uuid.UUID) ([]Lesao, error) {
	const query = `
        SELECT id, atendimento_id, local, descricao, criado_em
        FROM lesoes
        WHERE atendimento_id = $1
        ORDER BY criado_em
    `

	rows, err := r.pool.Query(ctx, query, atendimentoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lesoes []Lesao
	for rows.Next() {
		var l Lesao
		if err := rows.Scan(&l.ID, &l.AtendimentoID, &l.Local, &l.Descricao, &l.CriadoEm); err != nil {
			return nil, err
		}
		lesoes = append(lesoes, l)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	const fotosQuery = `
        SELECT f.id, f.lesao_id, f.url, f.criado_em
        FROM fotos_lesao f
        JOIN lesoes l ON l.id = f.lesao_id
        WHERE l.atendimento_id = $1
        ORDER BY f.criado_em
    `

	fotoRows, err := r.pool.Query(ctx, fotosQuery, atendimentoID)
	if err != nil {
		return nil, err
	}
	defer fotoRows.Close()

	fotosPorLesao := make(map[uuid.UUID][]FotoLesao)
	for fotoRows.Next() {
		var f FotoLesao
		if err := fotoRows.Scan(&f.ID, &f.LesaoID, &f.URL, &f.CriadoEm); err != nil {
			return nil, err
		}
		fotosPorLesao[f.LesaoID] = append(fotosPorLesao[f.LesaoID], f)
	}
	if fotoRows.Err() != nil {
		return nil, fotoRows.Err()
	}

	for i := range lesoes {
		lesoes[i].Fotos = fotosPorLesao[lesoes[i].ID]
	}
	return lesoes, nil
}
