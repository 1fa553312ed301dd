package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dermalert/registro/internal/db"
)

// Queries fornece acesso aos dados de usuários, roles e vínculos.
type Queries struct {
	pool *pgxpool.Pool
}

// New cria o adaptador de persistência sobre o pool.
func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

const usuarioColumns = `
        id, nome, cpf, email, senha_hash, fl_ativo,
        email_invite_token, email_invite_token_used,
        password_reset_token, password_reset_token_used,
        criado_em, criado_por, atualizado_por
`

func scanUsuario(row pgx.Row) (Usuario, error) {
	var u Usuario
	err := row.Scan(
		&u.ID, &u.Nome, &u.CPF, &u.Email, &u.SenhaHash, &u.Ativo,
		&u.ConviteToken, &u.ConviteUsado,
		&u.ResetToken, &u.ResetUsado,
		&u.CriadoEm, &u.CriadoPor, &u.AtualizadoPor,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Usuario{}, ErrNotFound
		}
		return Usuario{}, err
	}
	return u, nil
}

// GetUsuarioByCPF carrega o usuário com roles e unidades materializadas.
func (q *Queries) GetUsuarioByCPF(ctx context.Context, cpf string) (Usuario, error) {
	const query = `SELECT ` + usuarioColumns + ` FROM usuarios WHERE cpf = $1`

	u, err := scanUsuario(q.pool.QueryRow(ctx, query, strings.TrimSpace(cpf)))
	if err != nil {
		return Usuario{}, err
	}
	if err := q.carregarVinculos(ctx, &u); err != nil {
		return Usuario{}, err
	}
	return u, nil
}

// GetUsuarioByEmail carrega o usuário com roles e unidades materializadas.
func (q *Queries) GetUsuarioByEmail(ctx context.Context, email string) (Usuario, error) {
	const query = `SELECT ` + usuarioColumns + ` FROM usuarios WHERE email = $1`

	u, err := scanUsuario(q.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		return Usuario{}, err
	}
	if err := q.carregarVinculos(ctx, &u); err != nil {
		return Usuario{}, err
	}
	return u, nil
}

func (q *Queries) carregarVinculos(ctx context.Context, u *Usuario) error {
	const rolesQuery = `
        SELECT r.id, r.nome, r.nivel_acesso
        FROM roles r
        JOIN usuario_roles ur ON ur.role_id = r.id
        WHERE ur.usuario_id = $1
        ORDER BY r.nivel_acesso
    `

	rows, err := q.pool.Query(ctx, rolesQuery, u.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Nome, &r.NivelAcesso); err != nil {
			return err
		}
		u.Roles = append(u.Roles, r)
	}
	if rows.Err() != nil {
		return rows.Err()
	}

	const unidadesQuery = `
        SELECT un.id, un.nome, un.codigo, un.localizacao, un.cidade, un.fl_ativa, un.criado_em
        FROM unidades_saude un
        JOIN usuario_unidades uu ON uu.unidade_id = un.id
        WHERE uu.usuario_id = $1
        ORDER BY un.nome
    `

	unRows, err := q.pool.Query(ctx, unidadesQuery, u.ID)
	if err != nil {
		return err
	}
	defer unRows.Close()

	for unRows.Next() {
		var un UnidadeSaude
		if err := unRows.Scan(&un.ID, &un.Nome, &un.Codigo, &un.Localizacao, &un.Cidade, &un.Ativa, &un.CriadoEm); err != nil {
			return err
		}
		u.Unidades = append(u.Unidades, un)
	}
	return unRows.Err()
}

// GetRoleByID recupera uma role do catálogo.
func (q *Queries) GetRoleByID(ctx context.Context, id uuid.UUID) (Role, error) {
	const query = `SELECT id, nome, nivel_acesso FROM roles WHERE id = $1`

	var r Role
	if err := q.pool.QueryRow(ctx, query, id).Scan(&r.ID, &r.Nome, &r.NivelAcesso); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return r, nil
}

// ListRoles devolve o catálogo global de roles.
func (q *Queries) ListRoles(ctx context.Context) ([]Role, error) {
	const query = `SELECT id, nome, nivel_acesso FROM roles ORDER BY nivel_acesso`

	rows, err := q.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Nome, &r.NivelAcesso); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// CriarUsuarioPendente insere usuário sem senha com role, unidade e token de
// convite, tudo na mesma transação.
func (q *Queries) CriarUsuarioPendente(ctx context.Context, arg CriarUsuarioPendenteParams) (Usuario, error) {
	var u Usuario
	err := db.WithTx(ctx, q.pool, func(tctx context.Context, tx pgx.Tx) error {
		const insert = `
            INSERT INTO usuarios (id, nome, cpf, email, senha_hash, fl_ativo,
                email_invite_token, email_invite_token_used, criado_por)
            VALUES ($1, '', $2, $3, NULL, false, $4, false, $5)
            RETURNING ` + usuarioColumns + `
        `

		id := uuid.New()
		var err error
		u, err = scanUsuario(tx.QueryRow(tctx, insert, id,
			strings.TrimSpace(arg.CPF),
			strings.ToLower(strings.TrimSpace(arg.Email)),
			arg.ConviteToken, arg.CriadoPor,
		))
		if err != nil {
			return err
		}

		if _, err := tx.Exec(tctx, `INSERT INTO usuario_roles (usuario_id, role_id) VALUES ($1, $2)`, u.ID, arg.RoleID); err != nil {
			return err
		}
		_, err = tx.Exec(tctx, `INSERT INTO usuario_unidades (usuario_id, unidade_id) VALUES ($1, $2)`, u.ID, arg.UnidadeID)
		return err
	})
	if err != nil {
		return Usuario{}, err
	}
	if err := q.carregarVinculos(ctx, &u); err != nil {
		return Usuario{}, err
	}
	return u, nil
}

// DefinirConviteToken sobrescreve o token de convite e zera a flag de uso,
// invalidando implicitamente qualquer convite anterior ainda válido.
func (q *Queries) DefinirConviteToken(ctx context.Context, email, token string, atualizadoPor uuid.UUID) error {
	const query = `
        UPDATE usuarios
        SET email_invite_token = $2, email_invite_token_used = false, atualizado_por = $3
        WHERE email = $1
    `

	tag, err := q.pool.Exec(ctx, query, strings.ToLower(strings.TrimSpace(email)), token, atualizadoPor)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DefinirResetToken sobrescreve o token de redefinição e zera a flag de uso.
func (q *Queries) DefinirResetToken(ctx context.Context, email, token string) error {
	const query = `
        UPDATE usuarios
        SET password_reset_token = $2, password_reset_token_used = false
        WHERE email = $1
    `

	tag, err := q.pool.Exec(ctx, query, strings.ToLower(strings.TrimSpace(email)), token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CompletarCadastro consome o convite e grava nome, senha e ativação em um
// único UPDATE condicional. O compare-and-set sobre (email, token, used=false)
// impede que duas requisições concorrentes consumam o mesmo convite.
func (q *Queries) CompletarCadastro(ctx context.Context, email, token, nome, senhaHash string) error {
	const query = `
        UPDATE usuarios
        SET senha_hash = $3, nome = $4, fl_ativo = true, email_invite_token_used = true
        WHERE email = $1 AND email_invite_token = $2 AND email_invite_token_used = false
    `

	normalized := strings.ToLower(strings.TrimSpace(email))
	tag, err := q.pool.Exec(ctx, query, normalized, token, nome, senhaHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	return q.classificarFalhaConvite(ctx, normalized, token)
}

func (q *Queries) classificarFalhaConvite(ctx context.Context, email, token string) error {
	const query = `SELECT email_invite_token, email_invite_token_used FROM usuarios WHERE email = $1`

	var stored *string
	var used bool
	if err := q.pool.QueryRow(ctx, query, email).Scan(&stored, &used); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if stored == nil || *stored != token {
		return ErrTokenDivergente
	}
	if used {
		return ErrTokenUtilizado
	}
	return ErrNotFound
}

// RedefinirSenha consome o token de redefinição e grava a nova senha com o
// mesmo compare-and-set atômico do fluxo de convite.
func (q *Queries) RedefinirSenha(ctx context.Context, email, token, senhaHash string) error {
	const query = `
        UPDATE usuarios
        SET senha_hash = $3, password_reset_token_used = true
        WHERE email = $1 AND password_reset_token = $2 AND password_reset_token_used = false
    `

	normalized := strings.ToLower(strings.TrimSpace(email))
	tag, err := q.pool.Exec(ctx, query, normalized, token, senhaHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	return q.classificarFalhaReset(ctx, normalized, token)
}

func (q *Queries) classificarFalhaReset(ctx context.Context, email, token string) error {
	const query = `SELECT password_reset_token, password_reset_token_used FROM usuarios WHERE email = $1`

	var stored *string
	var used bool
	if err := q.pool.QueryRow(ctx, query, email).Scan(&stored, &used); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if stored == nil || *stored != token {
		return ErrTokenDivergente
	}
	if used {
		return ErrTokenUtilizado
	}
	return ErrNotFound
}

// AtualizarSenha grava novo hash para usuário autenticado.
func (q *Queries) AtualizarSenha(ctx context.Context, id uuid.UUID, senhaHash string) error {
	const query = `UPDATE usuarios SET senha_hash = $2 WHERE id = $1`

	tag, err := q.pool.Exec(ctx, query, id, senhaHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// EditarUsuario substitui role, unidade e estado ativo do usuário.
func (q *Queries) EditarUsuario(ctx context.Context, arg EditarUsuarioParams) (Usuario, error) {
	var u Usuario
	err := db.WithTx(ctx, q.pool, func(tctx context.Context, tx pgx.Tx) error {
		const update = `
            UPDATE usuarios SET fl_ativo = $2, atualizado_por = $3
            WHERE cpf = $1
            RETURNING ` + usuarioColumns + `
        `

		var err error
		u, err = scanUsuario(tx.QueryRow(tctx, update, strings.TrimSpace(arg.CPF), arg.Ativo, arg.AtualizadoPor))
		if err != nil {
			return err
		}

		if _, err := tx.Exec(tctx, `DELETE FROM usuario_roles WHERE usuario_id = $1`, u.ID); err != nil {
			return err
		}
		if _, err := tx.Exec(tctx, `INSERT INTO usuario_roles (usuario_id, role_id) VALUES ($1, $2)`, u.ID, arg.RoleID); err != nil {
			return err
		}
		if _, err := tx.Exec(tctx, `DELETE FROM usuario_unidades WHERE usuario_id = $1`, u.ID); err != nil {
			return err
		}
		_, err = tx.Exec(tctx, `INSERT INTO usuario_unidades (usuario_id, unidade_id) VALUES ($1, $2)`, u.ID, arg.UnidadeID)
		return err
	})
	if err != nil {
		return Usuario{}, err
	}
	if err := q.carregarVinculos(ctx, &u); err != nil {
		return Usuario{}, err
	}
	return u, nil
}
