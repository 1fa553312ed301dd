package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/dermalert/registro/internal/auth"
	"github.com/dermalert/registro/internal/mailer"
	"github.com/dermalert/registro/internal/repo"
)

// fakeContaRepo reproduz em memória a semântica de consumo condicional dos
// tokens de uso único: divergência é checada antes de uso.
type fakeContaRepo struct {
	mu       sync.Mutex
	usuarios map[string]*repo.Usuario // chave: email
	roles    map[uuid.UUID]repo.Role
}

func newFakeContaRepo() *fakeContaRepo {
	return &fakeContaRepo{
		usuarios: make(map[string]*repo.Usuario),
		roles:    make(map[uuid.UUID]repo.Role),
	}
}

func (f *fakeContaRepo) addRole(nome string, nivel int) repo.Role {
	role := repo.Role{ID: uuid.New(), Nome: nome, NivelAcesso: nivel}
	f.roles[role.ID] = role
	return role
}

func (f *fakeContaRepo) GetUsuarioByCPF(_ context.Context, cpf string) (repo.Usuario, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.usuarios {
		if u.CPF == cpf {
			return *u, nil
		}
	}
	return repo.Usuario{}, repo.ErrNotFound
}

func (f *fakeContaRepo) GetUsuarioByEmail(_ context.Context, email string) (repo.Usuario, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.usuarios[email]; ok {
		return *u, nil
	}
	return repo.Usuario{}, repo.ErrNotFound
}

func (f *fakeContaRepo) GetRoleByID(_ context.Context, id uuid.UUID) (repo.Role, error) {
	if role, ok := f.roles[id]; ok {
		return role, nil
	}
	return repo.Role{}, repo.ErrNotFound
}

func (f *fakeContaRepo) ListRoles(_ context.Context) ([]repo.Role, error) {
	roles := make([]repo.Role, 0, len(f.roles))
	for _, role := range f.roles {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].NivelAcesso < roles[j].NivelAcesso })
	return roles, nil
}

func (f *fakeContaRepo) CriarUsuarioPendente(_ context.Context, arg repo.CriarUsuarioPendenteParams) (repo.Usuario, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	token := arg.ConviteToken
	criadoPor := arg.CriadoPor
	u := &repo.Usuario{
		ID:           uuid.New(),
		CPF:          arg.CPF,
		Email:        arg.Email,
		Ativo:        false,
		ConviteToken: &token,
		CriadoPor:    &criadoPor,
		Roles:        []repo.Role{f.roles[arg.RoleID]},
		Unidades:     []repo.UnidadeSaude{{ID: arg.UnidadeID}},
	}
	f.usuarios[arg.Email] = u
	return *u, nil
}

func (f *fakeContaRepo) DefinirConviteToken(_ context.Context, email, token string, _ uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.usuarios[email]
	if !ok {
		return repo.ErrNotFound
	}
	u.ConviteToken = &token
	u.ConviteUsado = false
	return nil
}

func (f *fakeContaRepo) DefinirResetToken(_ context.Context, email, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.usuarios[email]
	if !ok {
		return repo.ErrNotFound
	}
	u.ResetToken = &token
	u.ResetUsado = false
	return nil
}

func (f *fakeContaRepo) CompletarCadastro(_ context.Context, email, token, nome, senhaHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.usuarios[email]
	if !ok {
		return repo.ErrNotFound
	}
	if u.ConviteToken == nil || *u.ConviteToken != token {
		return repo.ErrTokenDivergente
	}
	if u.ConviteUsado {
		return repo.ErrTokenUtilizado
	}
	u.Nome = nome
	u.SenhaHash = &senhaHash
	u.Ativo = true
	u.ConviteUsado = true
	return nil
}

func (f *fakeContaRepo) RedefinirSenha(_ context.Context, email, token, senhaHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.usuarios[email]
	if !ok {
		return repo.ErrNotFound
	}
	if u.ResetToken == nil || *u.ResetToken != token {
		return repo.ErrTokenDivergente
	}
	if u.ResetUsado {
		return repo.ErrTokenUtilizado
	}
	u.SenhaHash = &senhaHash
	u.ResetUsado = true
	return nil
}

func (f *fakeContaRepo) AtualizarSenha(_ context.Context, id uuid.UUID, senhaHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.usuarios {
		if u.ID == id {
			u.SenhaHash = &senhaHash
			return nil
		}
	}
	return repo.ErrNotFound
}

func (f *fakeContaRepo) EditarUsuario(_ context.Context, arg repo.EditarUsuarioParams) (repo.Usuario, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.usuarios {
		if u.CPF == arg.CPF {
			u.Roles = []repo.Role{f.roles[arg.RoleID]}
			u.Unidades = []repo.UnidadeSaude{{ID: arg.UnidadeID}}
			u.Ativo = arg.Ativo
			atualizadoPor := arg.AtualizadoPor
			u.AtualizadoPor = &atualizadoPor
			return *u, nil
		}
	}
	return repo.Usuario{}, repo.ErrNotFound
}

func (f *fakeContaRepo) conviteToken(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.usuarios[email]; ok && u.ConviteToken != nil {
		return *u.ConviteToken
	}
	return ""
}

func (f *fakeContaRepo) resetToken(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.usuarios[email]; ok && u.ResetToken != nil {
		return *u.ResetToken
	}
	return ""
}

func admin(roles *fakeContaRepo) repo.Usuario {
	role := roles.addRole("ADMIN", NivelAdmin)
	hash := "$argon2id$fake"
	return repo.Usuario{
		ID:        uuid.New(),
		Nome:      "Admin Geral",
		CPF:       "11144477735",
		Email:     "admin@exemplo.com",
		SenhaHash: &hash,
		Ativo:     true,
		Roles:     []repo.Role{role},
	}
}

func novoContaService(f *fakeContaRepo) *ContaService {
	return NewContaService(f, testTokens(), mailer.NoopMailer{}, "dermalert")
}

func TestConviteFluxoCompleto(t *testing.T) {
	f := newFakeContaRepo()
	adm := admin(f)
	pesquisador := f.addRole("PESQUISADOR", NivelPesquisador)
	unidade := uuid.New()
	svc := novoContaService(f)
	ctx := context.Background()

	err := svc.Convidar(ctx, adm, ConviteInput{
		Email:     "ana@exemplo.com",
		CPF:       "52998224725",
		RoleID:    pesquisador.ID,
		UnidadeID: unidade,
	})
	if err != nil {
		t.Fatalf("Convidar: %v", err)
	}

	token := f.conviteToken("ana@exemplo.com")
	if token == "" {
		t.Fatal("token de convite não persistido")
	}

	pendente, err := svc.PreVisualizarConvite(ctx, token)
	if err != nil {
		t.Fatalf("PreVisualizarConvite: %v", err)
	}
	if !pendente.Pendente() || pendente.CPF != "52998224725" {
		t.Fatalf("pré-visualização inesperada: %+v", pendente)
	}

	if err := svc.CompletarCadastro(ctx, token, "Ana Pesquisadora", "senha-forte"); err != nil {
		t.Fatalf("CompletarCadastro: %v", err)
	}

	concluida, err := f.GetUsuarioByEmail(ctx, "ana@exemplo.com")
	if err != nil {
		t.Fatalf("GetUsuarioByEmail: %v", err)
	}
	if concluida.Pendente() || !concluida.Ativo || concluida.Nome != "Ana Pesquisadora" {
		t.Fatalf("cadastro não concluído: %+v", concluida)
	}
	if !auth.Verify("senha-forte", *concluida.SenhaHash) {
		t.Fatal("senha não confere com o hash gravado")
	}

	// Reuso do mesmo token é barrado.
	if err := svc.CompletarCadastro(ctx, token, "Outro Nome", "outra-senha-8"); !errors.Is(err, repo.ErrTokenUtilizado) {
		t.Fatalf("erro = %v, esperado ErrTokenUtilizado", err)
	}
}

func TestCompletarCadastroTokenDivergente(t *testing.T) {
	f := newFakeContaRepo()
	adm := admin(f)
	pesquisador := f.addRole("PESQUISADOR", NivelPesquisador)
	svc := novoContaService(f)
	ctx := context.Background()

	if err := svc.Convidar(ctx, adm, ConviteInput{
		Email:     "ana@exemplo.com",
		CPF:       "52998224725",
		RoleID:    pesquisador.ID,
		UnidadeID: uuid.New(),
	}); err != nil {
		t.Fatalf("Convidar: %v", err)
	}

	// Assinatura válida, mas não é a cópia vigente no cadastro.
	avulso, err := svc.tokens.GenerateTicket(auth.TicketConvite, "ana@exemplo.com")
	if err != nil {
		t.Fatalf("GenerateTicket: %v", err)
	}

	if err := svc.CompletarCadastro(ctx, avulso, "Ana", "senha-forte"); !errors.Is(err, repo.ErrTokenDivergente) {
		t.Fatalf("erro = %v, esperado ErrTokenDivergente", err)
	}
}

func TestConvidarReenvioInvalidaTokenAnterior(t *testing.T) {
	f := newFakeContaRepo()
	adm := admin(f)
	pesquisador := f.addRole("PESQUISADOR", NivelPesquisador)
	svc := novoContaService(f)
	ctx := context.Background()

	input := ConviteInput{
		Email:     "ana@exemplo.com",
		CPF:       "52998224725",
		RoleID:    pesquisador.ID,
		UnidadeID: uuid.New(),
	}

	if err := svc.Convidar(ctx, adm, input); err != nil {
		t.Fatalf("Convidar: %v", err)
	}
	anterior := f.conviteToken("ana@exemplo.com")

	if err := svc.Convidar(ctx, adm, input); err != nil {
		t.Fatalf("Convidar (reenvio): %v", err)
	}
	vigente := f.conviteToken("ana@exemplo.com")
	if vigente == anterior {
		t.Fatal("reenvio não trocou o token persistido")
	}

	if err := svc.CompletarCadastro(ctx, anterior, "Ana", "senha-forte"); !errors.Is(err, repo.ErrTokenDivergente) {
		t.Fatalf("erro = %v, esperado ErrTokenDivergente", err)
	}
	if err := svc.CompletarCadastro(ctx, vigente, "Ana", "senha-forte"); err != nil {
		t.Fatalf("CompletarCadastro com token vigente: %v", err)
	}
}

func TestConvidarRoleAcimaDoNivel(t *testing.T) {
	f := newFakeContaRepo()
	roleAdmin := f.addRole("ADMIN", NivelAdmin)
	roleSupervisor := f.addRole("SUPERVISOR", NivelSupervisor)
	svc := novoContaService(f)

	supervisor := repo.Usuario{
		ID:       uuid.New(),
		CPF:      "11144477735",
		Email:    "sup@exemplo.com",
		Ativo:    true,
		Roles:    []repo.Role{roleSupervisor},
		Unidades: []repo.UnidadeSaude{{ID: uuid.New()}},
	}

	err := svc.Convidar(context.Background(), supervisor, ConviteInput{
		Email:     "ana@exemplo.com",
		CPF:       "52998224725",
		RoleID:    roleAdmin.ID,
		UnidadeID: uuid.New(),
	})
	if !errors.Is(err, ErrRoleNaoPermitida) {
		t.Fatalf("erro = %v, esperado ErrRoleNaoPermitida", err)
	}
}

func TestConvidarSupervisorUsaPropriaUnidade(t *testing.T) {
	f := newFakeContaRepo()
	roleSupervisor := f.addRole("SUPERVISOR", NivelSupervisor)
	pesquisador := f.addRole("PESQUISADOR", NivelPesquisador)
	svc := novoContaService(f)

	minhaUnidade := uuid.New()
	supervisor := repo.Usuario{
		ID:       uuid.New(),
		CPF:      "11144477735",
		Email:    "sup@exemplo.com",
		Ativo:    true,
		Roles:    []repo.Role{roleSupervisor},
		Unidades: []repo.UnidadeSaude{{ID: minhaUnidade}},
	}

	err := svc.Convidar(context.Background(), supervisor, ConviteInput{
		Email:     "ana@exemplo.com",
		CPF:       "52998224725",
		RoleID:    pesquisador.ID,
		UnidadeID: uuid.New(), // ignorada para não-admin
	})
	if err != nil {
		t.Fatalf("Convidar: %v", err)
	}

	criada, err := f.GetUsuarioByEmail(context.Background(), "ana@exemplo.com")
	if err != nil {
		t.Fatalf("GetUsuarioByEmail: %v", err)
	}
	if len(criada.Unidades) != 1 || criada.Unidades[0].ID != minhaUnidade {
		t.Fatalf("unidade = %+v, esperada a do supervisor", criada.Unidades)
	}
}

func TestConvidarCadastroJaCompleto(t *testing.T) {
	f := newFakeContaRepo()
	adm := admin(f)
	pesquisador := f.addRole("PESQUISADOR", NivelPesquisador)
	svc := novoContaService(f)
	ctx := context.Background()

	hash := "$argon2id$fake"
	f.usuarios["ana@exemplo.com"] = &repo.Usuario{
		ID:        uuid.New(),
		CPF:       "52998224725",
		Email:     "ana@exemplo.com",
		SenhaHash: &hash,
		Ativo:     true,
	}

	err := svc.Convidar(ctx, adm, ConviteInput{
		Email:     "ana@exemplo.com",
		CPF:       "52998224725",
		RoleID:    pesquisador.ID,
		UnidadeID: uuid.New(),
	})
	if !errors.Is(err, ErrCadastroCompleto) {
		t.Fatalf("erro = %v, esperado ErrCadastroCompleto", err)
	}
}

func TestEsqueciSenhaEmailDesconhecido(t *testing.T) {
	f := newFakeContaRepo()
	svc := novoContaService(f)

	// Mesma resposta de sucesso para não revelar cadastros.
	if err := svc.EsqueciSenha(context.Background(), "ninguem@exemplo.com"); err != nil {
		t.Fatalf("EsqueciSenha: %v", err)
	}
}

func TestListarRoles(t *testing.T) {
	f := newFakeContaRepo()
	f.addRole("SUPERVISOR", NivelSupervisor)
	f.addRole("PESQUISADOR", NivelPesquisador)
	f.addRole("ADMIN", NivelAdmin)
	svc := novoContaService(f)

	roles, err := svc.ListarRoles(context.Background())
	if err != nil {
		t.Fatalf("ListarRoles: %v", err)
	}
	if len(roles) != 3 {
		t.Fatalf("len(roles) = %d, esperado 3", len(roles))
	}
	for i, nivel := range []int{NivelPesquisador, NivelSupervisor, NivelAdmin} {
		if roles[i].NivelAcesso != nivel {
			t.Fatalf("roles[%d].NivelAcesso = %d, esperado %d", i, roles[i].NivelAcesso, nivel)
		}
	}
}

func TestEsqueciSenhaCadastroPendente(t *testing.T) {
	f := newFakeContaRepo()
	svc := novoContaService(f)
	ctx := context.Background()

	convite := "convite-vigente"
	f.usuarios["ana@exemplo.com"] = &repo.Usuario{
		ID:           uuid.New(),
		CPF:          "52998224725",
		Email:        "ana@exemplo.com",
		ConviteToken: &convite,
	}

	// Pendente conclui pelo convite; resposta neutra e nenhum ticket emitido.
	if err := svc.EsqueciSenha(ctx, "ana@exemplo.com"); err != nil {
		t.Fatalf("EsqueciSenha: %v", err)
	}
	if token := f.resetToken("ana@exemplo.com"); token != "" {
		t.Fatalf("ticket de reset emitido para cadastro pendente: %q", token)
	}
}

func TestRedefinirSenhaFluxo(t *testing.T) {
	f := newFakeContaRepo()
	svc := novoContaService(f)
	ctx := context.Background()

	hash, err := auth.Hash("senha-antiga")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	f.usuarios["ana@exemplo.com"] = &repo.Usuario{
		ID:        uuid.New(),
		CPF:       "52998224725",
		Email:     "ana@exemplo.com",
		SenhaHash: &hash,
		Ativo:     true,
	}

	if err := svc.EsqueciSenha(ctx, "ana@exemplo.com"); err != nil {
		t.Fatalf("EsqueciSenha: %v", err)
	}

	token := f.resetToken("ana@exemplo.com")
	if token == "" {
		t.Fatal("token de reset não persistido")
	}

	if err := svc.RedefinirSenha(ctx, token, "senha-nova-8"); err != nil {
		t.Fatalf("RedefinirSenha: %v", err)
	}

	u, _ := f.GetUsuarioByEmail(ctx, "ana@exemplo.com")
	if !auth.Verify("senha-nova-8", *u.SenhaHash) {
		t.Fatal("nova senha não confere")
	}

	if err := svc.RedefinirSenha(ctx, token, "outra-senha-8"); !errors.Is(err, repo.ErrTokenUtilizado) {
		t.Fatalf("erro = %v, esperado ErrTokenUtilizado", err)
	}
}

func TestRedefinirSenhaConsumoConcorrente(t *testing.T) {
	f := newFakeContaRepo()
	svc := novoContaService(f)
	ctx := context.Background()

	hash, err := auth.Hash("senha-antiga")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	f.usuarios["ana@exemplo.com"] = &repo.Usuario{
		ID:        uuid.New(),
		CPF:       "52998224725",
		Email:     "ana@exemplo.com",
		SenhaHash: &hash,
		Ativo:     true,
	}

	if err := svc.EsqueciSenha(ctx, "ana@exemplo.com"); err != nil {
		t.Fatalf("EsqueciSenha: %v", err)
	}
	token := f.resetToken("ana@exemplo.com")

	// Duas requisições disputando o mesmo ticket: exatamente uma consome.
	resultados := make(chan error, 2)
	var inicio sync.WaitGroup
	inicio.Add(1)
	for i := 0; i < 2; i++ {
		go func(senha string) {
			inicio.Wait()
			resultados <- svc.RedefinirSenha(ctx, token, senha)
		}([]string{"senha-nova-8", "senha-rival-8"}[i])
	}
	inicio.Done()

	var sucessos, utilizados int
	for i := 0; i < 2; i++ {
		switch err := <-resultados; {
		case err == nil:
			sucessos++
		case errors.Is(err, repo.ErrTokenUtilizado):
			utilizados++
		default:
			t.Fatalf("erro inesperado: %v", err)
		}
	}
	if sucessos != 1 || utilizados != 1 {
		t.Fatalf("sucessos = %d, utilizados = %d, esperado 1 e 1", sucessos, utilizados)
	}
}

func TestRedefinirSenhaComTicketDeConvite(t *testing.T) {
	f := newFakeContaRepo()
	svc := novoContaService(f)

	convite, err := svc.tokens.GenerateTicket(auth.TicketConvite, "ana@exemplo.com")
	if err != nil {
		t.Fatalf("GenerateTicket: %v", err)
	}

	if err := svc.RedefinirSenha(context.Background(), convite, "senha-nova-8"); !errors.Is(err, auth.ErrTokenInvalido) {
		t.Fatalf("erro = %v, esperado ErrTokenInvalido", err)
	}
}

func TestAlterarSenha(t *testing.T) {
	f := newFakeContaRepo()
	svc := novoContaService(f)
	ctx := context.Background()

	hash, err := auth.Hash("senha-atual")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	u := &repo.Usuario{
		ID:        uuid.New(),
		CPF:       "52998224725",
		Email:     "ana@exemplo.com",
		SenhaHash: &hash,
		Ativo:     true,
	}
	f.usuarios[u.Email] = u

	if err := svc.AlterarSenha(ctx, *u, "senha-errada", "senha-nova-8"); !errors.Is(err, ErrSenhaAtualIncorreta) {
		t.Fatalf("erro = %v, esperado ErrSenhaAtualIncorreta", err)
	}

	if err := svc.AlterarSenha(ctx, *u, "senha-atual", "senha-nova-8"); err != nil {
		t.Fatalf("AlterarSenha: %v", err)
	}

	depois, _ := f.GetUsuarioByEmail(ctx, u.Email)
	if !auth.Verify("senha-nova-8", *depois.SenhaHash) {
		t.Fatal("senha não foi trocada")
	}
}

func TestEditarUsuarioAutoDesativacao(t *testing.T) {
	f := newFakeContaRepo()
	adm := admin(f)
	f.usuarios[adm.Email] = &adm
	svc := novoContaService(f)

	_, err := svc.EditarUsuario(context.Background(), adm, EdicaoInput{
		CPF:       adm.CPF,
		RoleID:    adm.Roles[0].ID,
		UnidadeID: uuid.New(),
		Ativo:     false,
	})
	if !errors.Is(err, ErrAutoDesativacao) {
		t.Fatalf("erro = %v, esperado ErrAutoDesativacao", err)
	}
}

func TestEditarUsuarioForaDaUnidade(t *testing.T) {
	f := newFakeContaRepo()
	roleSupervisor := f.addRole("SUPERVISOR", NivelSupervisor)
	pesquisador := f.addRole("PESQUISADOR", NivelPesquisador)
	svc := novoContaService(f)

	supervisor := repo.Usuario{
		ID:       uuid.New(),
		CPF:      "11144477735",
		Email:    "sup@exemplo.com",
		Ativo:    true,
		Roles:    []repo.Role{roleSupervisor},
		Unidades: []repo.UnidadeSaude{{ID: uuid.New()}},
	}

	f.usuarios["ana@exemplo.com"] = &repo.Usuario{
		ID:       uuid.New(),
		CPF:      "52998224725",
		Email:    "ana@exemplo.com",
		Ativo:    true,
		Roles:    []repo.Role{pesquisador},
		Unidades: []repo.UnidadeSaude{{ID: uuid.New()}}, // outra unidade
	}

	_, err := svc.EditarUsuario(context.Background(), supervisor, EdicaoInput{
		CPF:       "52998224725",
		RoleID:    pesquisador.ID,
		UnidadeID: uuid.New(),
		Ativo:     true,
	})
	if !errors.Is(err, ErrForaDaUnidade) {
		t.Fatalf("erro = %v, esperado ErrForaDaUnidade", err)
	}
}
