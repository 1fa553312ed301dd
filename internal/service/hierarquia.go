package service

import (
	"errors"

	"github.com/dermalert/registro/internal/repo"
)

// Níveis de acesso do catálogo de roles. Inteiro maior = mais privilégio;
// o nível efetivo de um usuário é o máximo entre suas roles.
const (
	NivelPesquisador = 1
	NivelSupervisor  = 2
	NivelAdmin       = 3
)

var (
	// ErrSemRole indica usuário sem nenhuma role atribuída.
	ErrSemRole = errors.New("usuário não possui nenhuma role definida")
	// ErrNivelInsuficiente indica nível efetivo abaixo do mínimo exigido.
	ErrNivelInsuficiente = errors.New("usuário não tem permissão para acessar esse recurso")
)

// NivelEfetivo devolve o maior nivel_acesso entre as roles do usuário.
func NivelEfetivo(u repo.Usuario) (int, error) {
	if len(u.Roles) == 0 {
		return 0, ErrSemRole
	}

	nivel := u.Roles[0].NivelAcesso
	for _, r := range u.Roles[1:] {
		if r.NivelAcesso > nivel {
			nivel = r.NivelAcesso
		}
	}
	return nivel, nil
}

// AutorizarNivel é o gate puro de hierarquia: sem efeitos colaterais,
// parametrizado apenas pelo nível mínimo.
func AutorizarNivel(u repo.Usuario, minimo int) error {
	nivel, err := NivelEfetivo(u)
	if err != nil {
		return err
	}
	if nivel < minimo {
		return ErrNivelInsuficiente
	}
	return nil
}
