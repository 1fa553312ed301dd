package service

import (
	"errors"
	"testing"

	"github.com/dermalert/registro/internal/repo"
)

func usuarioComNiveis(niveis ...int) repo.Usuario {
	u := repo.Usuario{}
	for _, n := range niveis {
		u.Roles = append(u.Roles, repo.Role{NivelAcesso: n})
	}
	return u
}

func TestNivelEfetivo(t *testing.T) {
	casos := []struct {
		nome   string
		niveis []int
		nivel  int
	}{
		{"uma role", []int{NivelPesquisador}, NivelPesquisador},
		{"pega o maior", []int{NivelPesquisador, NivelAdmin}, NivelAdmin},
		{"ordem nao importa", []int{NivelAdmin, NivelPesquisador}, NivelAdmin},
		{"duplicadas", []int{NivelSupervisor, NivelSupervisor}, NivelSupervisor},
	}

	for _, caso := range casos {
		t.Run(caso.nome, func(t *testing.T) {
			nivel, err := NivelEfetivo(usuarioComNiveis(caso.niveis...))
			if err != nil {
				t.Fatalf("NivelEfetivo: %v", err)
			}
			if nivel != caso.nivel {
				t.Fatalf("nivel = %d, esperado %d", nivel, caso.nivel)
			}
		})
	}
}

func TestNivelEfetivoSemRoles(t *testing.T) {
	if _, err := NivelEfetivo(repo.Usuario{}); !errors.Is(err, ErrSemRole) {
		t.Fatalf("erro = %v, esperado ErrSemRole", err)
	}
}

func TestAutorizarNivel(t *testing.T) {
	casos := []struct {
		nome   string
		niveis []int
		minimo int
		erro   error
	}{
		{"pesquisador acessa nivel 1", []int{NivelPesquisador}, NivelPesquisador, nil},
		{"pesquisador barrado no nivel 2", []int{NivelPesquisador}, NivelSupervisor, ErrNivelInsuficiente},
		{"pesquisador barrado no nivel 3", []int{NivelPesquisador}, NivelAdmin, ErrNivelInsuficiente},
		{"supervisor acessa nivel 2", []int{NivelSupervisor}, NivelSupervisor, nil},
		{"admin acessa tudo", []int{NivelAdmin}, NivelPesquisador, nil},
		{"maior role vale", []int{NivelPesquisador, NivelAdmin}, NivelSupervisor, nil},
		{"sem roles", nil, NivelPesquisador, ErrSemRole},
	}

	for _, caso := range casos {
		t.Run(caso.nome, func(t *testing.T) {
			err := AutorizarNivel(usuarioComNiveis(caso.niveis...), caso.minimo)
			if !errors.Is(err, caso.erro) {
				t.Fatalf("erro = %v, esperado %v", err, caso.erro)
			}
		})
	}
}
