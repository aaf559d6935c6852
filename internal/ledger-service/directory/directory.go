// Package directory resolve userId para nome de exibição.
// Fontes: tabela users do Postgres ou um serviço de perfis via HTTP,
// opcionalmente com cache read-through no Redis.
package directory

import (
	"context"
	"strings"
)

// Name é o nome de exibição de um usuário
type Name struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (n Name) Full() string {
	return strings.TrimSpace(n.FirstName + " " + n.LastName)
}

// Resolver é o contrato consumido pelo ranking.
// Usuário inexistente devolve erro que casa com errs.ErrNotFound.
type Resolver interface {
	ResolveName(ctx context.Context, userID string) (Name, error)
}
