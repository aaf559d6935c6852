package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/radieske/stream-wager-ledger/internal/ledger-service/errs"
)

// Postgres lê nomes da tabela users
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) ResolveName(ctx context.Context, userID string) (Name, error) {
	var n Name
	err := p.db.QueryRowContext(ctx,
		`SELECT first_name, last_name FROM users WHERE user_id=$1`, userID,
	).Scan(&n.FirstName, &n.LastName)
	if errors.Is(err, sql.ErrNoRows) {
		return Name{}, fmt.Errorf("user %s: %w", userID, errs.ErrNotFound)
	}
	if err != nil {
		return Name{}, fmt.Errorf("resolve user %s: %w", userID, err)
	}
	return n, nil
}
