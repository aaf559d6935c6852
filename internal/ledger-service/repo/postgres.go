package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/stream-wager-ledger/internal/ledger-service/errs"
)

const wagerColumns = `id, user_id, stream_id, bet_amount, bet_result, created_at, resolved_at`

// Postgres implementa Store sobre a tabela wagers
type Postgres struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgres retorna uma instância do repositório de apostas
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Insert grava a aposta com status Pending (ou o informado) e devolve o id gerado
func (p *Postgres) Insert(ctx context.Context, w *Wager) (string, error) {
	if err := prepareInsert(w); err != nil {
		return "", err
	}
	id := uuid.NewString()
	createdAt := p.now()

	// aposta já resolvida na criação (importação) nasce com resolved_at = created_at
	var resolvedAt sql.NullTime
	if w.BetResult.Terminal() {
		resolvedAt = sql.NullTime{Time: createdAt, Valid: true}
	}

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO wagers (id, user_id, stream_id, bet_amount, bet_result, created_at, resolved_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		id, w.UserID, w.StreamID, w.BetAmount, w.BetResult, createdAt, resolvedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert wager: %w", err)
	}

	w.ID = id
	w.CreatedAt = createdAt
	w.ResolvedAt = nil
	if resolvedAt.Valid {
		t := createdAt
		w.ResolvedAt = &t
	}
	return id, nil
}

// Get retorna a aposta pelo id
func (p *Postgres) Get(ctx context.Context, id string) (Wager, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+wagerColumns+` FROM wagers WHERE id=$1`, id)
	w, err := scanWager(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Wager{}, fmt.Errorf("wager %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return Wager{}, fmt.Errorf("get wager %s: %w", id, err)
	}
	return w, nil
}

func (p *Postgres) FindByStream(ctx context.Context, streamID string) ([]Wager, error) {
	return p.query(ctx, `SELECT `+wagerColumns+` FROM wagers WHERE stream_id=$1 ORDER BY created_at, id`, streamID)
}

func (p *Postgres) FindByUser(ctx context.Context, userID string) ([]Wager, error) {
	return p.query(ctx, `SELECT `+wagerColumns+` FROM wagers WHERE user_id=$1 ORDER BY created_at, id`, userID)
}

func (p *Postgres) FindByResult(ctx context.Context, result BetResult) ([]Wager, error) {
	return p.query(ctx, `SELECT `+wagerColumns+` FROM wagers WHERE bet_result=$1 ORDER BY created_at, id`, result)
}

func (p *Postgres) List(ctx context.Context) ([]Wager, error) {
	return p.query(ctx, `SELECT `+wagerColumns+` FROM wagers ORDER BY created_at, id`)
}

// Update aplica o patch dentro de uma transação com lock pessimista na linha.
// A verificação de Patch.Expected e a escrita acontecem sob o mesmo lock,
// então resoluções concorrentes da mesma aposta não se sobrepõem.
func (p *Postgres) Update(ctx context.Context, id string, patch Patch) (Wager, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return Wager{}, fmt.Errorf("begin update %s: %w", id, err)
	}
	defer tx.Rollback()

	cur, err := scanWager(tx.QueryRowContext(ctx,
		`SELECT `+wagerColumns+` FROM wagers WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Wager{}, fmt.Errorf("wager %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return Wager{}, fmt.Errorf("lock wager %s: %w", id, err)
	}

	next, err := applyPatch(cur, patch, p.now())
	if err != nil {
		return Wager{}, err
	}
	if next.BetResult == cur.BetResult && patch.Expected == nil {
		// nada a gravar; o lock é liberado no rollback
		return cur, nil
	}

	var resolvedAt sql.NullTime
	if next.ResolvedAt != nil {
		resolvedAt = sql.NullTime{Time: *next.ResolvedAt, Valid: true}
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE wagers SET bet_result=$1, resolved_at=$2 WHERE id=$3`,
		next.BetResult, resolvedAt, id); err != nil {
		return Wager{}, fmt.Errorf("update wager %s: %w", id, err)
	}

	if err = tx.Commit(); err != nil {
		return Wager{}, fmt.Errorf("commit update %s: %w", id, err)
	}
	return next, nil
}

// Delete remove a aposta; um segundo delete do mesmo id devolve ErrNotFound
func (p *Postgres) Delete(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM wagers WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete wager %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete wager %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("wager %s: %w", id, errs.ErrNotFound)
	}
	return nil
}

func (p *Postgres) query(ctx context.Context, q string, args ...any) ([]Wager, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query wagers: %w", err)
	}
	defer rows.Close()

	out := []Wager{}
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wager: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wagers: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWager(s rowScanner) (Wager, error) {
	var (
		w          Wager
		resolvedAt sql.NullTime
	)
	if err := s.Scan(&w.ID, &w.UserID, &w.StreamID, &w.BetAmount, &w.BetResult, &w.CreatedAt, &resolvedAt); err != nil {
		return Wager{}, err
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		w.ResolvedAt = &t
	}
	return w, nil
}
