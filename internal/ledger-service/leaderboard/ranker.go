// Package leaderboard monta o ranking global de ganhos.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/radieske/stream-wager-ledger/internal/ledger-service/directory"
	"github.com/radieske/stream-wager-ledger/internal/ledger-service/errs"
	"github.com/radieske/stream-wager-ledger/internal/ledger-service/repo"
	"github.com/radieske/stream-wager-ledger/internal/ledger-service/stats"
)

// Entry é uma linha do ranking; TotalWon soma o valor apostado nas apostas vencedoras
type Entry struct {
	UserID   string          `json:"userId"`
	UserName string          `json:"userName"`
	TotalWon decimal.Decimal `json:"totalWon"`
	WinCount int             `json:"winCount"`
}

type Ranker struct {
	dir directory.Resolver
}

func NewRanker(dir directory.Resolver) *Ranker { return &Ranker{dir: dir} }

// Rank ordena por TotalWon desc, empate por userId asc, e resolve os nomes.
// Usuário ausente no diretório aborta o ranking inteiro com ErrDanglingReference.
func (r *Ranker) Rank(ctx context.Context, wagers []repo.Wager) ([]Entry, error) {
	grouped := stats.GroupBy(wagers, stats.ByResult(repo.Win))
	sort.SliceStable(grouped, func(i, j int) bool {
		if c := grouped[i].TotalBet.Cmp(grouped[j].TotalBet); c != 0 {
			return c > 0
		}
		return grouped[i].UserID < grouped[j].UserID
	})

	out := make([]Entry, 0, len(grouped))
	for _, g := range grouped {
		name, err := r.dir.ResolveName(ctx, g.UserID)
		if errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %s has winning wagers but no directory entry",
				errs.ErrDanglingReference, g.UserID)
		}
		if err != nil {
			return nil, fmt.Errorf("resolve name for %s: %w", g.UserID, err)
		}
		out = append(out, Entry{
			UserID:   g.UserID,
			UserName: name.Full(),
			TotalWon: g.TotalBet,
			WinCount: g.WinCount,
		})
	}
	return out, nil
}
