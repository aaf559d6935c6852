// Package stats calcula agregados por usuário a partir do histórico de apostas.
// Funções puras: nenhuma leitura de banco, nenhum estado entre chamadas.
package stats

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/stream-wager-ledger/internal/ledger-service/repo"
)

// AggregateStats resume um subconjunto das apostas de um usuário
type AggregateStats struct {
	UserID    string          `json:"userId"`
	Count     int             `json:"count"`
	TotalBet  decimal.Decimal `json:"totalBet"`
	AvgBet    decimal.Decimal `json:"avgBet"`
	MinBet    decimal.Decimal `json:"minBet"`
	MaxBet    decimal.Decimal `json:"maxBet"`
	WinCount  int             `json:"winCount"`
	LossCount int             `json:"lossCount"`
}

// Predicate seleciona as apostas que entram no agregado
type Predicate func(repo.Wager) bool

func All(repo.Wager) bool { return true }

// ByResult restringe o agregado a um resultado
func ByResult(r repo.BetResult) Predicate {
	return func(w repo.Wager) bool { return w.BetResult == r }
}

// avgPlaces é a escala da média (centavos)
const avgPlaces = 2

// Aggregate varre as apostas uma vez. Sem apostas selecionadas o resultado
// é o agregado zerado.
func Aggregate(userID string, wagers []repo.Wager, keep Predicate) AggregateStats {
	if keep == nil {
		keep = All
	}
	out := AggregateStats{
		UserID:   userID,
		TotalBet: decimal.Zero,
		AvgBet:   decimal.Zero,
		MinBet:   decimal.Zero,
		MaxBet:   decimal.Zero,
	}
	for _, w := range wagers {
		if !keep(w) {
			continue
		}
		add(&out, w)
	}
	finish(&out)
	return out
}

// GroupBy agrega por userId, na ordem em que cada usuário aparece
func GroupBy(wagers []repo.Wager, keep Predicate) []AggregateStats {
	if keep == nil {
		keep = All
	}
	idx := make(map[string]int)
	out := []AggregateStats{}
	for _, w := range wagers {
		if !keep(w) {
			continue
		}
		i, ok := idx[w.UserID]
		if !ok {
			i = len(out)
			idx[w.UserID] = i
			out = append(out, AggregateStats{
				UserID:   w.UserID,
				TotalBet: decimal.Zero,
				AvgBet:   decimal.Zero,
				MinBet:   decimal.Zero,
				MaxBet:   decimal.Zero,
			})
		}
		add(&out[i], w)
	}
	for i := range out {
		finish(&out[i])
	}
	return out
}

func add(s *AggregateStats, w repo.Wager) {
	if s.Count == 0 || w.BetAmount.LessThan(s.MinBet) {
		s.MinBet = w.BetAmount
	}
	if s.Count == 0 || w.BetAmount.GreaterThan(s.MaxBet) {
		s.MaxBet = w.BetAmount
	}
	s.Count++
	s.TotalBet = s.TotalBet.Add(w.BetAmount)
	switch w.BetResult {
	case repo.Win:
		s.WinCount++
	case repo.Lose:
		s.LossCount++
	}
}

func finish(s *AggregateStats) {
	if s.Count == 0 {
		return
	}
	s.AvgBet = s.TotalBet.DivRound(decimal.NewFromInt(int64(s.Count)), avgPlaces)
}
