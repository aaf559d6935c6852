// Package service é a fachada do ledger: valida a entrada, orquestra store,
// agregador e ranking, e aplica a máquina de estados de resolução.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/stream-wager-ledger/internal/ledger-service/directory"
	"github.com/radieske/stream-wager-ledger/internal/ledger-service/errs"
	"github.com/radieske/stream-wager-ledger/internal/ledger-service/leaderboard"
	"github.com/radieske/stream-wager-ledger/internal/ledger-service/repo"
	"github.com/radieske/stream-wager-ledger/internal/ledger-service/stats"
	"github.com/radieske/stream-wager-ledger/internal/shared/metrics"
	"github.com/radieske/stream-wager-ledger/pkg/contracts/events"
)

// Publisher recebe os eventos de domínio após cada mutação gravada
type Publisher interface {
	PublishWagerPlaced(ctx context.Context, e events.WagerPlaced) error
	PublishWagerResolved(ctx context.Context, e events.WagerResolved) error
	PublishWagerDeleted(ctx context.Context, e events.WagerDeleted) error
}

// Observer é chamado ao fim de cada operação (err nil em caso de sucesso)
type Observer func(op string, err error, started time.Time)

// MetricsObserver liga o Observer aos coletores Prometheus
func MetricsObserver(c *metrics.LedgerCollectors) Observer {
	return func(op string, err error, started time.Time) {
		outcome := "ok"
		if err != nil {
			outcome = errs.Kind(err)
		}
		c.Observe(op, outcome, started)
	}
}

type PlaceBetInput struct {
	UserID    string          `json:"userId" validate:"required"`
	StreamID  string          `json:"streamId" validate:"required"`
	BetAmount decimal.Decimal `json:"betAmount" validate:"gt=0"`
}

type ResolveBetInput struct {
	ID     string         `json:"id" validate:"required"`
	Result repo.BetResult `json:"betResult" validate:"oneof=Win Lose"`
}

type Ledger struct {
	log      *zap.Logger
	store    repo.Store
	ranker   *leaderboard.Ranker
	publ     Publisher
	observe  Observer
	validate *validator.Validate
}

type Option func(*Ledger)

// WithPublisher habilita a publicação dos eventos de domínio
func WithPublisher(p Publisher) Option { return func(l *Ledger) { l.publ = p } }

func WithObserver(o Observer) Option { return func(l *Ledger) { l.observe = o } }

func New(log *zap.Logger, store repo.Store, dir directory.Resolver, opts ...Option) *Ledger {
	l := &Ledger{
		log:      log,
		store:    store,
		ranker:   leaderboard.NewRanker(dir),
		observe:  func(string, error, time.Time) {},
		validate: newValidator(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// PlaceBet grava uma nova aposta em Pending
func (l *Ledger) PlaceBet(ctx context.Context, in PlaceBetInput) (w repo.Wager, err error) {
	defer l.track("placeBet", time.Now(), &err)

	in.UserID = strings.TrimSpace(in.UserID)
	in.StreamID = strings.TrimSpace(in.StreamID)
	if err = l.validate.StructCtx(ctx, in); err != nil {
		return repo.Wager{}, fmt.Errorf("place bet: %w", validationError(err))
	}

	w = repo.Wager{UserID: in.UserID, StreamID: in.StreamID, BetAmount: in.BetAmount, BetResult: repo.Pending}
	if _, err = l.store.Insert(ctx, &w); err != nil {
		return repo.Wager{}, fmt.Errorf("place bet: %w", err)
	}
	l.log.Debug("bet placed",
		zap.String("betId", w.ID),
		zap.String("userId", w.UserID),
		zap.String("streamId", w.StreamID),
		zap.String("betAmount", w.BetAmount.String()),
	)

	if l.publ != nil {
		l.published("wager_placed", w.ID, l.publ.PublishWagerPlaced(ctx, events.WagerPlaced{
			BetID:     w.ID,
			UserID:    w.UserID,
			StreamID:  w.StreamID,
			BetAmount: w.BetAmount,
		}))
	}
	return w, nil
}

// ResolveBet move a aposta de Pending para Win ou Lose, exatamente uma vez.
// A checagem do estado atual acontece dentro do store, junto da escrita.
func (l *Ledger) ResolveBet(ctx context.Context, in ResolveBetInput) (w repo.Wager, err error) {
	defer l.track("resolveBet", time.Now(), &err)

	if err = l.validate.StructCtx(ctx, in); err != nil {
		return repo.Wager{}, fmt.Errorf("resolve bet %s: %w", in.ID, validationError(err))
	}

	w, err = l.store.Update(ctx, in.ID, repo.ResolvePatch(in.Result))
	if err != nil {
		return repo.Wager{}, fmt.Errorf("resolve bet %s: %w", in.ID, err)
	}
	l.log.Debug("bet resolved", zap.String("betId", w.ID), zap.String("betResult", w.BetResult.String()))

	if l.publ != nil {
		ts := time.Now().UTC()
		if w.ResolvedAt != nil {
			ts = *w.ResolvedAt
		}
		l.published("wager_resolved", w.ID, l.publ.PublishWagerResolved(ctx, events.WagerResolved{
			BetID:     w.ID,
			UserID:    w.UserID,
			StreamID:  w.StreamID,
			BetAmount: w.BetAmount,
			BetResult: w.BetResult.String(),
			Ts:        ts,
		}))
	}
	return w, nil
}

func (l *Ledger) GetBet(ctx context.Context, id string) (w repo.Wager, err error) {
	defer l.track("getBet", time.Now(), &err)

	w, err = l.store.Get(ctx, id)
	if err != nil {
		return repo.Wager{}, fmt.Errorf("get bet: %w", err)
	}
	return w, nil
}

func (l *Ledger) ListBets(ctx context.Context) (ws []repo.Wager, err error) {
	defer l.track("listBets", time.Now(), &err)

	ws, err = l.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bets: %w", err)
	}
	return ws, nil
}

func (l *Ledger) GetUserHistory(ctx context.Context, userID string) (ws []repo.Wager, err error) {
	defer l.track("getUserHistory", time.Now(), &err)

	ws, err = l.store.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user history %s: %w", userID, err)
	}
	return ws, nil
}

func (l *Ledger) GetStreamHistory(ctx context.Context, streamID string) (ws []repo.Wager, err error) {
	defer l.track("getStreamHistory", time.Now(), &err)

	ws, err = l.store.FindByStream(ctx, streamID)
	if err != nil {
		return nil, fmt.Errorf("stream history %s: %w", streamID, err)
	}
	return ws, nil
}

// GetUserStats agrega todas as apostas do usuário; sem apostas devolve zeros
func (l *Ledger) GetUserStats(ctx context.Context, userID string) (stats.AggregateStats, error) {
	return l.userStats(ctx, "getUserStats", userID, stats.All)
}

func (l *Ledger) GetUserWinStats(ctx context.Context, userID string) (stats.AggregateStats, error) {
	return l.userStats(ctx, "getUserWinStats", userID, stats.ByResult(repo.Win))
}

func (l *Ledger) GetUserLossStats(ctx context.Context, userID string) (stats.AggregateStats, error) {
	return l.userStats(ctx, "getUserLossStats", userID, stats.ByResult(repo.Lose))
}

func (l *Ledger) userStats(ctx context.Context, op, userID string, keep stats.Predicate) (s stats.AggregateStats, err error) {
	defer l.track(op, time.Now(), &err)

	ws, err := l.store.FindByUser(ctx, userID)
	if err != nil {
		return stats.AggregateStats{}, fmt.Errorf("%s %s: %w", op, userID, err)
	}
	return stats.Aggregate(userID, ws, keep), nil
}

// GetLeaderboard recalcula o ranking completo a partir das apostas vencedoras
func (l *Ledger) GetLeaderboard(ctx context.Context) (out []leaderboard.Entry, err error) {
	defer l.track("getLeaderboard", time.Now(), &err)

	ws, err := l.store.FindByResult(ctx, repo.Win)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	out, err = l.ranker.Rank(ctx, ws)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return out, nil
}

// DeleteBet remove a aposta (operação administrativa)
func (l *Ledger) DeleteBet(ctx context.Context, id string) (err error) {
	defer l.track("deleteBet", time.Now(), &err)

	if err = l.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete bet %s: %w", id, err)
	}
	l.log.Debug("bet deleted", zap.String("betId", id))

	if l.publ != nil {
		l.published("wager_deleted", id, l.publ.PublishWagerDeleted(ctx, events.WagerDeleted{
			BetID: id,
			Ts:    time.Now().UTC(),
		}))
	}
	return nil
}

func (l *Ledger) track(op string, started time.Time, err *error) {
	l.observe(op, *err, started)
}

// published registra a falha de publicação sem desfazer a mutação já gravada
func (l *Ledger) published(event, betID string, err error) {
	l.observe("publish_"+event, err, time.Now())
	if err != nil {
		l.log.Warn("event publish failed",
			zap.String("event", event),
			zap.String("betId", betID),
			zap.Error(err),
		)
	}
}
