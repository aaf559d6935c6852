package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/stream-wager-ledger/internal/ledger-service/dto"
	"github.com/radieske/stream-wager-ledger/internal/ledger-service/errs"
	"github.com/radieske/stream-wager-ledger/internal/ledger-service/leaderboard"
	"github.com/radieske/stream-wager-ledger/internal/ledger-service/repo"
	"github.com/radieske/stream-wager-ledger/internal/ledger-service/service"
	"github.com/radieske/stream-wager-ledger/internal/ledger-service/stats"
)

// Ledger é o subconjunto da fachada usado pelos handlers
type Ledger interface {
	PlaceBet(ctx context.Context, in service.PlaceBetInput) (repo.Wager, error)
	ResolveBet(ctx context.Context, in service.ResolveBetInput) (repo.Wager, error)
	GetBet(ctx context.Context, id string) (repo.Wager, error)
	ListBets(ctx context.Context) ([]repo.Wager, error)
	GetUserHistory(ctx context.Context, userID string) ([]repo.Wager, error)
	GetStreamHistory(ctx context.Context, streamID string) ([]repo.Wager, error)
	GetUserStats(ctx context.Context, userID string) (stats.AggregateStats, error)
	GetUserWinStats(ctx context.Context, userID string) (stats.AggregateStats, error)
	GetUserLossStats(ctx context.Context, userID string) (stats.AggregateStats, error)
	GetLeaderboard(ctx context.Context) ([]leaderboard.Entry, error)
	DeleteBet(ctx context.Context, id string) error
}

// API expõe o ledger via REST
type API struct {
	Log     *zap.Logger
	Ledger  Ledger
	Timeout time.Duration // deadline por requisição; zero desliga
}

// Router retorna o roteador com as rotas de apostas
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.logRequests)
	if a.Timeout > 0 {
		r.Use(middleware.Timeout(a.Timeout))
	}

	r.Route("/bets", func(r chi.Router) {
		r.Get("/", a.leaderboard)                     // ranking completo
		r.Post("/", a.placeBet)                       // cria aposta
		r.Get("/all", a.listBets)                     // todas as apostas
		r.Get("/id/{id}", a.getBet)                   // aposta por id
		r.Get("/stream/{streamId}", a.streamHistory)  // apostas de uma live
		r.Get("/totalStats/{userId}", a.userStats)    // agregado geral do usuário
		r.Get("/totalWon/{userId}", a.userWinStats)   // agregado das vitórias
		r.Get("/totalLost/{userId}", a.userLossStats) // agregado das derrotas
		r.Get("/{userId}", a.userHistory)             // apostas do usuário
		r.Patch("/{id}", a.resolveBet)                // resolve Win | Lose
		r.Delete("/{id}", a.deleteBet)                // remoção administrativa
	})
	return r
}

func (a *API) leaderboard(w http.ResponseWriter, r *http.Request) {
	out, err := a.Ledger.GetLeaderboard(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, r, fmt.Errorf("%w: bad json: %v", errs.ErrValidation, err))
		return
	}
	wg, err := a.Ledger.PlaceBet(r.Context(), service.PlaceBetInput{
		UserID:    req.UserID,
		StreamID:  req.StreamID,
		BetAmount: req.BetAmount,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wg)
}

func (a *API) listBets(w http.ResponseWriter, r *http.Request) {
	out, err := a.Ledger.ListBets(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getBet(w http.ResponseWriter, r *http.Request) {
	wg, err := a.Ledger.GetBet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wg)
}

func (a *API) streamHistory(w http.ResponseWriter, r *http.Request) {
	out, err := a.Ledger.GetStreamHistory(r.Context(), chi.URLParam(r, "streamId"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) userHistory(w http.ResponseWriter, r *http.Request) {
	out, err := a.Ledger.GetUserHistory(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) userStats(w http.ResponseWriter, r *http.Request) {
	a.writeStats(w, r, a.Ledger.GetUserStats)
}

func (a *API) userWinStats(w http.ResponseWriter, r *http.Request) {
	a.writeStats(w, r, a.Ledger.GetUserWinStats)
}

func (a *API) userLossStats(w http.ResponseWriter, r *http.Request) {
	a.writeStats(w, r, a.Ledger.GetUserLossStats)
}

func (a *API) writeStats(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (stats.AggregateStats, error)) {
	out, err := fn(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) resolveBet(w http.ResponseWriter, r *http.Request) {
	var req dto.ResolveBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, r, fmt.Errorf("%w: bad json: %v", errs.ErrValidation, err))
		return
	}
	result, err := repo.ParseBetResult(req.BetResult)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	wg, err := a.Ledger.ResolveBet(r.Context(), service.ResolveBetInput{ID: chi.URLParam(r, "id"), Result: result})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wg)
}

func (a *API) deleteBet(w http.ResponseWriter, r *http.Request) {
	if err := a.Ledger.DeleteBet(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// statusOf traduz o código do erro em status HTTP
func statusOf(kind string) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindInvalidState, errs.KindDangling:
		return http.StatusConflict
	case errs.KindDeadline:
		return http.StatusGatewayTimeout
	case errs.KindCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError é o único ponto em que falhas de requisição são logadas
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.Kind(err)
	status := statusOf(kind)

	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("requestId", middleware.GetReqID(r.Context())),
		zap.String("kind", kind),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		a.Log.Error("request failed", fields...)
	} else {
		a.Log.Debug("request rejected", fields...)
	}

	msg := err.Error()
	if kind == errs.KindInternal {
		msg = "internal error"
	}
	writeJSON(w, status, dto.ErrorResponse{Error: kind, Message: msg})
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.Log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	})
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

