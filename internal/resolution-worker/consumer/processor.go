package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/stream-wager-ledger/internal/ledger-service/errs"
	"github.com/radieske/stream-wager-ledger/internal/ledger-service/repo"
	"github.com/radieske/stream-wager-ledger/internal/ledger-service/service"
	"github.com/radieske/stream-wager-ledger/internal/shared/kafka"
	"github.com/radieske/stream-wager-ledger/pkg/contracts/events"
)

// Resolver é a operação do ledger que o worker aplica
type Resolver interface {
	ResolveBet(ctx context.Context, in service.ResolveBetInput) (repo.Wager, error)
}

const defaultRetries = 3

// Processor consome pedidos de resolução e aplica no ledger.
// Falhas permanentes vão direto para a DLQ; transitórias são refeitas
// até Retries vezes antes da DLQ.
type Processor struct {
	Log    *zap.Logger
	Reader kafka.MessageReader
	DLQ    kafka.MessageWriter // nil: falhas só são logadas
	Ledger Resolver

	// Retries zero usa 3; Backoff nil usa 300ms * tentativa
	Retries int
	Backoff func(attempt int) time.Duration

	OnConsumed   func()       // métricas (counter++)
	OnResolved   func()       // métricas
	OnDeadLetter func(string) // métricas por kind
	OnError      func(string) // métricas por fase
}

// Run inicia o loop principal. O offset só é confirmado depois que Handle
// aplicou o pedido ou o encaminhou para a DLQ; sem isso a mensagem fica para
// ser relida. Retorna com erro quando a DLQ está indisponível.
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := kafka.FetchNext(ctx, p.Reader)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka fetch failed", zap.Error(err))
			p.onError("read")
			if !sleep(ctx, 500*time.Millisecond) {
				return ctx.Err()
			}
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		if err := p.Handle(ctx, m.Value); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Error("resolution request left uncommitted",
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err),
			)
			return fmt.Errorf("handle message at offset %d: %w", m.Offset, err)
		}

		if err := p.Reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// resolução é idempotente por CAS: reprocessar só gera invalid_state_transition
			p.onError("commit")
			p.Log.Warn("kafka commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

// Handle processa uma mensagem. Só devolve erro quando o pedido não foi
// aplicado nem encaminhado para a DLQ (contexto encerrado ou DLQ indisponível).
func (p *Processor) Handle(ctx context.Context, payload []byte) error {
	var req events.ResolutionRequested
	if err := json.Unmarshal(payload, &req); err != nil {
		p.onError("decode")
		return p.deadLetter(ctx, payload, fmt.Errorf("%w: decode: %v", errs.ErrValidation, err), 0)
	}
	result, err := repo.ParseBetResult(req.BetResult)
	if err != nil {
		p.onError("decode")
		return p.deadLetter(ctx, payload, err, 0)
	}
	in := service.ResolveBetInput{ID: strings.TrimSpace(req.BetID), Result: result}

	retries := p.Retries
	if retries <= 0 {
		retries = defaultRetries
	}
	attempts := 0
	for {
		attempts++
		_, err = p.Ledger.ResolveBet(ctx, in)
		if err == nil {
			p.Log.Info("bet resolved",
				zap.String("betId", in.ID),
				zap.String("betResult", result.String()),
				zap.String("source", req.Source),
				zap.Int("attempts", attempts),
			)
			if p.OnResolved != nil {
				p.OnResolved()
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errs.Permanent(err) || attempts > retries {
			break
		}
		p.onError("resolve")
		p.Log.Warn("resolve failed, retrying",
			zap.String("betId", in.ID),
			zap.Int("attempt", attempts),
			zap.Error(err),
		)
		if !sleep(ctx, p.backoff(attempts)) {
			return ctx.Err()
		}
	}
	return p.deadLetter(ctx, payload, err, attempts)
}

func (p *Processor) deadLetter(ctx context.Context, payload []byte, cause error, attempts int) error {
	kind := errs.Kind(cause)
	p.Log.Error("resolution request dead-lettered",
		zap.String("kind", kind),
		zap.Int("attempts", attempts),
		zap.ByteString("payload", payload),
		zap.Error(cause),
	)
	if p.OnDeadLetter != nil {
		p.OnDeadLetter(kind)
	}
	if p.DLQ == nil {
		return nil
	}

	raw := json.RawMessage(payload)
	if !json.Valid(payload) {
		// payload ilegível vai como string JSON para o envelope continuar válido
		raw, _ = json.Marshal(string(payload))
	}
	env := events.ResolutionFailed{
		Payload:  raw,
		Kind:     kind,
		Reason:   cause.Error(),
		Attempts: attempts,
		Ts:       time.Now().UTC(),
	}
	if err := kafka.WriteJSON(ctx, p.DLQ, dlqKey(payload), env); err != nil {
		p.onError("dlq")
		p.Log.Error("dlq write failed", zap.Error(err))
		return fmt.Errorf("write dlq: %w", err)
	}
	return nil
}

func (p *Processor) backoff(attempt int) time.Duration {
	if p.Backoff != nil {
		return p.Backoff(attempt)
	}
	return time.Duration(300*attempt) * time.Millisecond
}

func (p *Processor) onError(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

// dlqKey usa o betId quando o payload permite, mantendo a ordem por aposta
func dlqKey(payload []byte) string {
	var req events.ResolutionRequested
	if json.Unmarshal(payload, &req) == nil && req.BetID != "" {
		return req.BetID
	}
	return "unknown"
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
