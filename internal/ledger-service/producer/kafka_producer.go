package producer

import (
	"context"
	"time"

	"github.com/radieske/stream-wager-ledger/internal/shared/kafka"
	"github.com/radieske/stream-wager-ledger/pkg/contracts/events"
)

// KafkaPublisher publica os eventos de apostas, um writer por tópico.
// A chave da mensagem é o betId, então eventos da mesma aposta ficam ordenados.
// Writer nil desliga o tópico: o evento correspondente não é publicado.
type KafkaPublisher struct {
	Placed   kafka.MessageWriter
	Resolved kafka.MessageWriter
	Deleted  kafka.MessageWriter
}

func NewKafkaPublisher(placed, resolved, deleted kafka.MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{Placed: placed, Resolved: resolved, Deleted: deleted}
}

func (p *KafkaPublisher) PublishWagerPlaced(ctx context.Context, e events.WagerPlaced) error {
	if p.Placed == nil {
		return nil
	}
	e.TsUnixMs = time.Now().UnixMilli()
	return kafka.WriteJSON(ctx, p.Placed, e.BetID, e)
}

func (p *KafkaPublisher) PublishWagerResolved(ctx context.Context, e events.WagerResolved) error {
	if p.Resolved == nil {
		return nil
	}
	if e.Ts.IsZero() {
		e.Ts = time.Now().UTC()
	}
	return kafka.WriteJSON(ctx, p.Resolved, e.BetID, e)
}

func (p *KafkaPublisher) PublishWagerDeleted(ctx context.Context, e events.WagerDeleted) error {
	if p.Deleted == nil {
		return nil
	}
	if e.Ts.IsZero() {
		e.Ts = time.Now().UTC()
	}
	return kafka.WriteJSON(ctx, p.Deleted, e.BetID, e)
}
