package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Evento emitido quando uma aposta sai de Pending para Win ou Lose.
type WagerResolved struct {
	BetID     string          `json:"bet_id"`
	UserID    string          `json:"user_id"`
	StreamID  string          `json:"stream_id"`
	BetAmount decimal.Decimal `json:"bet_amount"`
	BetResult string          `json:"bet_result"` // "Win" | "Lose"
	Ts        time.Time       `json:"ts"`
}

// Evento emitido após a remoção administrativa de uma aposta.
type WagerDeleted struct {
	BetID string    `json:"bet_id"`
	Ts    time.Time `json:"ts"`
}
