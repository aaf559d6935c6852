package events

import "github.com/shopspring/decimal"

// Evento publicado no tópico "wager_placed" após a aposta ser gravada.
type WagerPlaced struct {
	BetID     string          `json:"bet_id"`
	UserID    string          `json:"user_id"`
	StreamID  string          `json:"stream_id"`
	BetAmount decimal.Decimal `json:"bet_amount"`
	TsUnixMs  int64           `json:"ts_unix_ms"`
}
