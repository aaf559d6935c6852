package dto

import "github.com/shopspring/decimal"

// PlaceBetRequest aceita betAmount como número ou string ("12.50")
type PlaceBetRequest struct {
	UserID    string          `json:"userId"`
	StreamID  string          `json:"streamId"`
	BetAmount decimal.Decimal `json:"betAmount"`
}

// ResolveBetRequest é o corpo do PATCH /bets/{id}: "Win" ou "Lose", em qualquer caixa
type ResolveBetRequest struct {
	BetResult string `json:"betResult"`
}
