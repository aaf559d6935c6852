package repo

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/stream-wager-ledger/internal/ledger-service/errs"
)

// BetResult é o estado de resolução de uma aposta.
// Conjunto fechado: Pending, Win, Lose. Nenhum outro valor é aceito na
// leitura do banco nem na decodificação de JSON.
type BetResult string

const (
	Pending BetResult = "Pending"
	Win     BetResult = "Win"
	Lose    BetResult = "Lose"
)

// ParseBetResult aceita o nome em qualquer caixa ("win", "WIN", "Win")
func ParseBetResult(s string) (BetResult, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return Pending, nil
	case "win":
		return Win, nil
	case "lose":
		return Lose, nil
	}
	return "", fmt.Errorf("%w: unknown bet result %q", errs.ErrValidation, s)
}

func (r BetResult) Valid() bool { return r == Pending || r == Win || r == Lose }

// Terminal indica estados sem transição de saída
func (r BetResult) Terminal() bool { return r == Win || r == Lose }

// CanTransitionTo implementa a máquina de estados Pending -> Win | Lose
func (r BetResult) CanTransitionTo(next BetResult) bool {
	return r == Pending && next.Terminal()
}

func (r BetResult) String() string { return string(r) }

// Value grava o resultado como texto
func (r BetResult) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: invalid bet result %q", errs.ErrValidation, string(r))
	}
	return string(r), nil
}

// Scan rejeita NULL e valores fora do conjunto
func (r *BetResult) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("scan bet result: unsupported type %T", src)
	}
	parsed, err := ParseBetResult(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r *BetResult) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: bet result must be a string", errs.ErrValidation)
	}
	parsed, err := ParseBetResult(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Wager é a aposta persistida. Apenas BetResult (e ResolvedAt) mudam após a criação.
type Wager struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	StreamID   string          `json:"streamId"`
	BetAmount  decimal.Decimal `json:"betAmount"`
	BetResult  BetResult       `json:"betResult"`
	CreatedAt  time.Time       `json:"createdAt"`
	ResolvedAt *time.Time      `json:"resolvedAt,omitempty"`
}

// Patch é o merge parcial aceito por Store.Update.
// Expected, quando definido, condiciona a escrita ao resultado atual (compare-and-swap).
type Patch struct {
	BetResult *BetResult
	Expected  *BetResult
}

// ResolvePatch monta o patch da transição Pending -> result
func ResolvePatch(result BetResult) Patch {
	from := Pending
	return Patch{BetResult: &result, Expected: &from}
}

// Limites da coluna bet_amount NUMERIC(18,2): duas casas decimais, 16 dígitos inteiros
const betAmountScale = 2

var maxBetAmount = decimal.New(1, 16)

// prepareInsert valida os campos obrigatórios e aplica o resultado padrão
func prepareInsert(w *Wager) error {
	if w == nil {
		return fmt.Errorf("%w: wager is required", errs.ErrValidation)
	}
	if strings.TrimSpace(w.UserID) == "" {
		return fmt.Errorf("%w: userId is required", errs.ErrValidation)
	}
	if strings.TrimSpace(w.StreamID) == "" {
		return fmt.Errorf("%w: streamId is required", errs.ErrValidation)
	}
	if !w.BetAmount.IsPositive() {
		return fmt.Errorf("%w: betAmount must be positive, got %s", errs.ErrValidation, w.BetAmount)
	}
	if !w.BetAmount.Equal(w.BetAmount.Round(betAmountScale)) {
		return fmt.Errorf("%w: betAmount allows at most %d decimal places, got %s",
			errs.ErrValidation, betAmountScale, w.BetAmount)
	}
	if w.BetAmount.GreaterThanOrEqual(maxBetAmount) {
		return fmt.Errorf("%w: betAmount must be below %s, got %s", errs.ErrValidation, maxBetAmount, w.BetAmount)
	}
	// "10.500" vira "10.5": o valor devolvido é o mesmo que o banco guarda
	w.BetAmount = w.BetAmount.Round(betAmountScale)
	if w.BetResult == "" {
		w.BetResult = Pending
	}
	if !w.BetResult.Valid() {
		return fmt.Errorf("%w: invalid bet result %q", errs.ErrValidation, string(w.BetResult))
	}
	return nil
}

// applyPatch aplica o patch sobre a cópia atual, respeitando Expected
func applyPatch(cur Wager, p Patch, now time.Time) (Wager, error) {
	if p.BetResult == nil {
		return cur, nil
	}
	if !p.BetResult.Valid() {
		return cur, fmt.Errorf("%w: invalid bet result %q", errs.ErrValidation, string(*p.BetResult))
	}
	if p.Expected != nil && cur.BetResult != *p.Expected {
		return cur, fmt.Errorf("%w: bet %s is %s, expected %s",
			errs.ErrInvalidStateTransition, cur.ID, cur.BetResult, *p.Expected)
	}
	if *p.BetResult != cur.BetResult && !cur.BetResult.CanTransitionTo(*p.BetResult) {
		return cur, fmt.Errorf("%w: bet %s cannot go from %s to %s",
			errs.ErrInvalidStateTransition, cur.ID, cur.BetResult, *p.BetResult)
	}
	cur.BetResult = *p.BetResult
	if cur.BetResult.Terminal() {
		t := now
		cur.ResolvedAt = &t
	} else {
		cur.ResolvedAt = nil
	}
	return cur, nil
}
