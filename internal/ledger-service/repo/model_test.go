package repo

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/stream-wager-ledger/internal/ledger-service/errs"
)

func TestParseBetResult(t *testing.T) {
	cases := []struct {
		in   string
		want BetResult
		ok   bool
	}{
		{"Win", Win, true},
		{"lose", Lose, true},
		{" PENDING ", Pending, true},
		{"draw", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseBetResult(tc.in)
		if tc.ok != (err == nil) {
			t.Fatalf("ParseBetResult(%q) err = %v", tc.in, err)
		}
		if !tc.ok && !errors.Is(err, errs.ErrValidation) {
			t.Fatalf("ParseBetResult(%q) err = %v, want ErrValidation", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseBetResult(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTransitions(t *testing.T) {
	cases := []struct {
		from, to BetResult
		ok       bool
	}{
		{Pending, Win, true},
		{Pending, Lose, true},
		{Pending, Pending, false},
		{Win, Lose, false},
		{Win, Win, false},
		{Lose, Win, false},
		{Lose, Pending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestBetResultScan(t *testing.T) {
	var r BetResult
	if err := r.Scan([]byte("Lose")); err != nil || r != Lose {
		t.Fatalf("Scan([]byte) = %q, %v", r, err)
	}
	if err := r.Scan(nil); err == nil {
		t.Fatal("Scan(nil) must fail: bet_result is never NULL")
	}
	if err := r.Scan("maybe"); err == nil {
		t.Fatal("Scan of unknown value must fail")
	}
	if _, err := BetResult("maybe").Value(); err == nil {
		t.Fatal("Value of unknown result must fail")
	}
}

func TestBetResultJSON(t *testing.T) {
	var body struct {
		BetResult BetResult `json:"betResult"`
	}
	if err := json.Unmarshal([]byte(`{"betResult":"win"}`), &body); err != nil || body.BetResult != Win {
		t.Fatalf("unmarshal = %q, %v", body.BetResult, err)
	}
	err := json.Unmarshal([]byte(`{"betResult":"jackpot"}`), &body)
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("unmarshal unknown = %v, want ErrValidation", err)
	}
	out, _ := json.Marshal(Wager{BetResult: Lose, BetAmount: decimal.NewFromInt(5)})
	if !json.Valid(out) {
		t.Fatal("invalid json")
	}
}

func TestApplyPatch(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cur := Wager{ID: "bet-1", BetResult: Pending}

	next, err := applyPatch(cur, ResolvePatch(Win), now)
	if err != nil {
		t.Fatalf("applyPatch: %v", err)
	}
	if next.BetResult != Win || next.ResolvedAt == nil || !next.ResolvedAt.Equal(now) {
		t.Fatalf("next = %+v", next)
	}

	if _, err := applyPatch(next, ResolvePatch(Lose), now); !errors.Is(err, errs.ErrInvalidStateTransition) {
		t.Fatalf("second resolve err = %v, want ErrInvalidStateTransition", err)
	}

	bogus := BetResult("Draw")
	if _, err := applyPatch(cur, Patch{BetResult: &bogus}, now); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("bogus result err = %v, want ErrValidation", err)
	}

	same, err := applyPatch(cur, Patch{}, now)
	if err != nil || same.BetResult != Pending {
		t.Fatalf("empty patch = %+v, %v", same, err)
	}
}
