package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/stream-wager-ledger/internal/ledger-service/directory"
	"github.com/radieske/stream-wager-ledger/internal/ledger-service/errs"
	"github.com/radieske/stream-wager-ledger/internal/ledger-service/repo"
	"github.com/radieske/stream-wager-ledger/internal/ledger-service/service"
	"github.com/radieske/stream-wager-ledger/pkg/contracts/events"
)

type captureWriter struct {
	mu   sync.Mutex
	msgs []kafkago.Message
	err  error
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func (c *captureWriter) envelopes(t *testing.T) []events.ResolutionFailed {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]events.ResolutionFailed, 0, len(c.msgs))
	for _, m := range c.msgs {
		var env events.ResolutionFailed
		if err := json.Unmarshal(m.Value, &env); err != nil {
			t.Fatalf("dlq envelope: %v", err)
		}
		out = append(out, env)
	}
	return out
}

// queueReader entrega as mensagens em ordem e depois bloqueia até o cancelamento.
// Guarda os offsets confirmados.
type queueReader struct {
	msgs chan kafkago.Message

	mu          sync.Mutex
	committed   []int64
	commitErr   error
	afterCommit func(n int)
}

func newQueueReader(payloads ...string) *queueReader {
	r := &queueReader{msgs: make(chan kafkago.Message, len(payloads))}
	for i, p := range payloads {
		r.msgs <- kafkago.Message{Offset: int64(i), Value: []byte(p)}
	}
	return r
}

func (r *queueReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafkago.Message{}, ctx.Err()
	}
}

func (r *queueReader) CommitMessages(ctx context.Context, msgs ...kafkago.Message) error {
	if r.commitErr != nil {
		return r.commitErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	n := len(r.committed)
	r.mu.Unlock()
	if r.afterCommit != nil {
		r.afterCommit(n)
	}
	return nil
}

func (r *queueReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type flakyResolver struct {
	failures int
	err      error
	calls    int
}

func (f *flakyResolver) ResolveBet(_ context.Context, in service.ResolveBetInput) (repo.Wager, error) {
	f.calls++
	if f.calls <= f.failures {
		return repo.Wager{}, f.err
	}
	return repo.Wager{ID: in.ID, BetResult: in.Result}, nil
}

type noDirectory struct{}

func (noDirectory) ResolveName(context.Context, string) (directory.Name, error) {
	return directory.Name{}, errs.ErrNotFound
}

func noWait(int) time.Duration { return 0 }

func request(betID, result string) string {
	b, _ := json.Marshal(events.ResolutionRequested{BetID: betID, BetResult: result, Source: "test"})
	return string(b)
}

func TestHandleResolvesBet(t *testing.T) {
	ledger := service.New(zap.NewNop(), repo.NewMemory(), noDirectory{})
	w, err := ledger.PlaceBet(context.Background(), service.PlaceBetInput{UserID: "u1", StreamID: "s1", BetAmount: decimal.NewFromInt(10)})
	if err != nil {
		t.Fatal(err)
	}
	dlq := &captureWriter{}
	resolved := 0
	p := &Processor{Log: zap.NewNop(), DLQ: dlq, Ledger: ledger, OnResolved: func() { resolved++ }}

	if err := p.Handle(context.Background(), []byte(request(w.ID, "win"))); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	got, _ := ledger.GetBet(context.Background(), w.ID)
	if got.BetResult != repo.Win {
		t.Fatalf("BetResult = %s, want Win", got.BetResult)
	}
	if resolved != 1 || len(dlq.msgs) != 0 {
		t.Fatalf("resolved = %d, dlq = %d", resolved, len(dlq.msgs))
	}
}

func TestHandlePermanentFailuresGoStraightToDLQ(t *testing.T) {
	ledger := service.New(zap.NewNop(), repo.NewMemory(), noDirectory{})
	w, _ := ledger.PlaceBet(context.Background(), service.PlaceBetInput{UserID: "u1", StreamID: "s1", BetAmount: decimal.NewFromInt(10)})
	if _, err := ledger.ResolveBet(context.Background(), service.ResolveBetInput{ID: w.ID, Result: repo.Lose}); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name    string
		payload string
		kind    string
	}{
		{"not json", `{"bet_id":`, errs.KindValidation},
		{"unknown result", request(w.ID, "Draw"), errs.KindValidation},
		{"pending result", request(w.ID, "Pending"), errs.KindValidation},
		{"missing bet", request("missing", "Win"), errs.KindNotFound},
		{"already resolved", request(w.ID, "Win"), errs.KindInvalidState},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dlq := &captureWriter{}
			var dead []string
			p := &Processor{
				Log:          zap.NewNop(),
				DLQ:          dlq,
				Ledger:       ledger,
				Backoff:      noWait,
				OnDeadLetter: func(kind string) { dead = append(dead, kind) },
			}
			if err := p.Handle(context.Background(), []byte(tc.payload)); err != nil {
				t.Fatalf("Handle: %v", err)
			}
			envs := dlq.envelopes(t)
			if len(envs) != 1 || envs[0].Kind != tc.kind {
				t.Fatalf("dlq = %+v, want one %s", envs, tc.kind)
			}
			if envs[0].Attempts > 1 {
				t.Fatalf("permanent failure retried: attempts = %d", envs[0].Attempts)
			}
			if len(dead) != 1 || dead[0] != tc.kind {
				t.Fatalf("OnDeadLetter = %v", dead)
			}
		})
	}

	got, _ := ledger.GetBet(context.Background(), w.ID)
	if got.BetResult != repo.Lose {
		t.Fatalf("BetResult = %s, want Lose", got.BetResult)
	}
}

func TestHandleRetriesTransientFailures(t *testing.T) {
	boom := errors.New("connection reset by peer")

	t.Run("recovers", func(t *testing.T) {
		res := &flakyResolver{failures: 2, err: boom}
		dlq := &captureWriter{}
		p := &Processor{Log: zap.NewNop(), DLQ: dlq, Ledger: res, Backoff: noWait}
		if err := p.Handle(context.Background(), []byte(request("bet-1", "Win"))); err != nil {
			t.Fatalf("Handle: %v", err)
		}
		if res.calls != 3 || len(dlq.msgs) != 0 {
			t.Fatalf("calls = %d, dlq = %d", res.calls, len(dlq.msgs))
		}
	})

	t.Run("gives up after retries", func(t *testing.T) {
		res := &flakyResolver{failures: 100, err: boom}
		dlq := &captureWriter{}
		p := &Processor{Log: zap.NewNop(), DLQ: dlq, Ledger: res, Backoff: noWait}
		if err := p.Handle(context.Background(), []byte(request("bet-1", "Win"))); err != nil {
			t.Fatalf("Handle: %v", err)
		}
		if res.calls != 4 {
			t.Fatalf("calls = %d, want 1 + 3 retries", res.calls)
		}
		envs := dlq.envelopes(t)
		if len(envs) != 1 || envs[0].Kind != errs.KindInternal || envs[0].Attempts != 4 {
			t.Fatalf("dlq = %+v", envs)
		}
		if string(dlq.msgs[0].Key) != "bet-1" {
			t.Fatalf("dlq key = %q, want bet-1", dlq.msgs[0].Key)
		}
		var original events.ResolutionRequested
		if err := json.Unmarshal(envs[0].Payload, &original); err != nil || original.BetID != "bet-1" {
			t.Fatalf("payload = %s (%v)", envs[0].Payload, err)
		}
	})
}

func TestHandleDLQWriteFailure(t *testing.T) {
	p := &Processor{
		Log:    zap.NewNop(),
		DLQ:    &captureWriter{err: errors.New("broker down")},
		Ledger: &flakyResolver{failures: 1, err: errs.ErrNotFound},
	}
	if err := p.Handle(context.Background(), []byte(request("bet-1", "Win"))); err == nil {
		t.Fatal("expected error when the dlq write fails")
	}
}

func TestHandleStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	res := &flakyResolver{failures: 100, err: errors.New("timeout")}
	dlq := &captureWriter{}
	p := &Processor{
		Log:     zap.NewNop(),
		DLQ:     dlq,
		Ledger:  res,
		Backoff: func(int) time.Duration { cancel(); return time.Hour },
	}
	if err := p.Handle(ctx, []byte(request("bet-1", "Win"))); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(dlq.msgs) != 0 {
		t.Fatal("canceled request must not be dead-lettered")
	}
}

func TestRunCommitsHandledMessages(t *testing.T) {
	ledger := service.New(zap.NewNop(), repo.NewMemory(), noDirectory{})
	a, _ := ledger.PlaceBet(context.Background(), service.PlaceBetInput{UserID: "u1", StreamID: "s1", BetAmount: decimal.NewFromInt(10)})
	b, _ := ledger.PlaceBet(context.Background(), service.PlaceBetInput{UserID: "u2", StreamID: "s1", BetAmount: decimal.NewFromInt(20)})

	reader := newQueueReader(request(a.ID, "Win"), request(b.ID, "Lose"), "garbage")
	dlq := &captureWriter{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader.afterCommit = func(n int) {
		if n == 3 {
			cancel()
		}
	}
	var consumed, resolved, dead int
	p := &Processor{
		Log:          zap.NewNop(),
		Reader:       reader,
		DLQ:          dlq,
		Ledger:       ledger,
		Backoff:      noWait,
		OnConsumed:   func() { consumed++ },
		OnResolved:   func() { resolved++ },
		OnDeadLetter: func(string) { dead++ },
	}

	if err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
	if consumed != 3 || resolved != 2 || dead != 1 {
		t.Fatalf("consumed/resolved/dead = %d/%d/%d", consumed, resolved, dead)
	}
	gotA, _ := ledger.GetBet(context.Background(), a.ID)
	gotB, _ := ledger.GetBet(context.Background(), b.ID)
	if gotA.BetResult != repo.Win || gotB.BetResult != repo.Lose {
		t.Fatalf("results = %s/%s", gotA.BetResult, gotB.BetResult)
	}
	// a mensagem inválida só é confirmada depois de chegar na DLQ
	if got := reader.commits(); len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("committed offsets = %v, want [0 1 2]", got)
	}
	if len(dlq.envelopes(t)) != 1 {
		t.Fatalf("dlq = %d, want 1", len(dlq.msgs))
	}
}

func TestRunDoesNotCommitOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := newQueueReader(request("bet-1", "Win"))
	dlq := &captureWriter{}
	p := &Processor{
		Log:     zap.NewNop(),
		Reader:  reader,
		DLQ:     dlq,
		Ledger:  &flakyResolver{failures: 100, err: errors.New("timeout")},
		Backoff: func(int) time.Duration { cancel(); return time.Hour },
	}

	if err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
	if got := reader.commits(); len(got) != 0 {
		t.Fatalf("committed offsets = %v, want none", got)
	}
	if len(dlq.msgs) != 0 {
		t.Fatal("canceled request must not be dead-lettered")
	}
}

func TestRunStopsWhenDLQUnavailable(t *testing.T) {
	reader := newQueueReader("garbage", request("bet-2", "Win"))
	res := &flakyResolver{}
	consumed := 0
	var stages []string
	p := &Processor{
		Log:        zap.NewNop(),
		Reader:     reader,
		DLQ:        &captureWriter{err: errors.New("broker down")},
		Ledger:     res,
		Backoff:    noWait,
		OnConsumed: func() { consumed++ },
		OnError:    func(stage string) { stages = append(stages, stage) },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := p.Run(ctx)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run err = %v, want dlq failure", err)
	}
	if got := reader.commits(); len(got) != 0 {
		t.Fatalf("committed offsets = %v, want none", got)
	}
	if consumed != 1 || res.calls != 0 {
		t.Fatalf("consumed = %d, resolver calls = %d; worker must stop at the failed message", consumed, res.calls)
	}
	if len(stages) != 2 || stages[0] != "decode" || stages[1] != "dlq" {
		t.Fatalf("error stages = %v", stages)
	}
}

func TestRunKeepsGoingWhenCommitFails(t *testing.T) {
	ledger := service.New(zap.NewNop(), repo.NewMemory(), noDirectory{})
	a, _ := ledger.PlaceBet(context.Background(), service.PlaceBetInput{UserID: "u1", StreamID: "s1", BetAmount: decimal.NewFromInt(10)})
	b, _ := ledger.PlaceBet(context.Background(), service.PlaceBetInput{UserID: "u2", StreamID: "s1", BetAmount: decimal.NewFromInt(20)})

	reader := newQueueReader(request(a.ID, "Win"), request(b.ID, "Win"))
	reader.commitErr = errors.New("coordinator moved")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	commitFailures := 0
	p := &Processor{
		Log:    zap.NewNop(),
		Reader: reader,
		Ledger: ledger,
		OnError: func(stage string) {
			if stage == "commit" {
				commitFailures++
				if commitFailures == 2 {
					cancel()
				}
			}
		},
	}

	if err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
	gotB, _ := ledger.GetBet(context.Background(), b.ID)
	if commitFailures != 2 || gotB.BetResult != repo.Win {
		t.Fatalf("commit failures = %d, second bet = %s", commitFailures, gotB.BetResult)
	}
}
