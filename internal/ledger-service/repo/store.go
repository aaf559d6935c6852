package repo

import "context"

// Store é o armazenamento durável das apostas.
// Erros seguem a taxonomia de errs: ErrValidation na inserção, ErrNotFound
// para ids inexistentes e ErrInvalidStateTransition quando Patch.Expected não confere.
// Buscas sem resultado devolvem slice vazio, nunca erro.
type Store interface {
	Insert(ctx context.Context, w *Wager) (string, error)
	Get(ctx context.Context, id string) (Wager, error)
	FindByStream(ctx context.Context, streamID string) ([]Wager, error)
	FindByUser(ctx context.Context, userID string) ([]Wager, error)
	FindByResult(ctx context.Context, result BetResult) ([]Wager, error)
	List(ctx context.Context) ([]Wager, error)
	Update(ctx context.Context, id string, p Patch) (Wager, error)
	Delete(ctx context.Context, id string) error
}
