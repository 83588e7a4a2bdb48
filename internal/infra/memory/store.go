package memory

import (
	"context"
	"sync"
)

type txKey struct{}

// journal collects undo steps for the running unit.
type journal struct {
	undo []func()
}

// Transactor serializes units of work over the memory stores and rolls back their writes
// when the unit fails. Nested WithinTx calls join the outer unit.
type Transactor struct {
	mu sync.Mutex
}

func NewTransactor() *Transactor {
	return &Transactor{}
}

func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*journal); ok {
		return fn(ctx)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	j := &journal{}
	err := fn(context.WithValue(ctx, txKey{}, j))
	if err != nil {
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
	}
	return err
}

// onRollback registers undo to run if the surrounding unit fails. Outside a unit the write is final.
func onRollback(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(txKey{}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}
