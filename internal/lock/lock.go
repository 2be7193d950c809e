// Package lock provides per-account-pair ordering locks for the transfer
// engine. Both accounts of a transfer are always acquired in a total order
// over account numbers so that transfer(A→B) and transfer(B→A) running
// concurrently cannot deadlock.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrBusy is returned when the pair lock could not be acquired within the
// caller's deadline. It is safe to retry.
var ErrBusy = errors.New("account pair lock busy")

// UnlockFunc releases a held pair lock. It must be called exactly once.
type UnlockFunc func()

// PairLocker serializes transfers that share an account while letting
// transfers over disjoint account sets proceed fully in parallel.
type PairLocker interface {
	LockPair(ctx context.Context, a, b string) (UnlockFunc, error)
}

// orderPair returns the two account numbers in lock-acquisition order.
func orderPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// LocalPairLocker implements PairLocker with in-process semaphores, one per
// account number. Suitable for a single-instance deployment.
type LocalPairLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocalPairLocker() *LocalPairLocker {
	return &LocalPairLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalPairLocker) slot(accountNumber string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[accountNumber]
	if !ok {
		s = make(chan struct{}, 1)
		l.slots[accountNumber] = s
	}
	return s
}

func (l *LocalPairLocker) acquire(ctx context.Context, accountNumber string) error {
	select {
	case l.slot(accountNumber) <- struct{}{}:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrBusy
		}
		return ctx.Err()
	}
}

func (l *LocalPairLocker) release(accountNumber string) {
	<-l.slot(accountNumber)
}

// LockPair acquires both account locks in account-number order. When a and b
// are equal a single lock is taken.
func (l *LocalPairLocker) LockPair(ctx context.Context, a, b string) (UnlockFunc, error) {
	first, second := orderPair(a, b)

	if err := l.acquire(ctx, first); err != nil {
		return nil, err
	}
	if first == second {
		return func() { l.release(first) }, nil
	}
	if err := l.acquire(ctx, second); err != nil {
		l.release(first)
		return nil, err
	}
	return func() {
		l.release(second)
		l.release(first)
	}, nil
}

var _ PairLocker = (*LocalPairLocker)(nil)
