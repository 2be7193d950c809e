package lock

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// unlockScript deletes a lock key only if it is still held by the caller,
// so a lock that expired and was re-acquired elsewhere is never deleted.
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// RedisPairLocker implements PairLocker on Redis SET NX, for deployments
// running more than one engine instance against a shared store. Lock keys
// expire so a crashed holder cannot leave an account locked forever.
type RedisPairLocker struct {
	client        *redis.Client
	prefix        string
	expiry        time.Duration
	retryInterval time.Duration
}

func NewRedisPairLocker(client *redis.Client) *RedisPairLocker {
	return &RedisPairLocker{
		client:        client,
		prefix:        "ledger:lock:account:",
		expiry:        30 * time.Second,
		retryInterval: 50 * time.Millisecond,
	}
}

func (l *RedisPairLocker) acquire(ctx context.Context, accountNumber, token string) error {
	key := l.prefix + accountNumber
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.expiry).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrBusy
			}
			return ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}
}

func (l *RedisPairLocker) release(accountNumber, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	l.client.Eval(ctx, unlockScript, []string{l.prefix + accountNumber}, token)
}

// LockPair acquires both account locks in account-number order, mirroring
// the local locker's deadlock avoidance.
func (l *RedisPairLocker) LockPair(ctx context.Context, a, b string) (UnlockFunc, error) {
	first, second := orderPair(a, b)
	token := uuid.New().String()

	if err := l.acquire(ctx, first, token); err != nil {
		return nil, err
	}
	if first == second {
		return func() { l.release(first, token) }, nil
	}
	if err := l.acquire(ctx, second, token); err != nil {
		l.release(first, token)
		return nil, err
	}
	return func() {
		l.release(second, token)
		l.release(first, token)
	}, nil
}

var _ PairLocker = (*RedisPairLocker)(nil)
