// Package ledger implements the transfer engine: it orchestrates account
// resolution and the double-entry ledger append under a per-account-pair
// serialization guarantee. Money is never created or destroyed — every
// transfer writes a debit leg and a credit leg sharing one transaction id,
// and their signed amounts sum to zero.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chatbank/ledger-engine/internal/directory"
	"github.com/chatbank/ledger-engine/internal/interfaces"
	"github.com/chatbank/ledger-engine/internal/lock"
	"github.com/chatbank/ledger-engine/internal/models"
	"github.com/chatbank/ledger-engine/internal/models/events"
)

// maxAmountScale is the maximum number of fractional digits an amount may
// carry (two for the demo currency).
const maxAmountScale = 2

const (
	defaultLockWait   = 5 * time.Second
	defaultEventTopic = "transfer_posted"
)

// Ledger is the transfer engine. It holds a reference to the storage layer
// and a pair locker; both lifetimes are owned by whoever assembles the
// system, never by the package.
type Ledger struct {
	store  interfaces.LedgerStore
	locks  lock.PairLocker
	dir    *directory.Directory
	events interfaces.EventPublisher

	log               *zap.Logger
	eventTopic        string
	lockWait          time.Duration
	checkedOverdrafts bool
	now               func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithEventPublisher makes the engine publish a TransferPosted event after
// each successful transfer. Delivery is best effort.
func WithEventPublisher(p interfaces.EventPublisher) Option {
	return func(l *Ledger) { l.events = p }
}

// WithEventTopic overrides the topic transfer events are published to.
func WithEventTopic(topic string) Option {
	return func(l *Ledger) { l.eventTopic = topic }
}

func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithCheckedOverdrafts rejects transfers that would take a non-sentinel
// source account below zero. Off by default: the engine mirrors the
// source system's permissive overdraft behavior unless opted in.
func WithCheckedOverdrafts() Option {
	return func(l *Ledger) { l.checkedOverdrafts = true }
}

// WithLockWait bounds how long a transfer may wait on the pair lock before
// failing with lock.ErrBusy.
func WithLockWait(d time.Duration) Option {
	return func(l *Ledger) { l.lockWait = d }
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates a transfer engine over the given store and locker.
func NewLedger(store interfaces.LedgerStore, locks lock.PairLocker, opts ...Option) *Ledger {
	l := &Ledger{
		store:      store,
		locks:      locks,
		dir:        directory.NewDirectory(store),
		log:        zap.NewNop(),
		eventTopic: defaultEventTopic,
		lockWait:   defaultLockWait,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ListAccounts returns all accounts owned by userID in stable order.
func (l *Ledger) ListAccounts(ctx context.Context, userID string) ([]models.Account, error) {
	return l.dir.ListAccounts(ctx, userID)
}

// ListTransferTargets returns the accounts userID may transfer to from the
// given source identifier (every owned account except the source itself).
func (l *Ledger) ListTransferTargets(ctx context.Context, userID, fromIdentifier string) ([]models.Account, error) {
	return l.dir.ListTransferTargets(ctx, userID, fromIdentifier)
}

// validAmount requires a strictly positive amount with no more fractional
// digits than maxAmountScale.
func validAmount(amount decimal.Decimal) bool {
	if !amount.IsPositive() {
		return false
	}
	return amount.Equal(amount.Truncate(maxAmountScale))
}

// loadOwned fetches the account row and enforces ownership: the row must
// belong to userID unless the number is one of the sentinel accounts. A
// missing row fails with interfaces.ErrAccountNotFound — resolution is
// permissive, so existence is only checked here, at the point of use.
func (l *Ledger) loadOwned(ctx context.Context, userID, accountNumber string) (models.Account, error) {
	acct, err := l.store.GetAccount(ctx, accountNumber)
	if err != nil {
		return models.Account{}, err
	}
	if acct.UserID != userID && !IsSentinel(accountNumber) {
		return models.Account{}, fmt.Errorf("%w: %s", ErrForbiddenAccount, accountNumber)
	}
	return acct, nil
}

// Transfer moves amount from one of userID's accounts to another, recording
// a debit and a credit leg under one transaction id.
//
// The attempt proceeds Requested → Resolved → Reserved → Posted: inputs are
// validated, both identifiers are resolved to canonical numbers, the pair
// lock is taken in account-number order, and only then are the balances
// read, updated and the two legs appended. If anything fails after the
// first balance update the engine reverts the applied deltas before
// releasing the lock, so no partial state is ever observable.
func (l *Ledger) Transfer(ctx context.Context, userID, from, to string, amount decimal.Decimal, memo string) (models.TransferReceipt, error) {
	if !validAmount(amount) {
		return models.TransferReceipt{}, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}

	fromNumber, err := l.dir.Resolve(ctx, userID, from)
	if err != nil {
		return models.TransferReceipt{}, err
	}
	toNumber, err := l.dir.Resolve(ctx, userID, to)
	if err != nil {
		return models.TransferReceipt{}, err
	}
	if fromNumber == toNumber {
		return models.TransferReceipt{}, fmt.Errorf("%w: %s", ErrSameAccount, fromNumber)
	}

	lockCtx, cancel := context.WithTimeout(ctx, l.lockWait)
	defer cancel()
	unlock, err := l.locks.LockPair(lockCtx, fromNumber, toNumber)
	if err != nil {
		return models.TransferReceipt{}, err
	}
	defer unlock()

	// Once the pair lock is held the posting must run to completion or
	// roll back even if the caller goes away mid-flight.
	postCtx := context.WithoutCancel(ctx)

	fromAcct, err := l.loadOwned(postCtx, userID, fromNumber)
	if err != nil {
		return models.TransferReceipt{}, err
	}
	if _, err := l.loadOwned(postCtx, userID, toNumber); err != nil {
		return models.TransferReceipt{}, err
	}

	if l.checkedOverdrafts && !IsSentinel(fromNumber) && fromAcct.Balance.LessThan(amount) {
		return models.TransferReceipt{}, fmt.Errorf("%w: balance %s, amount %s",
			ErrInsufficientFunds, fromAcct.Balance, amount)
	}

	fromBalance, err := l.store.ApplyBalanceDelta(postCtx, fromNumber, amount.Neg())
	if err != nil {
		return models.TransferReceipt{}, err
	}

	toBalance, err := l.store.ApplyBalanceDelta(postCtx, toNumber, amount)
	if err != nil {
		l.revert(postCtx, fromNumber, amount)
		return models.TransferReceipt{}, fmt.Errorf("%w: credit balance update: %v", ErrTransferAborted, err)
	}

	transactionID := uuid.New().String()
	postedAt := l.now()

	debit := models.LedgerEntry{
		TransactionID:      transactionID,
		AccountNumber:      fromNumber,
		CounterpartyNumber: toNumber,
		Type:               models.Debit,
		Amount:             amount,
		BalanceAfter:       fromBalance,
		PostedAt:           postedAt,
		Memo:               memo,
	}
	credit := models.LedgerEntry{
		TransactionID:      transactionID,
		AccountNumber:      toNumber,
		CounterpartyNumber: fromNumber,
		Type:               models.Credit,
		Amount:             amount,
		BalanceAfter:       toBalance,
		PostedAt:           postedAt,
		Memo:               memo,
	}

	if err := l.store.AppendPair(postCtx, debit, credit); err != nil {
		l.revert(postCtx, toNumber, amount.Neg())
		l.revert(postCtx, fromNumber, amount)
		return models.TransferReceipt{}, fmt.Errorf("%w: ledger append: %v", ErrTransferAborted, err)
	}

	receipt := models.TransferReceipt{
		TransactionID: transactionID,
		FromAccount:   fromNumber,
		ToAccount:     toNumber,
		Amount:        amount,
		PostedAt:      postedAt,
		FromBalance:   fromBalance,
		ToBalance:     toBalance,
	}
	l.publish(userID, receipt)
	return receipt, nil
}

// Deposit records an external cash inflow into the user's account as a
// transfer from the deposit source sentinel.
func (l *Ledger) Deposit(ctx context.Context, userID, account string, amount decimal.Decimal, memo string) (models.TransferReceipt, error) {
	return l.Transfer(ctx, userID, DepositSourceAccount, account, amount, memo)
}

// Withdraw records an external cash outflow from the user's account as a
// transfer to the withdraw sink sentinel.
func (l *Ledger) Withdraw(ctx context.Context, userID, account string, amount decimal.Decimal, memo string) (models.TransferReceipt, error) {
	return l.Transfer(ctx, userID, account, WithdrawSinkAccount, amount, memo)
}

// revert is the compensating rollback for a balance delta already applied
// in the current critical section. A revert failure leaves the store
// inconsistent and is loudly logged; it cannot be handled further here.
func (l *Ledger) revert(ctx context.Context, accountNumber string, delta decimal.Decimal) {
	if _, err := l.store.ApplyBalanceDelta(ctx, accountNumber, delta); err != nil {
		l.log.Error("compensating rollback failed",
			zap.String("account_number", accountNumber),
			zap.String("delta", delta.String()),
			zap.Error(err))
	}
}

func (l *Ledger) publish(userID string, r models.TransferReceipt) {
	if l.events == nil {
		return
	}
	evt := events.TransferPosted{
		TransactionID: r.TransactionID,
		UserID:        userID,
		FromAccount:   r.FromAccount,
		ToAccount:     r.ToAccount,
		Amount:        r.Amount,
		PostedAt:      r.PostedAt,
	}
	if err := l.events.Publish(l.eventTopic, evt); err != nil {
		l.log.Warn("transfer event publish failed",
			zap.String("transaction_id", r.TransactionID),
			zap.Error(err))
	}
}
