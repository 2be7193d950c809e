package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chatbank/ledger-engine/internal/config"
	"github.com/chatbank/ledger-engine/internal/events/kafka"
	"github.com/chatbank/ledger-engine/internal/interfaces"
	"github.com/chatbank/ledger-engine/internal/ledger"
	"github.com/chatbank/ledger-engine/internal/lock"
	"github.com/chatbank/ledger-engine/internal/models"
	"github.com/chatbank/ledger-engine/internal/storage/memory"
	"github.com/chatbank/ledger-engine/internal/storage/postgres"
	"github.com/chatbank/ledger-engine/internal/storage/sqlite"
)

func main() {
	// .env overrides are optional; missing file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("LEDGER_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	store, err := buildStore(cfg, log)
	if err != nil {
		log.Fatal("store init failed", zap.Error(err))
	}

	var locker lock.PairLocker = lock.NewLocalPairLocker()
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		locker = lock.NewRedisPairLocker(client)
		log.Info("using redis pair locker", zap.String("addr", cfg.Redis.Addr))
	}

	opts := []ledger.Option{
		ledger.WithLogger(log),
		ledger.WithLockWait(time.Duration(cfg.Transfer.LockWaitMillis) * time.Millisecond),
	}
	if cfg.Transfer.CheckedOverdrafts {
		opts = append(opts, ledger.WithCheckedOverdrafts())
	}
	if cfg.Kafka.Enabled {
		publisher := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		opts = append(opts, ledger.WithEventPublisher(publisher), ledger.WithEventTopic(cfg.Kafka.Topic))
	}

	engine := ledger.NewLedger(store, locker, opts...)

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("/accounts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			http.Error(w, "user_id is a mandatory field", http.StatusBadRequest)
			return
		}
		accounts, err := engine.ListAccounts(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, accounts)
	})

	mux.HandleFunc("/accounts/transfer-targets", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		userID := r.URL.Query().Get("user_id")
		from := r.URL.Query().Get("from")
		if userID == "" || from == "" {
			http.Error(w, "user_id and from are mandatory fields", http.StatusBadRequest)
			return
		}
		targets, err := engine.ListTransferTargets(r.Context(), userID, from)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, targets)
	})

	type transferRequest struct {
		UserID      string          `json:"user_id"`
		FromAccount string          `json:"from_account"`
		ToAccount   string          `json:"to_account"`
		Account     string          `json:"account"` // deposits and withdrawals
		Amount      decimal.Decimal `json:"amount"`
		Memo        string          `json:"memo"`
	}

	post := func(run func(ctx context.Context, req transferRequest) (models.TransferReceipt, error)) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			var req transferRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
			receipt, err := run(r.Context(), req)
			if err != nil {
				writeError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(receipt)
		}
	}

	mux.HandleFunc("/transfers", post(func(ctx context.Context, req transferRequest) (models.TransferReceipt, error) {
		return engine.Transfer(ctx, req.UserID, req.FromAccount, req.ToAccount, req.Amount, req.Memo)
	}))
	mux.HandleFunc("/deposits", post(func(ctx context.Context, req transferRequest) (models.TransferReceipt, error) {
		return engine.Deposit(ctx, req.UserID, req.Account, req.Amount, req.Memo)
	}))
	mux.HandleFunc("/withdrawals", post(func(ctx context.Context, req transferRequest) (models.TransferReceipt, error) {
		return engine.Withdraw(ctx, req.UserID, req.Account, req.Amount, req.Memo)
	}))

	mux.HandleFunc("/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		userID := r.URL.Query().Get("user_id")
		account := r.URL.Query().Get("account")
		if userID == "" || account == "" {
			http.Error(w, "user_id and account are mandatory fields", http.StatusBadRequest)
			return
		}
		days := 7
		if d := r.URL.Query().Get("days"); d != "" {
			parsed, err := strconv.Atoi(d)
			if err != nil || parsed < 0 {
				http.Error(w, "days must be a non-negative integer", http.StatusBadRequest)
				return
			}
			days = parsed
		}
		transactions, err := engine.ListTransactions(r.Context(), userID, account, days)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, transactions)
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: mux,
	}

	go func() {
		log.Info("starting server", zap.Int("port", cfg.Server.Port), zap.String("store", cfg.Store.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown incomplete", zap.Error(err))
	}
	log.Info("server stopped")
}

// buildStore assembles the configured LedgerStore and makes sure the two
// sentinel accounts exist.
func buildStore(cfg *config.Config, log *zap.Logger) (interfaces.LedgerStore, error) {
	sentinels := []models.Account{
		{AccountNumber: ledger.WithdrawSinkAccount, UserID: ledger.BankUserID,
			AccountName: "Withdraw", Balance: decimal.Zero, CurrencyCode: "USD"},
		{AccountNumber: ledger.DepositSourceAccount, UserID: ledger.BankUserID,
			AccountName: "Deposit", Balance: decimal.Zero, CurrencyCode: "USD"},
	}

	switch cfg.Store.Driver {
	case "memory":
		return memory.NewMemoryLedgerStore(sentinels...), nil

	case "sqlite":
		store, err := sqlite.NewSQLiteLedgerStore(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		for _, a := range sentinels {
			// Ignore failures for rows provisioned on an earlier run.
			if err := store.CreateAccount(context.Background(), a); err != nil {
				log.Debug("sentinel already provisioned", zap.String("account", a.AccountNumber))
			}
		}
		return store, nil

	case "postgres":
		db, err := sql.Open("postgres", cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		store, err := postgres.NewPostgresLedgerStore(db)
		if err != nil {
			return nil, err
		}
		for _, a := range sentinels {
			if err := store.CreateAccount(context.Background(), a); err != nil {
				log.Debug("sentinel already provisioned", zap.String("account", a.AccountNumber))
			}
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// writeError maps the engine's error taxonomy onto HTTP statuses. Caller
// input errors are 4xx and must not be retried as-is; aborted and
// unavailable are 5xx and safe to retry.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrSameAccount):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrForbiddenAccount):
		status = http.StatusForbidden
	case errors.Is(err, interfaces.ErrAccountNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientFunds):
		status = http.StatusConflict
	case errors.Is(err, lock.ErrBusy):
		status = http.StatusTooManyRequests
	case errors.Is(err, ledger.ErrTransferAborted), errors.Is(err, interfaces.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
