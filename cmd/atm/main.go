package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"atm-ledger/pkg/api"
	"atm-ledger/pkg/auth"
	"atm-ledger/pkg/config"
	"atm-ledger/pkg/directory"
	"atm-ledger/pkg/ledger"
	"atm-ledger/pkg/ledger/file"
	"atm-ledger/pkg/ledger/memory"
	"atm-ledger/pkg/ledger/postgres"
	"atm-ledger/pkg/ledger/redis"
	"atm-ledger/pkg/logging"
	"atm-ledger/pkg/metrics"
	metricsmem "atm-ledger/pkg/metrics/memory"
	promcollector "atm-ledger/pkg/metrics/prometheus"
	"atm-ledger/pkg/resilience"
	"atm-ledger/pkg/teller"
	"atm-ledger/pkg/writer"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "atm: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()
	logging.SetGlobal(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snapshots := metricsmem.NewCollector()
	registry := prometheus.NewRegistry()
	prom := promcollector.NewCollector("atm")
	if err := prom.Register(registry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	collector := metrics.NewFanout(snapshots, prom)

	dir, err := buildDirectory(cfg, collector)
	if err != nil {
		return err
	}
	defer func() {
		if err := dir.Close(); err != nil {
			logger.Error("close directory", zap.Error(err))
		}
	}()

	provisions, err := cfg.Accounts()
	if err != nil {
		return err
	}
	for _, p := range provisions {
		if _, err := dir.AddAccount(ctx, p); err != nil {
			return fmt.Errorf("provision account %s: %w", p.Number, err)
		}
	}

	if cfg.API.Enabled {
		serverConfig := api.DefaultServerConfig()
		serverConfig.Address = cfg.API.Addr
		serverConfig.Backend = cfg.Ledger.Backend
		server := api.NewServer(dir, snapshots, registry, serverConfig)
		if err := server.Start(); err != nil {
			return fmt.Errorf("start api server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Stop(shutdownCtx)
		}()
	}

	return session(ctx, dir, newTerminal(os.Stdin, os.Stdout), os.Stdout)
}

func buildDirectory(cfg *config.Config, collector metrics.Collector) (*directory.Directory, error) {
	hasher, err := auth.NewHasher(cfg.Ledger.Hasher)
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg, cfg.Ledger.Backend, cfg.Ledger.Dir)
	if err != nil {
		return nil, fmt.Errorf("open %s ledger: %w", cfg.Ledger.Backend, err)
	}
	if cfg.Resilience.Enabled {
		rc := resilience.DefaultConfig().
			WithTimeout(cfg.Resilience.Timeout).
			WithCircuitBreakerTimeout(cfg.Resilience.OpenTimeout).
			WithFailureThreshold(cfg.Resilience.FailureThreshold)
		store = resilience.NewStoreWithMetrics(store, rc, collector)
	}

	var mirror ledger.Mirror
	if cfg.Mirror.Backend != "" {
		secondary, err := openStore(cfg, cfg.Mirror.Backend, cfg.Mirror.Dir)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("open %s mirror: %w", cfg.Mirror.Backend, err)
		}
		mirror = writer.NewMirrorWithMetrics(secondary, writer.MirrorConfig{
			Workers:   cfg.Mirror.Workers,
			QueueSize: cfg.Mirror.QueueSize,
		}, collector)
	}

	return directory.New(directory.Options{
		Store:       store,
		Hasher:      hasher,
		Policy:      cfg.Ledger.Policy(),
		Duplicates:  cfg.Ledger.Duplicates,
		MaxAttempts: cfg.Ledger.MaxAttempts,
		Mirror:      mirror,
		Metrics:     collector,
	})
}

func openStore(cfg *config.Config, backend, dir string) (ledger.LogStore, error) {
	switch backend {
	case config.BackendFile:
		return file.NewStore(file.Config{Dir: dir, NoSync: cfg.Ledger.NoSync, Location: cfg.Ledger.Location})
	case config.BackendMemory:
		return memory.NewStore(""), nil
	case config.BackendRedis:
		rc := redis.DefaultConfig()
		rc.Addr = cfg.Redis.Addr
		rc.Password = cfg.Redis.Password
		rc.DB = cfg.Redis.DB
		rc.KeyPrefix = cfg.Redis.KeyPrefix
		rc.Location = cfg.Ledger.Location
		return redis.NewStore(rc)
	case config.BackendPostgres:
		return postgres.Open("postgres", cfg.Postgres.ConnectionString())
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// lineReader is the input side of the terminal.
type lineReader interface {
	directory.SecretSource
	ReadLine(prompt string) (string, error)
}

// session runs one customer visit: account number, PIN, then the menu.
func session(ctx context.Context, dir *directory.Directory, in lineReader, out io.Writer) error {
	number, err := in.ReadLine("Enter Account Number: ")
	if err != nil {
		return nil
	}

	acct, err := dir.Authenticate(ctx, strings.TrimSpace(number), in)
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		fmt.Fprintln(out, "Account not found. Exiting...")
		return nil
	case errors.Is(err, ledger.ErrTooManyAttempts):
		// Prompts only report earlier failures; the last one is reported here.
		printIncorrectPIN(out, 0)
		fmt.Fprintln(out, "Too many incorrect attempts. Exiting...")
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintln(out, "Authentication successful!")

	t := teller.New(acct)
	for !t.Done() {
		if ctx.Err() != nil {
			return nil
		}

		fmt.Fprint(out, "\n--- ATM Menu ---\n1. Deposit Money\n2. Withdraw Money\n3. Show Balance\n4. Show Transaction History\n5. Exit\n")
		choice, err := in.ReadLine("Enter your choice: ")
		if err != nil {
			return nil
		}

		op, err := teller.ParseOperation(choice)
		if err != nil {
			fmt.Fprintln(out, "Invalid choice, please try again!")
			continue
		}

		req := teller.Request{Op: op}
		if op.NeedsAmount() {
			line, err := in.ReadLine(fmt.Sprintf("Enter amount to %s: ", op))
			if err != nil {
				return nil
			}
			amount, err := decimal.NewFromString(strings.TrimSpace(line))
			if err != nil {
				fmt.Fprintln(out, "Invalid amount, please try again!")
				continue
			}
			req.Amount = amount
		}

		res, err := t.Execute(ctx, req)
		printResult(out, res, err)
	}
	return nil
}

func printResult(out io.Writer, res teller.Result, err error) {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		fmt.Fprintln(out, "Insufficient funds!")
		return
	case errors.Is(err, ledger.ErrInvalidAmount):
		fmt.Fprintln(out, "Amount must be greater than zero.")
		return
	case errors.Is(err, ledger.ErrPersistence):
		fmt.Fprintln(out, "The transaction could not be recorded. Please try again later.")
		return
	case err != nil:
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}

	switch res.Op {
	case teller.Deposit:
		fmt.Fprintf(out, "\nYou deposited: %s | Your current balance: %s\n", res.Receipt.Transaction.Amount, res.Balance)
	case teller.Withdraw:
		fmt.Fprintf(out, "Withdrawn: %s | Your current balance: %s\n", res.Receipt.Transaction.Amount, res.Balance)
	case teller.ShowBalance:
		fmt.Fprintf(out, "Your current balance: %s\n", res.Balance)
	case teller.ShowHistory:
		if !res.History.Found {
			fmt.Fprintln(out, "No transaction history found.")
			return
		}
		fmt.Fprintln(out, "\n--- Transaction History ---")
		for _, tx := range res.History.Transactions {
			fmt.Fprintln(out, tx.Record())
		}
	case teller.Exit:
		fmt.Fprintln(out, "Thank you for using the ATM!")
	}

	if res.Receipt != nil && !res.Receipt.Durable {
		fmt.Fprintln(out, "Warning: this transaction was not saved to the permanent record.")
	}
}
