// aleowallet is the wallet daemon: it loads the vault, syncs against an
// Aleo node, and serves the REST API on localhost.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hashezusa/aleo-GUI-wallet/internal/api"
	"github.com/hashezusa/aleo-GUI-wallet/internal/chain"
	"github.com/hashezusa/aleo-GUI-wallet/internal/config"
	"github.com/hashezusa/aleo-GUI-wallet/internal/engine"
	"github.com/hashezusa/aleo-GUI-wallet/internal/event"
	"github.com/hashezusa/aleo-GUI-wallet/internal/handler"
	"github.com/hashezusa/aleo-GUI-wallet/internal/ledger"
	"github.com/hashezusa/aleo-GUI-wallet/internal/price"
	"github.com/hashezusa/aleo-GUI-wallet/internal/security"
	"github.com/hashezusa/aleo-GUI-wallet/internal/signer"
	"github.com/hashezusa/aleo-GUI-wallet/internal/task"
	"github.com/hashezusa/aleo-GUI-wallet/internal/vault"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.Init(); err != nil {
		return err
	}

	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	store := vault.NewStore(config.GetWalletPath(), config.GetKDFIterations())
	data, encrypted, err := store.Load()
	if err != nil {
		return err
	}
	if encrypted {
		if err := config.PromptForPassword(); err != nil {
			return err
		}
		password := config.GetVaultPasswordBytes()
		data, err = store.Unlock(password)
		clear(password)
		if err != nil {
			return err
		}
	}

	l := ledger.New(log, store)
	l.Load(data)
	log.Info("wallet loaded",
		zap.Int("accounts", len(data.Accounts)),
		zap.Bool("encrypted", encrypted))

	gate, err := security.NewGate(config.GetSecurityPath())
	if err != nil {
		return err
	}
	if err := gate.SetAutoLockTimeout(config.GetAutoLockTimeout()); err != nil {
		return err
	}

	bus := event.NewBus()
	event.Subscribe(bus, func(ev event.ConnectivityChanged) {
		log.Info("connectivity changed", zap.Bool("connected", ev.Connected))
	})
	event.Subscribe(bus, func(ev event.TransactionObserved) {
		log.Info("transaction observed",
			zap.String("account", ev.AccountID),
			zap.String("txId", ev.TransactionID))
	})

	node := chain.NewClient(config.GetRPCURL())
	syncer := chain.NewSyncer(log, node, l, bus)
	eng := engine.New(log, node, l, signer.NewLocal(), bus)
	defer eng.Close()

	tracker := price.NewTracker(price.NewCoinGeckoClient(), bus)

	runner := task.NewRunner(log,
		task.Job{
			Name:     "chain-sync",
			Interval: config.GetSyncInterval(),
			Run:      syncer.SyncAll,
		},
		task.Job{
			Name:     "price-refresh",
			Interval: config.GetPriceInterval(),
			Run:      tracker.Refresh,
		},
		task.Job{
			Name:     "auto-lock",
			Interval: 30 * time.Second,
			Run: func(context.Context) error {
				if gate.ShouldAutoLock() {
					gate.Lock()
				}
				return nil
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner.Start(ctx)
	defer runner.Stop()

	h := handler.NewWalletHandler(l, eng, syncer, node, gate, store, tracker)
	srv := &http.Server{
		Addr:    "localhost:" + config.GetPort(),
		Handler: api.SetupRouter(h),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
