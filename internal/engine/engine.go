// Package engine creates, signs, broadcasts, and monitors outgoing
// transactions. A send walks created -> signed -> broadcast under a
// per-account lock, so two concurrent sends can never commit the same funds.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hashezusa/aleo-GUI-wallet/internal/chain"
	"github.com/hashezusa/aleo-GUI-wallet/internal/event"
	"github.com/hashezusa/aleo-GUI-wallet/internal/keystore"
	"github.com/hashezusa/aleo-GUI-wallet/internal/ledger"
	"github.com/hashezusa/aleo-GUI-wallet/internal/model"
	"github.com/hashezusa/aleo-GUI-wallet/internal/signer"
)

const (
	// BaseFeeMicro flat fee per transaction, 0.001 credits.
	BaseFeeMicro = 1000

	// MinFeeMicro floor for the total fee, 0.0001 credits.
	MinFeeMicro = 100

	// MemoByteFeeMicro surcharge per memo byte, 0.00001 credits.
	MemoByteFeeMicro = 10

	// MaxMemoBytes longest accepted memo.
	MaxMemoBytes = 256

	// confirmTimeout how long a broadcast transaction may stay pending
	// before the local record is marked failed. A later chain observation
	// still promotes it back to confirmed.
	confirmTimeout = 10 * time.Minute

	pollInterval    = 5 * time.Second
	pollMaxInterval = time.Minute
)

// Engine drives outgoing transactions end to end.
type Engine struct {
	log    *zap.Logger
	query  chain.QueryService
	ledger *ledger.Ledger
	oracle signer.Oracle
	bus    *event.Bus

	mu        sync.Mutex
	sendLocks map[string]*sync.Mutex

	monitorCtx    context.Context
	monitorCancel context.CancelFunc
	monitors      sync.WaitGroup
}

// New wires the engine. Close must be called to stop confirmation monitors.
func New(log *zap.Logger, query chain.QueryService, l *ledger.Ledger, oracle signer.Oracle, bus *event.Bus) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		log:           log,
		query:         query,
		ledger:        l,
		oracle:        oracle,
		bus:           bus,
		sendLocks:     make(map[string]*sync.Mutex),
		monitorCtx:    ctx,
		monitorCancel: cancel,
	}
}

// EstimateFeeMicro returns the fee for a transaction carrying memo.
func EstimateFeeMicro(memo string) uint64 {
	fee := uint64(BaseFeeMicro) + uint64(len(memo))*MemoByteFeeMicro
	if fee < MinFeeMicro {
		return MinFeeMicro
	}
	return fee
}

// transactionPayload is the canonical form handed to the signing oracle and
// the node. Field order is fixed by the struct, so the signature is stable.
type transactionPayload struct {
	Sender      string `json:"sender"`
	Recipient   string `json:"recipient"`
	AmountMicro uint64 `json:"amountMicro"`
	FeeMicro    uint64 `json:"feeMicro"`
	Memo        string `json:"memo,omitempty"`
	Timestamp   int64  `json:"timestamp"`
	Signature   string `json:"signature,omitempty"`
}

// Send moves amountMicro from the account to recipient. The returned
// transaction is the pending local record; a background monitor follows it
// to a terminal status. The fee is charged on top of the amount.
func (e *Engine) Send(ctx context.Context, accountID, recipient string, amountMicro uint64, memo string) (*model.Transaction, error) {
	if amountMicro == 0 {
		return nil, fmt.Errorf("%w: amount must be greater than zero", model.ErrInvalidFormat)
	}
	if !keystore.LooksLikeAddress(recipient) {
		return nil, fmt.Errorf("%w: recipient address %q", model.ErrInvalidFormat, recipient)
	}
	if len(memo) > MaxMemoBytes {
		return nil, fmt.Errorf("%w: memo exceeds %d bytes", model.ErrInvalidFormat, MaxMemoBytes)
	}

	// The lock covers balance check through broadcast. Without it two
	// concurrent full-balance sends would both pass the spendable check.
	lock := e.sendLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	acct, err := e.ledger.GetAccount(accountID)
	if err != nil {
		return nil, err
	}
	if recipient == acct.Address {
		return nil, fmt.Errorf("%w: cannot send to the sending account", model.ErrInvalidFormat)
	}

	fee := EstimateFeeMicro(memo)
	spendable, err := e.ledger.SpendableMicro(accountID)
	if err != nil {
		return nil, err
	}
	// Two comparisons instead of amount+fee > spendable: the sum can wrap
	// uint64 and a wrapped sum would pass the check.
	if amountMicro > spendable || fee > spendable-amountMicro {
		return nil, fmt.Errorf("%w: need %d microcredits plus %d fee, have %d spendable",
			model.ErrInsufficientBalance, amountMicro, fee, spendable)
	}

	now := time.Now().UTC()
	payload := transactionPayload{
		Sender:      acct.Address,
		Recipient:   recipient,
		AmountMicro: amountMicro,
		FeeMicro:    fee,
		Memo:        memo,
		Timestamp:   now.Unix(),
	}

	canonical, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction: %w", err)
	}
	signature, err := e.oracle.Sign(ctx, acct.PrivateKey, canonical)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	payload.Signature = signature

	signed, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal signed transaction: %w", err)
	}

	txID, err := e.query.BroadcastTransaction(ctx, signed)
	if err != nil {
		return nil, fmt.Errorf("failed to broadcast transaction: %w", err)
	}
	if txID == "" {
		txID = localTransactionID(signature)
	}

	tx := model.Transaction{
		TransactionID: txID,
		Type:          model.TransactionTypeSent,
		Counterparty:  recipient,
		AmountMicro:   amountMicro,
		FeeMicro:      fee,
		Memo:          memo,
		CreatedAt:     now,
		Status:        model.StatusPending,
	}
	if err := e.ledger.RecordTransaction(accountID, tx); err != nil {
		// The transaction is on the wire; the record lives in memory and the
		// next successful mutation persists it.
		e.log.Error("failed to persist outgoing transaction",
			zap.String("txId", txID), zap.Error(err))
	}
	if err := e.ledger.MarkContactUsed(accountID, recipient); err != nil {
		e.log.Warn("failed to stamp contact", zap.Error(err))
	}

	e.monitors.Add(1)
	go func() {
		defer e.monitors.Done()
		e.monitor(accountID, txID)
	}()

	e.log.Info("transaction broadcast",
		zap.String("txId", txID),
		zap.String("account", accountID),
		zap.Uint64("amountMicro", amountMicro),
		zap.Uint64("feeMicro", fee))
	return &tx, nil
}

// monitor polls the node until the transaction settles or the confirmation
// window runs out. Transport errors back the poll interval off; they never
// fail the transaction by themselves.
func (e *Engine) monitor(accountID, txID string) {
	ctx, cancel := context.WithTimeout(e.monitorCtx, confirmTimeout)
	defer cancel()

	interval := pollInterval
	for {
		select {
		case <-ctx.Done():
			if e.monitorCtx.Err() != nil {
				return // shutdown, leave the record pending
			}
			e.settle(accountID, txID, model.StatusFailed, 0)
			return
		case <-time.After(interval):
		}

		details, err := e.query.GetTransaction(ctx, txID)
		if err != nil {
			// Not found means the node has not seen it yet; keep waiting.
			// Anything else backs off.
			if interval < pollMaxInterval {
				interval *= 2
				if interval > pollMaxInterval {
					interval = pollMaxInterval
				}
			}
			continue
		}
		interval = pollInterval

		switch details.Status {
		case "confirmed":
			e.settle(accountID, txID, model.StatusConfirmed, details.BlockHeight)
			return
		case "failed":
			e.settle(accountID, txID, model.StatusFailed, details.BlockHeight)
			return
		}
	}
}

func (e *Engine) settle(accountID, txID string, status model.TransactionStatus, blockHeight uint64) {
	if err := e.ledger.UpdateTransactionStatus(accountID, txID, status, blockHeight); err != nil {
		e.log.Error("failed to record transaction outcome",
			zap.String("txId", txID), zap.Error(err))
		return
	}
	confirmed := status == model.StatusConfirmed
	event.Publish(e.bus, event.TransactionSettled{
		AccountID:     accountID,
		TransactionID: txID,
		Confirmed:     confirmed,
	})
	if balance, err := e.ledger.BalanceMicro(accountID); err == nil {
		event.Publish(e.bus, event.BalanceChanged{AccountID: accountID, BalanceMicro: balance})
	}
	e.log.Info("transaction settled",
		zap.String("txId", txID),
		zap.Bool("confirmed", confirmed))
}

// Close stops all confirmation monitors and waits for them.
func (e *Engine) Close() {
	e.monitorCancel()
	e.monitors.Wait()
}

func (e *Engine) sendLock(accountID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.sendLocks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		e.sendLocks[accountID] = lock
	}
	return lock
}

func localTransactionID(signature string) string {
	sum := sha256.Sum256([]byte(signature))
	return "at1" + hex.EncodeToString(sum[:])[:58]
}
