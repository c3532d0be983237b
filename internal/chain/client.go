// Package chain talks to an Aleo node over JSON-RPC 2.0 and keeps the local
// ledger in step with it.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashezusa/aleo-GUI-wallet/internal/model"
)

// TransactionDetails is the node's view of one transaction.
type TransactionDetails struct {
	TransactionID string `json:"transactionId"`
	Sender        string `json:"sender"`
	Recipient     string `json:"recipient"`
	AmountMicro   uint64 `json:"amountMicro"`
	FeeMicro      uint64 `json:"feeMicro"`
	Memo          string `json:"memo,omitempty"`
	BlockHeight   uint64 `json:"blockHeight"`
	Status        string `json:"status"` // "confirmed", "pending", "failed"
	Timestamp     int64  `json:"timestamp"`
}

// ChainStatus summarizes the node's health.
type ChainStatus struct {
	Height    uint64 `json:"height"`
	BlockHash string `json:"blockHash"`
	Synced    bool   `json:"synced"`
	PeerCount int    `json:"peerCount"`
}

// QueryService is the node surface the syncer and engine need. Client
// implements it against a real node; tests substitute fakes.
type QueryService interface {
	LatestHeight(ctx context.Context) (uint64, error)
	LatestHash(ctx context.Context) (string, error)
	GetTransaction(ctx context.Context, txID string) (*TransactionDetails, error)
	TransactionsForAddress(ctx context.Context, address string, fromHeight, toHeight uint64) ([]TransactionDetails, error)
	ChainStatus(ctx context.Context) (*ChainStatus, error)
	BroadcastTransaction(ctx context.Context, payload json.RawMessage) (string, error)
}

// Client is a JSON-RPC 2.0 client for an Aleo node. Safe for concurrent use.
type Client struct {
	rpcURL string
	client *http.Client
	nextID atomic.Uint64
}

// NewClient creates a node client for the given RPC endpoint.
func NewClient(rpcURL string) *Client {
	return &Client{
		rpcURL: rpcURL,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      uint64 `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call performs one JSON-RPC round trip and decodes the result into out.
// Transport and node failures map onto ErrTransport; a "not found" node
// error maps onto ErrNotFound.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextRequestID(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", model.ErrTransport, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: status %d", model.ErrTransport, method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("%w: %s: malformed response: %v", model.ErrTransport, method, err)
	}
	if rpcResp.Error != nil {
		if strings.Contains(strings.ToLower(rpcResp.Error.Message), "not found") {
			return fmt.Errorf("%w: %s", model.ErrNotFound, rpcResp.Error.Message)
		}
		return fmt.Errorf("%w: %s: node error %d: %s", model.ErrTransport, method, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("%w: %s: malformed result: %v", model.ErrTransport, method, err)
		}
	}
	return nil
}

func (c *Client) nextRequestID() uint64 {
	return c.nextID.Add(1)
}

// LatestHeight returns the node's current block height.
func (c *Client) LatestHeight(ctx context.Context) (uint64, error) {
	var height uint64
	if err := c.call(ctx, "latest/height", nil, &height); err != nil {
		return 0, err
	}
	return height, nil
}

// LatestHash returns the node's current block hash.
func (c *Client) LatestHash(ctx context.Context) (string, error) {
	var hash string
	if err := c.call(ctx, "latest/hash", nil, &hash); err != nil {
		return "", err
	}
	return hash, nil
}

// GetTransaction fetches one transaction by id. A transaction the node does
// not know returns ErrNotFound.
func (c *Client) GetTransaction(ctx context.Context, txID string) (*TransactionDetails, error) {
	var details TransactionDetails
	params := map[string]string{"id": txID}
	if err := c.call(ctx, "transaction", params, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// TransactionsForAddress lists the transactions touching address within the
// block range [fromHeight, toHeight].
func (c *Client) TransactionsForAddress(ctx context.Context, address string, fromHeight, toHeight uint64) ([]TransactionDetails, error) {
	var details []TransactionDetails
	params := map[string]any{
		"address": address,
		"start":   fromHeight,
		"end":     toHeight,
	}
	if err := c.call(ctx, "transactionsForAddress", params, &details); err != nil {
		return nil, err
	}
	return details, nil
}

// ChainStatus fetches the node's health summary.
func (c *Client) ChainStatus(ctx context.Context) (*ChainStatus, error) {
	var status ChainStatus
	if err := c.call(ctx, "chainStatus", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// BroadcastTransaction submits a signed transaction and returns the id the
// node acknowledged it under.
func (c *Client) BroadcastTransaction(ctx context.Context, payload json.RawMessage) (string, error) {
	var txID string
	params := map[string]json.RawMessage{"transaction": payload}
	if err := c.call(ctx, "broadcastTransaction", params, &txID); err != nil {
		return "", err
	}
	return txID, nil
}
