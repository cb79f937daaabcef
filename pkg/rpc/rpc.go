package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	lineage "github.com/coinlineage/lineage/pkg"
)

// interface guards ensure FullNode implements the collaborator interfaces
var _ lineage.Ledger = (*FullNode)(nil)
var _ lineage.ScopedEvaluator = (*FullNode)(nil)
var _ lineage.SpendSource = (*FullNode)(nil)

// FullNode talks to a full node's RPC service: HTTPS POST of a JSON
// object to https://host:port/<endpoint>, answered with a JSON object
// carrying "success" and, on failure, "error".
type FullNode struct {
	url        string
	client     *http.Client
	retries    int
	retryDelay time.Duration
	log        *log.Logger
}

// NewFullNode returns a lineage.Ledger and lineage.SpendEvaluator that
// uses the full node RPC, authenticating with the node's private cert.
func NewFullNode(conf lineage.Config, logger *log.Logger) (*FullNode, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	tc, err := tlsConfig(conf, logger)
	if err != nil {
		return nil, err
	}
	client := &http.Client{
		Transport: &http.Transport{TLSClientConfig: tc},
		Timeout:   time.Duration(conf.Node.TimeoutSeconds) * time.Second,
	}
	url := fmt.Sprintf("https://%s:%d", conf.Node.Host, conf.Node.Port)
	return NewFullNodeWithClient(url, client, conf.Node.Retries, time.Duration(conf.Node.RetryDelayMs)*time.Millisecond, logger), nil
}

func NewFullNodeWithClient(url string, client *http.Client, retries int, retryDelay time.Duration, logger *log.Logger) *FullNode {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if retries < 0 {
		retries = 0
	}
	return &FullNode{url: strings.TrimSuffix(url, "/"), client: client, retries: retries, retryDelay: retryDelay, log: logger}
}

type rpcStatus struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// transientError marks failures worth another attempt: the request may
// not have reached the node, or the node was not ready for it.
type transientError struct {
	err error
}

func (e transientError) Error() string { return e.err.Error() }
func (e transientError) Unwrap() error { return e.err }

// request posts params to endpoint and decodes the reply into result.
// Transport failures are retried with exponential backoff; answers from
// the node (including errors) are not.
func (f *FullNode) request(ctx context.Context, endpoint string, params any, result any) error {
	payload, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("rpc %s: marshal request: %v", endpoint, err)
	}
	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			delay := f.retryDelay << (attempt - 1)
			f.log.Printf("[!] rpc %s: attempt %d failed (%v), retrying in %v", endpoint, attempt, lastErr, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		body, err := f.post(ctx, endpoint, payload)
		if err == nil {
			return decodeReply(endpoint, body, result)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var transient transientError
		if !errors.As(err, &transient) {
			return err
		}
		lastErr = err
	}
	return lineage.WrapErr(lineage.NotAvailable, lastErr, "rpc %s: giving up after %d attempts", endpoint, f.retries+1)
}

func (f *FullNode) post(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", f.url+"/"+endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("rpc %s: request: %v", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := f.client.Do(req)
	if err != nil {
		return nil, transientError{fmt.Errorf("rpc %s: transport: %w", endpoint, err)}
	}
	// we MUST read all of res.Body and call res.Close,
	// otherwise the underlying connection cannot be re-used.
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, transientError{fmt.Errorf("rpc %s: read response: %w", endpoint, err)}
	}
	if res.StatusCode >= 500 {
		return nil, transientError{fmt.Errorf("rpc %s: status code: %s", endpoint, res.Status)}
	}
	if res.StatusCode != http.StatusOK {
		return nil, lineage.NewErr(lineage.NotAvailable, "rpc %s: status code: %s", endpoint, res.Status)
	}
	return body, nil
}

func decodeReply(endpoint string, body []byte, result any) error {
	var status rpcStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return fmt.Errorf("rpc %s: unmarshal response: %v", endpoint, err)
	}
	if !status.Success {
		if isNotFoundMessage(status.Error) {
			return lineage.NewErr(lineage.NotFound, "rpc %s: %s", endpoint, status.Error)
		}
		return lineage.NewErr(lineage.NotAvailable, "rpc %s: node returned error: %s", endpoint, status.Error)
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("rpc %s: unmarshal result: %v | %v", endpoint, err, string(body))
	}
	return nil
}

// The node reports missing records as free-form errors, e.g.
// "Coin record 0x.. not found" or "Height not in blockchain: 12".
func isNotFoundMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "not found") || strings.Contains(msg, "not in blockchain")
}

func (f *FullNode) GetCoinRecord(ctx context.Context, id lineage.CoinID) (lineage.CoinRecord, error) {
	var res struct {
		CoinRecord *lineage.CoinRecord `json:"coin_record"`
	}
	err := f.request(ctx, "get_coin_record_by_name", map[string]any{"name": id}, &res)
	if err != nil {
		return lineage.CoinRecord{}, err
	}
	if res.CoinRecord == nil {
		return lineage.CoinRecord{}, lineage.NewErr(lineage.NotFound, "coin record %s not found", id)
	}
	if res.CoinRecord.ID() != id {
		return lineage.CoinRecord{}, lineage.NewErr(lineage.LedgerInconsistency, "node returned coin %s for %s", res.CoinRecord.ID(), id)
	}
	return *res.CoinRecord, nil
}

func (f *FullNode) GetBlockRecord(ctx context.Context, height uint32) (lineage.BlockRecord, error) {
	var res struct {
		BlockRecord *lineage.BlockRecord `json:"block_record"`
	}
	err := f.request(ctx, "get_block_record_by_height", map[string]any{"height": height}, &res)
	if err != nil {
		return lineage.BlockRecord{}, err
	}
	if res.BlockRecord == nil {
		return lineage.BlockRecord{}, lineage.NewErr(lineage.NotFound, "block height %d not found", height)
	}
	return *res.BlockRecord, nil
}

func (f *FullNode) GetAdditionsAndRemovals(ctx context.Context, headerHash lineage.Bytes32) ([]lineage.CoinRecord, []lineage.CoinRecord, error) {
	var res struct {
		Additions []lineage.CoinRecord `json:"additions"`
		Removals  []lineage.CoinRecord `json:"removals"`
	}
	err := f.request(ctx, "get_additions_and_removals", map[string]any{"header_hash": headerHash}, &res)
	if err != nil {
		return nil, nil, err
	}
	return res.Additions, res.Removals, nil
}

func (f *FullNode) GetPuzzleAndSolution(ctx context.Context, id lineage.CoinID, height uint32) (lineage.CoinSpend, error) {
	var res struct {
		CoinSolution *lineage.CoinSpend `json:"coin_solution"`
	}
	err := f.request(ctx, "get_puzzle_and_solution", map[string]any{"coin_id": id, "height": height}, &res)
	if err != nil {
		return lineage.CoinSpend{}, err
	}
	if res.CoinSolution == nil {
		return lineage.CoinSpend{}, lineage.NewErr(lineage.NotFound, "no spend of %s at height %d", id, height)
	}
	spend := *res.CoinSolution
	spend.Height = height
	return spend, nil
}
