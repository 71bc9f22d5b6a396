package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/escrowdex/pkg/abci"
	"github.com/uhyunpark/escrowdex/pkg/api"
	"github.com/uhyunpark/escrowdex/pkg/app/dex"
)

// nodeClient talks to a node's REST API
type nodeClient struct {
	base string
	http *http.Client
	// poll is how often waitReceipt asks for a receipt
	poll time.Duration
}

func newNodeClient(base string) *nodeClient {
	return &nodeClient{
		base: base,
		http: &http.Client{Timeout: 10 * time.Second},
		poll: 100 * time.Millisecond,
	}
}

func (c *nodeClient) get(ctx context.Context, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
}

func (c *nodeClient) exchange(ctx context.Context) (dex.ExchangeInfo, error) {
	var info dex.ExchangeInfo
	code, err := c.get(ctx, "/api/v1/exchange", &info)
	if err == nil && code != http.StatusOK {
		err = errors.Newf("GET /exchange: status %d", code)
	}
	return info, err
}

func (c *nodeClient) nonce(ctx context.Context, account common.Address) (uint64, error) {
	var resp api.NonceResponse
	code, err := c.get(ctx, "/api/v1/accounts/"+account.Hex()+"/nonce", &resp)
	if err == nil && code != http.StatusOK {
		err = errors.Newf("GET nonce: status %d", code)
	}
	return resp.Nonce, err
}

func (c *nodeClient) submit(ctx context.Context, raw []byte) (common.Hash, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v1/txs", bytes.NewReader(raw))
	if err != nil {
		return common.Hash{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return common.Hash{}, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusAccepted {
		var e api.ErrorResponse
		_ = json.Unmarshal(body, &e)
		return common.Hash{}, errors.Newf("submit rejected (%d %s): %s", resp.StatusCode, e.Error, e.Message)
	}
	var ok api.SubmitTxResponse
	if err := json.Unmarshal(body, &ok); err != nil {
		return common.Hash{}, err
	}
	return ok.TxHash, nil
}

// waitReceipt polls until the transaction is in a committed block
func (c *nodeClient) waitReceipt(ctx context.Context, hash common.Hash) (abci.TxResult, error) {
	for {
		var rec abci.TxResult
		code, err := c.get(ctx, "/api/v1/txs/"+hash.Hex(), &rec)
		if err != nil {
			return rec, err
		}
		if code == http.StatusOK {
			return rec, nil
		}
		if code != http.StatusNotFound {
			return rec, errors.Newf("GET receipt %s: status %d", hash.Hex(), code)
		}
		select {
		case <-ctx.Done():
			return rec, errors.Wrapf(ctx.Err(), "waiting for %s", hash.Hex())
		case <-time.After(c.poll):
		}
	}
}

// send submits raw and waits for it to execute successfully
func (c *nodeClient) send(ctx context.Context, raw []byte) (abci.TxResult, error) {
	hash, err := c.submit(ctx, raw)
	if err != nil {
		return abci.TxResult{}, err
	}
	rec, err := c.waitReceipt(ctx, hash)
	if err != nil {
		return rec, err
	}
	if !rec.Success {
		return rec, errors.Newf("%s %s failed: %s", rec.Type, hash.Hex(), rec.Error)
	}
	return rec, nil
}
