// Package parentproxy implements executor.ParentQueryProxy as a
// JSON-RPC 2.0 HTTP client against the parent chain's RPC endpoint,
// using the {jsonrpc,id,method,params} request and
// {result,error{code,message}} response envelope.
package parentproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/consensus-shipyard/mono-ipc/topdown"
)

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("parent rpc error %d: %s", e.Code, e.Message)
}

// Client is a ParentQueryProxy backed by a remote parent-chain RPC
// endpoint.
type Client struct {
	endpoint string
	authTok  string
	http     *http.Client
	nextID   int
}

// New creates a Client targeting endpoint. authToken is sent as a
// Bearer token if non-empty.
func New(endpoint, authToken string) *Client {
	return &Client{
		endpoint: endpoint,
		authTok:  authToken,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	c.nextID++
	req := request{JSONRPC: "2.0", ID: c.nextID, Method: method, Params: params}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.authTok != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.authTok)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response for %s: %w", method, err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(envelope.Result, out)
}

func (c *Client) GetGenesisEpoch(ctx context.Context) (topdown.BlockHeight, error) {
	var height topdown.BlockHeight
	err := c.call(ctx, "parent_getGenesisEpoch", nil, &height)
	return height, err
}

func (c *Client) GetBlockHash(ctx context.Context, height topdown.BlockHeight) (topdown.BlockHash, error) {
	var hex string
	if err := c.call(ctx, "parent_getBlockHash", []any{height}, &hex); err != nil {
		return nil, err
	}
	if hex == "" {
		return nil, nil // null round
	}
	return topdown.BlockHash(hex), nil
}

func (c *Client) GetValidatorChanges(ctx context.Context, height topdown.BlockHeight) ([]topdown.StakingChangeRequest, error) {
	var changes []topdown.StakingChangeRequest
	err := c.call(ctx, "parent_getValidatorChanges", []any{height}, &changes)
	return changes, err
}

func (c *Client) GetTopDownMsgs(ctx context.Context, height topdown.BlockHeight) ([]topdown.CrossMessage, error) {
	var msgs []topdown.CrossMessage
	err := c.call(ctx, "parent_getTopDownMsgs", []any{height}, &msgs)
	return msgs, err
}

func (c *Client) GetChainHeadHeight(ctx context.Context) (topdown.BlockHeight, error) {
	var height topdown.BlockHeight
	err := c.call(ctx, "parent_getChainHeadHeight", nil, &height)
	return height, err
}
