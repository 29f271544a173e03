// Package client provides support to access the node's public API.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/go-resty/resty/v2"
)

// Error represents an error response from the node.
type Error struct {
	StatusCode int               `json:"-"`
	Message    string            `json:"error"`
	Reason     string            `json:"reason,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("node responded %d: %s: %s", e.StatusCode, e.Reason, e.Message)
	}
	return fmt.Sprintf("node responded %d: %s", e.StatusCode, e.Message)
}

// IsRejected reports whether the node rejected a block.
func IsRejected(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.StatusCode == http.StatusConflict
}

// Verify is the result of asking the node to verify its chain.
type Verify struct {
	Valid  bool   `json:"valid"`
	Length int    `json:"length"`
	Error  string `json:"error,omitempty"`
}

// Pending is a payload waiting in the node's mempool.
type Pending struct {
	ID       string `json:"id"`
	Data     string `json:"data"`
	Level    uint   `json:"level"`
	Received string `json:"received"`
}

type payload struct {
	Data  string `json:"data"`
	Level uint   `json:"level"`
}

// =============================================================================

// Client provides access to a node's v1 routes.
type Client struct {
	rc *resty.Client
}

// New constructs a client for the node listening at the specified base url.
func New(baseURL string) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(2*time.Minute).
		SetHeader("Content-Type", "application/json")

	return &Client{rc: rc}
}

// Status returns the node's chain summary.
func (c *Client) Status(ctx context.Context) (state.Status, error) {
	var status state.Status
	if err := c.do(ctx, http.MethodGet, "/v1/chain/status", nil, &status); err != nil {
		return state.Status{}, err
	}

	return status, nil
}

// Verify asks the node to check its full chain.
func (c *Client) Verify(ctx context.Context) (Verify, error) {
	var v Verify
	if err := c.do(ctx, http.MethodGet, "/v1/chain/verify", nil, &v); err != nil {
		return Verify{}, err
	}

	return v, nil
}

// Blocks returns the blocks between from and to inclusive. A to of "latest"
// reads through the tip.
func (c *Client) Blocks(ctx context.Context, from uint64, to string) ([]database.Block, error) {
	var blockData []database.BlockData
	path := fmt.Sprintf("/v1/blocks/list/%d/%s", from, to)
	if err := c.do(ctx, http.MethodGet, path, nil, &blockData); err != nil {
		return nil, err
	}

	return toBlocks(blockData)
}

// Block returns the block at the specified index.
func (c *Client) Block(ctx context.Context, index uint64) (database.Block, error) {
	var blockData database.BlockData
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/blocks/%d", index), nil, &blockData); err != nil {
		return database.Block{}, err
	}

	return database.ToBlock(blockData)
}

// Mine asks the node to mine the payload into the next block and waits
// for the block to be appended.
func (c *Client) Mine(ctx context.Context, data string, level uint) (database.Block, error) {
	var blockData database.BlockData
	if err := c.do(ctx, http.MethodPost, "/v1/blocks/mine", payload{Data: data, Level: level}, &blockData); err != nil {
		return database.Block{}, err
	}

	return database.ToBlock(blockData)
}

// Submit sends a block mined elsewhere to the node.
func (c *Client) Submit(ctx context.Context, block database.Block) error {
	return c.do(ctx, http.MethodPost, "/v1/blocks/submit", database.NewBlockData(block), nil)
}

// AddData queues a payload for the node's worker to mine.
func (c *Client) AddData(ctx context.Context, data string, level uint) (Pending, error) {
	var p Pending
	if err := c.do(ctx, http.MethodPost, "/v1/data/add", payload{Data: data, Level: level}, &p); err != nil {
		return Pending{}, err
	}

	return p, nil
}

// Pending returns the payloads waiting to be mined.
func (c *Client) Pending(ctx context.Context) ([]Pending, error) {
	var p []Pending
	if err := c.do(ctx, http.MethodGet, "/v1/data/pending", nil, &p); err != nil {
		return nil, err
	}

	return p, nil
}

// =============================================================================

func (c *Client) do(ctx context.Context, method string, path string, body any, result any) error {
	var apiErr Error

	req := c.rc.R().
		SetContext(ctx).
		SetError(&apiErr)

	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.IsError() {
		apiErr.StatusCode = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode())
		}
		return &apiErr
	}

	return nil
}

func toBlocks(blockData []database.BlockData) ([]database.Block, error) {
	blocks := make([]database.Block, len(blockData))
	for i, bd := range blockData {
		block, err := database.ToBlock(bd)
		if err != nil {
			return nil, err
		}
		blocks[i] = block
	}

	return blocks, nil
}
