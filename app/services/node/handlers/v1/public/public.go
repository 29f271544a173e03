// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/powchain/business/sys/validate"
	"github.com/ardanlabs/powchain/business/web/errs"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/events"
	"github.com/ardanlabs/powchain/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of chain endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Status returns a summary of the chain.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveStatus(), http.StatusOK)
}

// Verify walks the full chain checking every block.
func (h Handlers) Verify(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := verify{
		Valid:  true,
		Length: h.State.RetrieveStatus().Length,
	}

	if err := h.State.Verify(); err != nil {
		resp.Valid = false
		resp.Error = err.Error()
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// BlocksByNumber returns all the blocks based on the specified to/from values.
func (h Handlers) BlocksByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	from, err := strconv.ParseUint(web.Param(r, "from"), 10, 64)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("invalid from: %w", err), http.StatusBadRequest)
	}

	var to uint64
	switch toStr := web.Param(r, "to"); toStr {
	case "latest", "":
		to = h.State.RetrieveLatestBlock().Index
	default:
		to, err = strconv.ParseUint(toStr, 10, 64)
		if err != nil {
			return errs.NewTrusted(fmt.Errorf("invalid to: %w", err), http.StatusBadRequest)
		}
	}

	if from > to {
		return errs.NewTrusted(errors.New("from is greater than to"), http.StatusBadRequest)
	}

	blocks := h.State.QueryBlocksByNumber(from, to)
	if len(blocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	return web.Respond(ctx, w, toBlockData(blocks), http.StatusOK)
}

// BlockByIndex returns the block at the specified index.
func (h Handlers) BlockByIndex(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	index, err := strconv.ParseUint(web.Param(r, "index"), 10, 64)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("invalid index: %w", err), http.StatusBadRequest)
	}

	block, err := h.State.RetrieveBlock(index)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return err
	}

	return web.Respond(ctx, w, database.NewBlockData(block), http.StatusOK)
}

// Mine performs the proof of work for the payload and appends the block.
// The request is held until the block is mined or the client goes away.
func (h Handlers) Mine(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	np, err := decodePayload(r)
	if err != nil {
		return err
	}

	block, err := h.State.MineBlock(ctx, []byte(np.Data), np.Level)
	if err != nil {
		return toTrusted(err)
	}

	return web.Respond(ctx, w, database.NewBlockData(block), http.StatusCreated)
}

// SubmitBlock accepts a block mined somewhere else.
func (h Handlers) SubmitBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var blockData database.BlockData
	if err := web.Decode(r, &blockData); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	block, err := database.ToBlock(blockData)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := h.State.SubmitBlock(block); err != nil {
		return toTrusted(err)
	}

	return web.Respond(ctx, w, database.NewBlockData(block), http.StatusCreated)
}

// AddData queues a payload to be mined by the worker.
func (h Handlers) AddData(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	np, err := decodePayload(r)
	if err != nil {
		return err
	}

	entry, err := h.State.SubmitData([]byte(np.Data), np.Level)
	if err != nil {
		return toTrusted(err)
	}

	return web.Respond(ctx, w, newPending(entry), http.StatusAccepted)
}

// Pending returns the payloads waiting to be mined.
func (h Handlers) Pending(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, toPending(h.State.RetrieveMempool()), http.StatusOK)
}

// =============================================================================

func decodePayload(r *http.Request) (NewPayload, error) {
	var np NewPayload
	if err := web.Decode(r, &np); err != nil {
		return NewPayload{}, errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := validate.Check(np); err != nil {
		return NewPayload{}, err
	}

	return np, nil
}

// toTrusted maps the errors the state can return for a request into the
// status the client should see.
func toTrusted(err error) error {
	switch {
	case database.IsRejected(err):
		return errs.FromRejected(err)
	case errors.Is(err, state.ErrInvalidLevel), errors.Is(err, state.ErrPlatformMismatch):
		return errs.NewTrusted(err, http.StatusBadRequest)
	case errors.Is(err, database.ErrMiningExhausted):
		return errs.NewTrusted(err, http.StatusUnprocessableEntity)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errs.NewTrusted(err, http.StatusServiceUnavailable)
	}
	return err
}
