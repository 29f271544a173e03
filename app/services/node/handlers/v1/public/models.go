package public

import (
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/mempool"
)

// NewPayload is what a client sends to mine or queue a payload. A level of
// zero lets the node pick the level.
type NewPayload struct {
	Data  string `json:"data" validate:"required"`
	Level uint   `json:"level" validate:"lte=64"`
}

type verify struct {
	Valid  bool   `json:"valid"`
	Length int    `json:"length"`
	Error  string `json:"error,omitempty"`
}

type pending struct {
	ID       string `json:"id"`
	Data     string `json:"data"`
	Level    uint   `json:"level"`
	Received string `json:"received"`
}

func newPending(entry mempool.Entry) pending {
	return pending{
		ID:       entry.ID,
		Data:     string(entry.Data),
		Level:    entry.Level,
		Received: entry.Received.Format(time.RFC3339Nano),
	}
}

func toPending(entries []mempool.Entry) []pending {
	out := make([]pending, len(entries))
	for i, entry := range entries {
		out[i] = newPending(entry)
	}
	return out
}

func toBlockData(blocks []database.Block) []database.BlockData {
	out := make([]database.BlockData, len(blocks))
	for i, block := range blocks {
		out[i] = database.NewBlockData(block)
	}
	return out
}
