package mempool

import (
	"fmt"
	"sort"
)

// List of different sort strategies.
const (
	StrategyFIFO    = "fifo"
	StrategyEasiest = "easiest"
)

// SortStrategy defines a function that takes the pending entries and
// returns howMany of them in the order they should be mined. Receiving -1
// for howMany must return all the entries in the strategy's ordering.
type SortStrategy func(entries []Entry, howMany int) []Entry

// Map of different sort strategies with functions.
var strategies = map[string]SortStrategy{
	StrategyFIFO:    fifoSort,
	StrategyEasiest: easiestSort,
}

// Retrieve returns the specified sort strategy function.
func Retrieve(strategy string) (SortStrategy, error) {
	fn, exists := strategies[strategy]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}

	return fn, nil
}

// fifoSort returns the entries in the order they were received.
var fifoSort SortStrategy = func(entries []Entry, howMany int) []Entry {
	sort.Sort(byReceived(entries))
	return limit(entries, howMany)
}

// easiestSort returns the entries with the lowest difficulty level first
// so quick blocks are not stuck behind slow ones. Ties keep arrival order.
var easiestSort SortStrategy = func(entries []Entry, howMany int) []Entry {
	sort.Sort(byReceived(entries))
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Level < entries[j].Level
	})
	return limit(entries, howMany)
}

func limit(entries []Entry, howMany int) []Entry {
	if howMany == -1 || howMany > len(entries) {
		return entries
	}

	return entries[:howMany]
}

// =============================================================================

// byReceived provides sorting support by the time an entry was received.
type byReceived []Entry

// Len returns the number of entries in the list.
func (br byReceived) Len() int {
	return len(br)
}

// Less helps to sort the list by arrival in ascending order, falling back
// to the id so the order is stable for entries received at the same time.
func (br byReceived) Less(i, j int) bool {
	if br[i].Received.Equal(br[j].Received) {
		return br[i].ID < br[j].ID
	}

	return br[i].Received.Before(br[j].Received)
}

// Swap moves entries in the order of arrival.
func (br byReceived) Swap(i, j int) {
	br[i], br[j] = br[j], br[i]
}
