// File: internal/scanner/scanner.go
package scanner

// Scanner computes the next safe block range to scan. Blocks within the
// confirmation depth of the tip are never treated as final, which is what
// makes the relay reorg-safe. The range is recomputed from a fresh height
// every cycle so a node reporting a lower height than before (load-balanced
// RPC, clock skew) can never produce a negative-width range.
type Scanner struct {
	confirmations uint64
	lookback      uint64
}

// Range is an inclusive block range.
type Range struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

// Width returns the number of blocks in the range.
func (r Range) Width() uint64 {
	return r.To - r.From + 1
}

// New creates a scanner with the given confirmation depth and cold-start
// lookback margin.
func New(confirmations, lookback uint64) *Scanner {
	return &Scanner{confirmations: confirmations, lookback: lookback}
}

// NextRange returns the next range to scan given the committed checkpoint
// (nil on first run) and the current chain height. The second return value is
// false when there is nothing to scan, which is not an error; the driver
// skips fetching and sleeps.
func (s *Scanner) NextRange(checkpoint *uint64, height uint64) (Range, bool) {
	if height < s.confirmations {
		return Range{}, false
	}
	latestConfirmed := height - s.confirmations

	var from uint64
	if checkpoint == nil {
		// Cold start: bounded lookback instead of a full replay.
		if latestConfirmed > s.lookback {
			from = latestConfirmed - s.lookback
		}
	} else {
		from = *checkpoint + 1
	}

	if from > latestConfirmed {
		return Range{}, false
	}

	return Range{From: from, To: latestConfirmed}, true
}

// Confirmations returns the configured confirmation depth.
func (s *Scanner) Confirmations() uint64 {
	return s.confirmations
}
