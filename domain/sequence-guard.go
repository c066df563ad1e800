package domain

// Verdict classifies an incoming sequence number against the last
// accepted one for a symbol.
type Verdict int

const (
	SeqAccept Verdict = iota
	SeqStale
	SeqGap
)

func (v Verdict) String() string {
	switch v {
	case SeqAccept:
		return "accept"
	case SeqStale:
		return "stale"
	case SeqGap:
		return "gap"
	}
	return "unknown"
}

// SequenceGuard keeps per-symbol sequence bookkeeping. Tracking for a
// symbol activates only once a baseline has been assigned from a
// snapshot response; until then every update passes through
// unchecked. Coinbase stopped returning a sequence in pricebook
// responses after the Advanced Trade transition, so on that venue the
// guard currently stays dormant unless SetBaseline is wired up again.
type SequenceGuard struct {
	last map[string]int64
}

func NewSequenceGuard() *SequenceGuard {
	return &SequenceGuard{last: make(map[string]int64)}
}

// Classify returns the verdict for an incoming sequence number and,
// on accept with an active baseline, advances the baseline. A gap
// verdict performs no bookkeeping: the caller is expected to reset
// the symbol and schedule a resynchronization.
func (g *SequenceGuard) Classify(symbol string, seq int64) Verdict {
	last, ok := g.last[symbol]
	if !ok {
		return SeqAccept
	}
	if seq <= last {
		return SeqStale
	}
	if seq == last+1 {
		g.last[symbol] = seq
		return SeqAccept
	}
	return SeqGap
}

// SetBaseline establishes the reference point incremental updates are
// checked against, normally the sequence carried by a depth snapshot.
func (g *SequenceGuard) SetBaseline(symbol string, seq int64) {
	g.last[symbol] = seq
}

// Baseline reports the last accepted sequence for the symbol, if any.
func (g *SequenceGuard) Baseline(symbol string) (int64, bool) {
	last, ok := g.last[symbol]
	return last, ok
}

// Reset drops the baseline for one symbol only.
func (g *SequenceGuard) Reset(symbol string) {
	delete(g.last, symbol)
}
