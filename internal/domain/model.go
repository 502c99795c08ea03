package domain

// Kind of a contract-emitted event after normalization.
type EventKind string

const (
	// KindTipSent is the only kind consumed by downstream aggregation.
	KindTipSent EventKind = "tip-sent"
	// KindTipCategorized carries a category tag for an already emitted tip.
	// It is correlated to the original tip by TipID on the mirror side.
	KindTipCategorized EventKind = "tip-categorized"
)

// TipEvent is the canonical normalized record produced by both decoders.
// Immutable once created; the store never mutates or deletes one.
type TipEvent struct {
	TxID        string    `json:"txId"`
	BlockHeight uint64    `json:"blockHeight"`
	Timestamp   int64     `json:"timestamp"` // epoch seconds, UTC
	Contract    string    `json:"contract"`
	Kind        EventKind `json:"kind"`
	TipID       uint64    `json:"tipId"`
	Sender      string    `json:"sender"`
	Recipient   string    `json:"recipient"`

	// Amount, Fee and NetAmount are micro-units. Pointers so that an
	// absent field is never conflated with a legitimate zero.
	Amount    *uint64 `json:"amount,omitempty"`
	Fee       *uint64 `json:"fee,omitempty"`
	NetAmount *uint64 `json:"netAmount,omitempty"`

	Message string `json:"message"`

	// Category is set only on tip-categorized events.
	Category *uint64 `json:"category,omitempty"`
}

// AmountOrZero is the summing view of the optional amount.
func (e *TipEvent) AmountOrZero() uint64 { return orZero(e.Amount) }

// FeeOrZero is the summing view of the optional fee.
func (e *TipEvent) FeeOrZero() uint64 { return orZero(e.Fee) }

// Involves reports whether addr is either leg of the tip.
func (e *TipEvent) Involves(addr string) bool {
	return e.Sender == addr || e.Recipient == addr
}

// AggregateStats is a pure reduction over the current event set.
// Recomputed on read, never persisted.
type AggregateStats struct {
	TotalTips        int    `json:"totalTips"`
	TotalVolume      uint64 `json:"totalVolume"`
	TotalFees        uint64 `json:"totalFees"`
	UniqueSenders    int    `json:"uniqueSenders"`
	UniqueRecipients int    `json:"uniqueRecipients"`
}

// LeaderboardEntry is the per-address fold of every tip, crediting the
// sender leg and the recipient leg separately.
type LeaderboardEntry struct {
	Address       string `json:"address"`
	TotalSent     uint64 `json:"totalSent"`
	TipsSent      uint64 `json:"tipsSent"`
	TotalReceived uint64 `json:"totalReceived"`
	TipsReceived  uint64 `json:"tipsReceived"`
}

// Uint returns a pointer to v, for populating optional micro-unit fields.
func Uint(v uint64) *uint64 { return &v }

func orZero(p *uint64) uint64 {
	if p == nil {
		return 0
	}
	return *p
}
