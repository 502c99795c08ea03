package extract

import (
	"regexp"
	"strconv"
	"time"

	"tipstream/internal/domain"
)

// The explorer feed renders contract print values as Clarity reprs, a
// human-readable debug format rather than JSON. The repr is not a strict
// grammar, so every field is scraped independently and a partial or
// truncated repr degrades to defaults instead of failing the pipeline.
//
// Clarity tuples print their keys sorted, so "amount" always precedes
// "net-amount" and the plain amount pattern matches the right field.
var (
	reprEvent     = regexp.MustCompile(`event\s+u?"([^"]+)"`)
	reprSender    = regexp.MustCompile(`(?i)sender\s+'([A-Z0-9]+)`)
	reprRecipient = regexp.MustCompile(`(?i)recipient\s+'([A-Z0-9]+)`)
	reprAmount    = regexp.MustCompile(`amount\s+u(\d+)`)
	reprFee       = regexp.MustCompile(`fee\s+u(\d+)`)
	reprMessage   = regexp.MustCompile(`message\s+u"([^"]*)"`)
	reprTipID     = regexp.MustCompile(`tip-id\s+u(\d+)`)
	reprCategory  = regexp.MustCompile(`category\s+u(\d+)`)
)

// ReprFields is the raw scrape result. Missing numeric sub-matches
// default to "0" (amount, tip-id) or stay empty (fee, category) so the
// caller can still tell an omitted fee apart from a zero one.
type ReprFields struct {
	Event     string
	Sender    string
	Recipient string
	Amount    string
	Fee       string
	Message   string
	TipID     string
	Category  string
}

// ParseRepr scrapes one repr string. ok is false when the event literal
// itself is missing; everything else is optional.
func ParseRepr(repr string) (f ReprFields, ok bool) {
	m := reprEvent.FindStringSubmatch(repr)
	if m == nil {
		return ReprFields{}, false
	}
	f.Event = m[1]

	f.Sender = group(reprSender, repr)
	f.Recipient = group(reprRecipient, repr)
	f.Message = group(reprMessage, repr)
	f.Fee = group(reprFee, repr)
	f.Category = group(reprCategory, repr)

	f.Amount = group(reprAmount, repr)
	if f.Amount == "" {
		f.Amount = "0"
	}
	f.TipID = group(reprTipID, repr)
	if f.TipID == "" {
		f.TipID = "0"
	}
	return f, true
}

func group(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// ReprDecoder is the client-side twin of ChainhookDecoder: same
// normalized output, different wire grammar.
type ReprDecoder struct {
	Now func() time.Time // defaults to time.Now
}

func (d *ReprDecoder) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Decode turns one explorer contract event into a TipEvent, or nil when
// the repr does not carry a known tip kind. blockTime is epoch seconds;
// zero falls back to the decoder clock.
func (d *ReprDecoder) Decode(txID, contract string, blockTime int64, repr string) *domain.TipEvent {
	f, ok := ParseRepr(repr)
	if !ok {
		return nil
	}

	kind := domain.EventKind(f.Event)
	if kind != domain.KindTipSent && kind != domain.KindTipCategorized {
		return nil
	}

	ts := blockTime
	if ts <= 0 {
		ts = d.now().Unix()
	}

	ev := &domain.TipEvent{
		TxID:      txID,
		Timestamp: ts,
		Contract:  contract,
		Kind:      kind,
		TipID:     parseUint(f.TipID),
		Sender:    f.Sender,
		Recipient: f.Recipient,
		Amount:    domain.Uint(parseUint(f.Amount)),
		Message:   f.Message,
	}
	if f.Fee != "" {
		ev.Fee = domain.Uint(parseUint(f.Fee))
	}
	if f.Category != "" {
		ev.Category = domain.Uint(parseUint(f.Category))
	}
	if ev.Amount != nil && ev.Fee != nil && *ev.Amount >= *ev.Fee {
		ev.NetAmount = domain.Uint(*ev.Amount - *ev.Fee)
	}
	return ev
}

func parseUint(s string) uint64 {
	v, _ := strconv.ParseUint(s, 10, 64)
	return v
}
