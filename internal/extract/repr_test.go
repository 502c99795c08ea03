package extract

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tipstream/internal/domain"
)

// Clarity tuples print keys sorted, so this mirrors the real repr layout.
const tipSentRepr = `(tuple (amount u1000000) (event u"tip-sent") (fee u5000) (message u"thanks!") (net-amount u995000) (recipient 'SP2RECIPIENT) (sender 'SP1SENDER) (tip-id u7))`

func TestParseRepr_FullTuple(t *testing.T) {
	t.Parallel()

	f, ok := ParseRepr(tipSentRepr)
	require.True(t, ok)
	assert.Equal(t, "tip-sent", f.Event)
	assert.Equal(t, "SP1SENDER", f.Sender)
	assert.Equal(t, "SP2RECIPIENT", f.Recipient)
	assert.Equal(t, "1000000", f.Amount)
	assert.Equal(t, "5000", f.Fee)
	assert.Equal(t, "thanks!", f.Message)
	assert.Equal(t, "7", f.TipID)
	assert.Equal(t, "", f.Category)
}

// The repr format is not a strict grammar: a truncated repr still parses
// with defaults instead of failing.
func TestParseRepr_PartialTuple(t *testing.T) {
	t.Parallel()

	f, ok := ParseRepr(`(tuple (event u"tip-sent") (recipient 'SP2RECIPIENT)`)
	require.True(t, ok)
	assert.Equal(t, "tip-sent", f.Event)
	assert.Equal(t, "", f.Sender)
	assert.Equal(t, "SP2RECIPIENT", f.Recipient)
	assert.Equal(t, "0", f.Amount)
	assert.Equal(t, "0", f.TipID)
	assert.Equal(t, "", f.Fee)
	assert.Equal(t, "", f.Message)
}

func TestParseRepr_NoEventLiteral(t *testing.T) {
	t.Parallel()

	_, ok := ParseRepr(`(tuple (amount u100) (sender 'SP1SENDER))`)
	assert.False(t, ok)

	_, ok = ParseRepr("")
	assert.False(t, ok)
}

func TestReprDecoder_TipSent(t *testing.T) {
	t.Parallel()

	d := &ReprDecoder{Now: fixedClock}
	ev := d.Decode("0xabc", testContract, 1700000000, tipSentRepr)
	require.NotNil(t, ev)

	assert.Equal(t, domain.KindTipSent, ev.Kind)
	assert.Equal(t, "0xabc", ev.TxID)
	assert.Equal(t, int64(1700000000), ev.Timestamp)
	assert.Equal(t, uint64(7), ev.TipID)
	require.NotNil(t, ev.Amount)
	assert.Equal(t, uint64(1000000), *ev.Amount)
	require.NotNil(t, ev.Fee)
	assert.Equal(t, uint64(5000), *ev.Fee)
	require.NotNil(t, ev.NetAmount)
	assert.Equal(t, uint64(995000), *ev.NetAmount)
	assert.Nil(t, ev.Category)
}

func TestReprDecoder_TipCategorized(t *testing.T) {
	t.Parallel()

	repr := `(tuple (category u3) (event u"tip-categorized") (tip-id u7))`
	d := &ReprDecoder{Now: fixedClock}

	ev := d.Decode("0xdef", testContract, 1700000100, repr)
	require.NotNil(t, ev)
	assert.Equal(t, domain.KindTipCategorized, ev.Kind)
	assert.Equal(t, uint64(7), ev.TipID)
	require.NotNil(t, ev.Category)
	assert.Equal(t, uint64(3), *ev.Category)
}

func TestReprDecoder_UnknownKindDropped(t *testing.T) {
	t.Parallel()

	d := &ReprDecoder{Now: fixedClock}
	assert.Nil(t, d.Decode("0x1", testContract, 1700000000, `(tuple (event u"profile-updated"))`))
	assert.Nil(t, d.Decode("0x1", testContract, 1700000000, "garbage"))
}

func TestReprDecoder_ClockFallback(t *testing.T) {
	t.Parallel()

	d := &ReprDecoder{Now: fixedClock}
	ev := d.Decode("0x1", testContract, 0, tipSentRepr)
	require.NotNil(t, ev)
	assert.Equal(t, fixedClock().Unix(), ev.Timestamp)
}

// Conformance: the structured decoder and the repr decoder must produce
// the same normalized event for the same logical chain event. This is
// the contract that keeps the two grammars from drifting apart.
func TestDecoderConformance(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		amount uint64
		fee    uint64
		tipID  uint64
		msg    string
	}{
		{"typical", 1000000, 5000, 7, "thanks!"},
		{"zero amount", 0, 0, 1, ""},
		{"large", 10000000000, 50000000, 99999, "gg"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			chd := &ChainhookDecoder{Now: fixedClock}
			p := batchPayload(42, 1700000000, printEvent(t, EventTypeSmartContract, map[string]any{
				"event":      "tip-sent",
				"tip-id":     tc.tipID,
				"sender":     "SP1SENDER",
				"recipient":  "SP2RECIPIENT",
				"amount":     tc.amount,
				"fee":        tc.fee,
				"net-amount": tc.amount - tc.fee,
				"message":    tc.msg,
			}))
			fromHook, _ := chd.FromPayload(p)
			require.Len(t, fromHook, 1)

			repr := fmt.Sprintf(
				`(tuple (amount u%d) (event u"tip-sent") (fee u%d) (message u"%s") (net-amount u%d) (recipient 'SP2RECIPIENT) (sender 'SP1SENDER) (tip-id u%d))`,
				tc.amount, tc.fee, tc.msg, tc.amount-tc.fee, tc.tipID,
			)
			rd := &ReprDecoder{Now: fixedClock}
			fromRepr := rd.Decode("0xtx1", testContract, 1700000000, repr)
			require.NotNil(t, fromRepr)

			// The mirror feed carries no block height; align before comparing.
			got := *fromRepr
			got.BlockHeight = fromHook[0].BlockHeight
			assert.Equal(t, fromHook[0], got)
		})
	}
}
