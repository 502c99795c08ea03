package extract

import (
	"encoding/json"
	"time"

	"tipstream/internal/domain"
)

// Receipt event types that can carry a contract print payload.
const (
	EventTypeSmartContract = "SmartContractEvent"
	EventTypePrint         = "print_event"
)

// Payload is the chainhook webhook batch schema. Everything below the
// top level is schema-variable upstream, so every field is optional and
// decoding must never panic.
type Payload struct {
	Apply []Block `json:"apply"`
}

type Block struct {
	BlockIdentifier BlockIdentifier `json:"block_identifier"`
	Timestamp       int64           `json:"timestamp"` // epoch seconds
	Transactions    []Transaction   `json:"transactions"`
}

type BlockIdentifier struct {
	Index uint64 `json:"index"`
	Hash  string `json:"hash"`
}

type Transaction struct {
	TransactionIdentifier TransactionIdentifier `json:"transaction_identifier"`
	Metadata              TransactionMetadata   `json:"metadata"`
}

type TransactionIdentifier struct {
	Hash string `json:"hash"`
}

type TransactionMetadata struct {
	Success bool    `json:"success"`
	Receipt Receipt `json:"receipt"`
}

type Receipt struct {
	Events []ReceiptEvent `json:"events"`
}

// ReceiptEvent is one entry of metadata.receipt.events[]. Depending on
// the upstream version the print payload sits under "data" or
// "contract_event", and the value under "value" or "raw_value".
type ReceiptEvent struct {
	Type          string     `json:"type"`
	Data          *EventData `json:"data"`
	ContractEvent *EventData `json:"contract_event"`
}

type EventData struct {
	ContractIdentifier string          `json:"contract_identifier"`
	Topic              string          `json:"topic"`
	Value              json.RawMessage `json:"value"`
	RawValue           json.RawMessage `json:"raw_value"`
}

// tipValue is the embedded print tuple. Numeric fields are pointers:
// an absent key must stay absent, a literal 0 must stay 0.
type tipValue struct {
	Event     string  `json:"event"`
	TipID     *uint64 `json:"tip-id"`
	Sender    string  `json:"sender"`
	Recipient string  `json:"recipient"`
	Amount    *uint64 `json:"amount"`
	Fee       *uint64 `json:"fee"`
	NetAmount *uint64 `json:"net-amount"`
	Message   string  `json:"message"`
}

// ChainhookDecoder turns webhook batch payloads into normalized tip
// events. Pure apart from the injected clock; any parse miss yields nil
// for that entry and is counted by the caller, never surfaced.
type ChainhookDecoder struct {
	Now func() time.Time // defaults to time.Now
}

func (d *ChainhookDecoder) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// FromPayload walks apply[].transactions[].metadata.receipt.events[] and
// returns every qualifying tip-sent event plus the count of receipt
// entries that were inspected and dropped.
func (d *ChainhookDecoder) FromPayload(p *Payload) (events []domain.TipEvent, dropped int) {
	if p == nil {
		return nil, 0
	}

	for bi := range p.Apply {
		blk := &p.Apply[bi]
		for ti := range blk.Transactions {
			tx := &blk.Transactions[ti]
			for ei := range tx.Metadata.Receipt.Events {
				ev := d.decodeReceiptEvent(blk, tx, &tx.Metadata.Receipt.Events[ei])
				if ev == nil {
					dropped++
					continue
				}
				events = append(events, *ev)
			}
		}
	}
	return events, dropped
}

func (d *ChainhookDecoder) decodeReceiptEvent(blk *Block, tx *Transaction, re *ReceiptEvent) *domain.TipEvent {
	if re.Type != EventTypeSmartContract && re.Type != EventTypePrint {
		return nil
	}

	data := re.Data
	if data == nil {
		data = re.ContractEvent
	}
	if data == nil {
		return nil
	}

	raw := data.Value
	if len(raw) == 0 {
		raw = data.RawValue
	}
	if len(raw) == 0 {
		return nil
	}

	var val tipValue
	if err := json.Unmarshal(raw, &val); err != nil {
		return nil
	}
	if val.Event != string(domain.KindTipSent) {
		return nil
	}

	ts := blk.Timestamp
	if ts <= 0 {
		ts = d.now().Unix()
	}

	ev := &domain.TipEvent{
		TxID:        tx.TransactionIdentifier.Hash,
		BlockHeight: blk.BlockIdentifier.Index,
		Timestamp:   ts,
		Contract:    data.ContractIdentifier,
		Kind:        domain.KindTipSent,
		Sender:      val.Sender,
		Recipient:   val.Recipient,
		Amount:      val.Amount,
		Fee:         val.Fee,
		NetAmount:   val.NetAmount,
		Message:     val.Message,
	}
	if val.TipID != nil {
		ev.TipID = *val.TipID
	}

	// Some upstreams omit net-amount even when both inputs are present.
	if ev.NetAmount == nil && val.Amount != nil && val.Fee != nil && *val.Amount >= *val.Fee {
		ev.NetAmount = domain.Uint(*val.Amount - *val.Fee)
	}

	return ev
}
