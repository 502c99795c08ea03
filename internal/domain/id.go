package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// MakeEventID builds the "<tx_id>:<tip_id>" dedupe key used for
// at-least-once webhook redelivery. TxID alone is not enough: one
// transaction can carry several tips (batch sends).
func MakeEventID(txID string, tipID uint64) string {
	return fmt.Sprintf("%s:%d", strings.ToLower(txID), tipID)
}

type ParsedEventID struct {
	TxID  string
	TipID uint64
}

func ParseEventID(id string) (ParsedEventID, error) {
	var out ParsedEventID

	i := strings.LastIndexByte(id, ':')
	if i <= 0 || i == len(id)-1 {
		return out, fmt.Errorf("invalid event_id format: %s", id)
	}

	tipID, err := strconv.ParseUint(id[i+1:], 10, 64)
	if err != nil {
		return out, fmt.Errorf("invalid tip_id, err=%v", err)
	}

	out.TxID = strings.ToLower(id[:i])
	out.TipID = tipID
	return out, nil
}
