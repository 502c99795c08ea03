package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tipstream/internal/config"
)

// ContractEvent is one entry of the explorer contract event feed. Only
// smart contract log entries carry a repr; everything else decodes to
// zero values and is skipped downstream.
type ContractEvent struct {
	EventIndex  int          `json:"event_index"`
	EventType   string       `json:"event_type"`
	TxID        string       `json:"tx_id"`
	BlockTime   int64        `json:"block_time"` // epoch seconds, 0 when the API omits it
	ContractLog *ContractLog `json:"contract_log"`
}

type ContractLog struct {
	ContractID string   `json:"contract_id"`
	Topic      string   `json:"topic"`
	Value      LogValue `json:"value"`
}

type LogValue struct {
	Hex  string `json:"hex"`
	Repr string `json:"repr"`
}

type eventsResponse struct {
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
	Results []ContractEvent `json:"results"`
}

// Client pulls contract events from a Stacks explorer API. The feed is
// newest first and paginated by limit/offset.
type Client struct {
	base     string
	contract string
	http     *http.Client
}

func NewClient(cfg *config.MirrorConfig) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base:     cfg.APIBase,
		contract: cfg.Contract,
		http:     &http.Client{Timeout: timeout},
	}
}

// FetchEvents returns one page of the contract event feed.
func (c *Client) FetchEvents(ctx context.Context, offset, limit int) ([]ContractEvent, error) {
	u, err := url.Parse(fmt.Sprintf("%s/extended/v1/contract/%s/events", c.base, url.PathEscape(c.contract)))
	if err != nil {
		return nil, fmt.Errorf("build events url: %w", err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch contract events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("explorer returned %s", resp.Status)
	}

	var body eventsResponse
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode events response: %w", err)
	}
	return body.Results, nil
}
