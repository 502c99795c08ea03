//go:build ignore

// Run: go run ./build-tools/loadgen.go -url http://localhost:3100/api/chainhook/events -rps 200 -duration 60s -senders 25

package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	mrand "math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

type payload struct {
	Apply []block `json:"apply"`
}

type block struct {
	BlockIdentifier blockIdentifier `json:"block_identifier"`
	Timestamp       int64           `json:"timestamp"`
	Transactions    []transaction   `json:"transactions"`
}

type blockIdentifier struct {
	Index uint64 `json:"index"`
	Hash  string `json:"hash"`
}

type transaction struct {
	TransactionIdentifier struct {
		Hash string `json:"hash"`
	} `json:"transaction_identifier"`
	Metadata struct {
		Success bool `json:"success"`
		Receipt struct {
			Events []receiptEvent `json:"events"`
		} `json:"receipt"`
	} `json:"metadata"`
}

type receiptEvent struct {
	Type string     `json:"type"`
	Data *eventData `json:"data,omitempty"`
}

type eventData struct {
	ContractIdentifier string         `json:"contract_identifier"`
	Topic              string         `json:"topic"`
	Value              map[string]any `json:"value"`
}

var (
	height uint64 = 100_000
	tipID  uint64
)

func main() {
	var (
		url      = flag.String("url", "http://localhost:3100/api/chainhook/events", "webhook endpoint")
		token    = flag.String("token", "", "bearer token, empty for open endpoints")
		rps      = flag.Int("rps", 100, "tip events per second target")
		duration = flag.Duration("duration", 30*time.Second, "how long to run")
		senders  = flag.Int("senders", 25, "size of the simulated address pool")
		contract = flag.String("contract", "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM.tipstream", "contract identifier")
	)
	flag.Parse()

	addrs := make([]string, *senders)
	for i := range addrs {
		addrs[i] = "SP" + randHex(28)
	}

	cli := &http.Client{Timeout: 10 * time.Second}

	fmt.Printf("loadgen → url=%s rps=%d duration=%s\n", *url, *rps, duration.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	end := start.Add(*duration)

	// steady pace with a little drift
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	perTick := float64(*rps) / 10.0
	accum := 0.0
	var sent, failed int

loop:
	for {
		select {
		case <-ctx.Done():
			fmt.Println("signal received, stopping…")
			break loop
		case now := <-tick.C:
			if now.After(end) {
				break loop
			}

			accum += perTick
			batch := int(math.Floor(accum))
			if batch <= 0 {
				continue
			}
			accum -= float64(batch)

			body, _ := json.Marshal(randomPayload(*contract, addrs, batch))
			req, _ := http.NewRequestWithContext(ctx, http.MethodPost, *url, bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			if *token != "" {
				req.Header.Set("Authorization", "Bearer "+*token)
			}

			resp, err := cli.Do(req)
			if err != nil {
				failed++
				fmt.Printf("post error: %v\n", err)
				continue
			}
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				failed++
				fmt.Printf("post rejected: %s\n", resp.Status)
				continue
			}
			sent += batch
		}
	}

	fmt.Printf("done, tips=%d failed_batches=%d\n", sent, failed)
}

// randomPayload builds one block whose single transaction carries n tip
// prints plus some unrelated receipt noise, the shape real webhook
// deliveries have.
func randomPayload(contract string, addrs []string, n int) *payload {
	height++

	events := make([]receiptEvent, 0, n+2)
	for i := 0; i < n; i++ {
		tipID++
		sender := addrs[mrand.Intn(len(addrs))]
		recipient := addrs[mrand.Intn(len(addrs))]

		amount := uint64(1_000_000 + mrand.Intn(50_000_000))
		fee := amount * 50 / 10_000
		if fee == 0 {
			fee = 1
		}

		events = append(events, receiptEvent{
			Type: "SmartContractEvent",
			Data: &eventData{
				ContractIdentifier: contract,
				Topic:              "print",
				Value: map[string]any{
					"event":      "tip-sent",
					"tip-id":     tipID,
					"sender":     sender,
					"recipient":  recipient,
					"amount":     amount,
					"fee":        fee,
					"net-amount": amount - fee,
					"message":    fmt.Sprintf("load tip %d", tipID),
				},
			},
		})
	}
	events = append(events,
		receiptEvent{Type: "STXTransferEvent"},
		receiptEvent{Type: "FTMintEvent"},
	)

	var tx transaction
	tx.TransactionIdentifier.Hash = "0x" + randHex(64)
	tx.Metadata.Success = true
	tx.Metadata.Receipt.Events = events

	return &payload{Apply: []block{{
		BlockIdentifier: blockIdentifier{Index: height, Hash: "0x" + randHex(64)},
		Timestamp:       time.Now().Unix(),
		Transactions:    []transaction{tx},
	}}}
}

func randHex(n int) string {
	b := make([]byte, (n+1)/2)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)[:n]
}
