// Command seed populates a running service with sample profiles, creates
// matches for each requester, and optionally fires concurrent accept
// callbacks to demonstrate exclusive acceptance.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	defaultTimeout = 10 * time.Second
	defaultRunFor  = 2 * time.Minute
)

var sampleRequesters = []map[string]any{
	{
		"id":     "req-001",
		"title":  "機械学習を使った需要予測の進め方",
		"body":   "時系列データで商品需要を予測したい。特徴量設計とモデル選定で悩んでいる。",
		"topics": []string{"機械学習", "時系列解析", "python"},
		"phase":  "prototype",
	},
	{
		"id":     "req-002",
		"title":  "Goマイクロサービスの負荷試験",
		"body":   "gRPCサービス群のボトルネック調査と負荷試験の設計について相談したい。",
		"topics": []string{"go", "grpc", "performance"},
		"phase":  "production",
	},
	{
		"id":     "req-003",
		"title":  "How to structure a data pipeline for clickstream analytics",
		"body":   "We collect raw clickstream events and need advice on batch vs streaming aggregation.",
		"topics": []string{"data-engineering", "streaming", "kafka"},
		"phase":  "design",
	},
}

var sampleResponders = []map[string]any{
	{
		"id":           "res-001",
		"interests":    "機械学習モデルの本番運用、特徴量ストア、時系列予測",
		"topics":       []string{"機械学習", "mlops", "python"},
		"phase":        "production",
		"availability": "available",
	},
	{
		"id":           "res-002",
		"interests":    "Goでの分散システム設計、負荷試験、可観測性",
		"topics":       []string{"go", "grpc", "observability"},
		"phase":        "production",
		"availability": "available",
	},
	{
		"id":           "res-003",
		"interests":    "Streaming data pipelines, Kafka, warehouse modeling",
		"topics":       []string{"data-engineering", "kafka", "sql"},
		"phase":        "production",
		"availability": "constrained",
	},
	{
		"id":           "res-004",
		"interests":    "フロントエンド設計とアクセシビリティ",
		"topics":       []string{"typescript", "react"},
		"phase":        "prototype",
		"availability": "available",
	},
}

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:9080", "Base URL of the service")
		timeout = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		race    = flag.Bool("race", false, "Fire concurrent accept callbacks for the first match")
		racers  = flag.Int("racers", 8, "Concurrent accept attempts in race mode")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunFor)
	defer cancel()

	client := &http.Client{Timeout: *timeout}

	log.Printf("seeding %d requesters and %d responders at %s", len(sampleRequesters), len(sampleResponders), *baseURL)

	for _, r := range sampleRequesters {
		if err := post(ctx, client, *baseURL+"/requesters", r, nil); err != nil {
			fail("seed requester", err)
		}
	}
	for _, r := range sampleResponders {
		if err := post(ctx, client, *baseURL+"/responders", r, nil); err != nil {
			fail("seed responder", err)
		}
	}

	matchIDs := make([]string, 0, len(sampleRequesters))
	for _, r := range sampleRequesters {
		var m struct {
			ID      string `json:"id"`
			Offered []string `json:"offered"`
		}
		err := post(ctx, client, *baseURL+"/matches", map[string]any{"requester_id": r["id"]}, &m)
		if err != nil {
			log.Printf("match for %v not created: %v", r["id"], err)
			continue
		}
		log.Printf("match %s created for %v, offered to %v", m.ID, r["id"], m.Offered)
		matchIDs = append(matchIDs, m.ID)
	}

	if !*race || len(matchIDs) == 0 {
		return
	}

	// Every responder accepts the same match at once; exactly one should win.
	target := matchIDs[0]
	log.Printf("racing %d accepts against match %s", *racers, target)

	var wg sync.WaitGroup
	var accepted int64
	for i := 0; i < *racers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			responder := sampleResponders[n%len(sampleResponders)]["id"].(string)
			ev := map[string]any{
				"event_id":     uuid.NewString(),
				"kind":         "accept",
				"match_id":     target,
				"responder_id": responder,
				"ts":           time.Now().UTC().Format(time.RFC3339),
			}
			if err := post(ctx, client, *baseURL+"/callbacks", ev, nil); err == nil {
				atomic.AddInt64(&accepted, 1)
			}
		}(i)
	}
	wg.Wait()
	log.Printf("%d callbacks queued; poll the match to see the single winner", accepted)

	// Give the worker pool a moment to drain before reading the outcome.
	time.Sleep(time.Second)

	resp, err := client.Get(*baseURL + "/matches/" + target)
	if err != nil {
		fail("get match", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	log.Printf("final state: %s", body)
}

func post(ctx context.Context, client *http.Client, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func fail(op string, err error) {
	os.Stderr.WriteString(op + ": " + err.Error() + "\n")
	os.Exit(1)
}
