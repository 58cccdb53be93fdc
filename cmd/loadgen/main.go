// Command loadgen drives concurrent claim submissions against a running
// dealhub instance to observe capacity behavior under load. Every request
// uses a distinct user id, so admissions are bounded by the deal's
// max_claims rather than the uniqueness constraint.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// PerfResult gathers aggregated metrics for the test run.
// Atomic counters are used to avoid lock contention on hot paths.
type PerfResult struct {
	TotalRequests  int64
	CreatedCount   int64
	ExhaustedCount int64
	ErrorCount     int64
	LatencySum     int64 // nanoseconds
}

const (
	baseURL        = "http://localhost:8080"
	fixedWorkers   = 50
	fixedRPSTarget = 700
	fixedDuration  = 30 * time.Second
	defaultTimeout = 30 * time.Second
	fixedMaxClaims = 50000
)

func main() {
	transport := &http.Transport{
		MaxIdleConns:        fixedWorkers * 4,
		MaxIdleConnsPerHost: fixedWorkers * 4,
		IdleConnTimeout:     90 * time.Second,
	}
	httpClient := &http.Client{
		Transport: transport,
		Timeout:   defaultTimeout,
	}

	dealID, err := createDeal(httpClient, fixedMaxClaims)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create deal: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("==========================================")
	fmt.Println("dealhub claim load generator")
	fmt.Println("==========================================")
	fmt.Printf("deal id  : %s\n", dealID)
	fmt.Printf("rps      : %d\n", fixedRPSTarget)
	fmt.Printf("duration : %v\n", fixedDuration)
	fmt.Println("==========================================")

	burst := fixedRPSTarget / fixedWorkers
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(fixedRPSTarget), burst)

	ctx, cancel := context.WithTimeout(context.Background(), fixedDuration)
	defer cancel()

	var result PerfResult
	var wg sync.WaitGroup
	var userSeq int64

	// latencyChan collects latencies for percentile estimation.
	latencyChan := make(chan time.Duration, 4096)
	var latencies []time.Duration
	var collectorWg sync.WaitGroup
	collectorWg.Add(1)
	go func() {
		defer collectorWg.Done()
		for d := range latencyChan {
			latencies = append(latencies, d)
		}
	}()

	for i := 0; i < fixedWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if err := limiter.Wait(ctx); err != nil { // context cancelled, exit
					return
				}
				userID := fmt.Sprintf("loadgen-user-%d", atomic.AddInt64(&userSeq, 1))
				doRequest(ctx, httpClient, dealID, userID, &result, latencyChan)
			}
		}()
	}

	wg.Wait()
	close(latencyChan)
	collectorWg.Wait()

	report(&result, latencies)
}

func createDeal(client *http.Client, maxClaims int64) (string, error) {
	payload := map[string]interface{}{
		"title":             "Load test partner deal",
		"description":       "Synthetic deal used exclusively for claim load testing.",
		"category":          "development",
		"partner_name":      "loadgen",
		"discount_value":    "100% off",
		"eligibility_rules": []string{"load test accounts only"},
		"max_claims":        maxClaims,
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/v1/deals", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "loadgen-admin")
	req.Header.Set("X-User-Role", "admin")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var decoded struct {
		Data struct {
			Deal struct {
				ID string `json:"id"`
			} `json:"deal"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Data.Deal.ID == "" {
		return "", fmt.Errorf("response carried no deal id")
	}
	return decoded.Data.Deal.ID, nil
}

func doRequest(ctx context.Context, client *http.Client, dealID, userID string, result *PerfResult, latencyChan chan<- time.Duration) {
	url := fmt.Sprintf("%s/api/v1/deals/%s/claim", baseURL, dealID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		atomic.AddInt64(&result.ErrorCount, 1)
		return
	}
	req.Header.Set("X-User-Id", userID)
	req.Header.Set("X-User-Verified", "true")

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)

	atomic.AddInt64(&result.TotalRequests, 1)
	atomic.AddInt64(&result.LatencySum, int64(elapsed))

	select {
	case latencyChan <- elapsed:
	default: // drop rather than block the hot path
	}

	if err != nil {
		atomic.AddInt64(&result.ErrorCount, 1)
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		atomic.AddInt64(&result.CreatedCount, 1)
	case http.StatusBadRequest:
		// Capacity exhausted once the deal fills up.
		atomic.AddInt64(&result.ExhaustedCount, 1)
	default:
		atomic.AddInt64(&result.ErrorCount, 1)
	}
}

func report(result *PerfResult, latencies []time.Duration) {
	total := atomic.LoadInt64(&result.TotalRequests)

	var avg, p95 time.Duration
	if total > 0 {
		avg = time.Duration(atomic.LoadInt64(&result.LatencySum) / total)
	}
	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		p95 = latencies[len(latencies)*95/100]
	}

	fmt.Println("==========================================")
	fmt.Printf("total requests : %d\n", total)
	fmt.Printf("claims created : %d\n", atomic.LoadInt64(&result.CreatedCount))
	fmt.Printf("exhausted      : %d\n", atomic.LoadInt64(&result.ExhaustedCount))
	fmt.Printf("errors         : %d\n", atomic.LoadInt64(&result.ErrorCount))
	fmt.Printf("avg latency    : %v\n", avg)
	fmt.Printf("p95 latency    : %v\n", p95)
	fmt.Println("==========================================")
}
