// Command loadgen drives the search API with a skewed mix of nearby and
// applicant searches and writes a latency summary.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mohammed-shakir/food-facility-search/internal/core/httpclient"
)

type Config struct {
	BaseURL         string
	Concurrency     int
	Duration        time.Duration
	ZipfS           float64
	ZipfV           float64
	Origins         int
	ApplicantShare  float64
	OutputPrefix    string
	RequestTimeout  time.Duration
	AppendTimestamp bool
}

func loadConfig(args []string) (Config, error) {
	var cfg Config
	fs := flag.NewFlagSet("loadgen", flag.ContinueOnError)
	fs.StringVar(&cfg.BaseURL, "target", "http://localhost:8080", "search API base URL")
	fs.IntVar(&cfg.Concurrency, "concurrency", 16, "concurrent workers")
	fs.DurationVar(&cfg.Duration, "duration", 30*time.Second, "test duration")
	fs.Float64Var(&cfg.ZipfS, "zipf-s", 1.3, "Zipf parameter s (>1)")
	fs.Float64Var(&cfg.ZipfV, "zipf-v", 1.0, "Zipf parameter v (>=1)")
	fs.IntVar(&cfg.Origins, "origins", 64, "distinct nearby origins in the pool")
	fs.Float64Var(&cfg.ApplicantShare, "applicant-share", 0.2, "fraction of applicant searches")
	fs.StringVar(&cfg.OutputPrefix, "out", "results/loadgen", "output file prefix")
	fs.DurationVar(&cfg.RequestTimeout, "timeout", 10*time.Second, "per-request timeout")
	fs.BoolVar(&cfg.AppendTimestamp, "append-ts", true, "append timestamp to output prefix")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.Concurrency <= 0 || cfg.Origins <= 0 {
		return Config{}, fmt.Errorf("concurrency and origins must be positive")
	}
	if cfg.ZipfS <= 1 || cfg.ZipfV < 1 {
		return Config{}, fmt.Errorf("zipf-s must be > 1 and zipf-v >= 1")
	}
	return cfg, nil
}

type origin struct{ Lat, Lon float64 }

// makeOrigins scatters origins over San Francisco with a few hot spots first
// so a Zipf pick favours them.
func makeOrigins(count int, r *rand.Rand) []origin {
	hot := []origin{
		{37.7749, -122.4194}, // civic center
		{37.7946, -122.3999}, // financial district
		{37.7599, -122.4148}, // mission
		{37.8080, -122.4177}, // fisherman's wharf
	}
	out := make([]origin, 0, count)
	for i := 0; len(out) < count && i < len(hot); i++ {
		out = append(out, hot[i])
	}
	for len(out) < count {
		out = append(out, origin{
			Lat: 37.70 + r.Float64()*0.11,
			Lon: -122.51 + r.Float64()*0.13,
		})
	}
	return out
}

var applicantTerms = []string{"taco", "truck", "coffee", "burger", "halal", "cart", "kitchen", ""}

type sample struct {
	Timestamp time.Time
	Kind      string
	Latency   time.Duration
	Status    int
	ErrorMsg  string
	Origin    int
}

type summary struct {
	StartTime     time.Time `json:"start"`
	EndTime       time.Time `json:"end"`
	DurationSec   float64   `json:"duration_sec"`
	TotalRequests int64     `json:"total"`
	SuccessCount  int64     `json:"success"`
	ErrorCount    int64     `json:"errors"`
	ThroughputRPS float64   `json:"throughput_rps"`
	P50Ms         float64   `json:"p50_ms"`
	P95Ms         float64   `json:"p95_ms"`
	P99Ms         float64   `json:"p99_ms"`
	Concurrency   int       `json:"concurrency"`
	ZipfS         float64   `json:"zipf_s"`
	ZipfV         float64   `json:"zipf_v"`
	Origins       int       `json:"origins"`
	Target        string    `json:"target"`
}

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.OutputPrefix), 0o750); err != nil {
		log.Fatalf("mkdir results: %v", err)
	}
	prefix := cfg.OutputPrefix
	if cfg.AppendTimestamp {
		prefix = fmt.Sprintf("%s_%s", prefix, time.Now().UTC().Format("20060102_150405Z"))
	}

	seed := time.Now().UnixNano()
	origins := makeOrigins(cfg.Origins, rand.New(rand.NewSource(seed)))
	client := httpclient.NewOutbound(httpclient.WithTimeout(cfg.RequestTimeout))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	log.Printf("loadgen start target=%s dur=%s conc=%d zipf(s=%.2f,v=%.2f) origins=%d applicant_share=%.2f",
		cfg.BaseURL, cfg.Duration, cfg.Concurrency, cfg.ZipfS, cfg.ZipfV, cfg.Origins, cfg.ApplicantShare)

	start := time.Now()
	samples := runWorkers(ctx, cfg, client, origins, seed)
	end := time.Now()

	s := summarize(samples, start, end, cfg)
	jsonPath := prefix + "_summary.json"
	xlsxPath := prefix + "_samples.xlsx"
	if err := writeSummary(jsonPath, s); err != nil {
		log.Printf("write summary: %v", err)
	}
	if err := writeSamples(xlsxPath, samples); err != nil {
		log.Printf("write samples: %v", err)
	}

	log.Printf("done: total=%d succ=%d err=%d thr=%.2f rps p50=%.1fms p95=%.1fms p99=%.1fms",
		s.TotalRequests, s.SuccessCount, s.ErrorCount, s.ThroughputRPS, s.P50Ms, s.P95Ms, s.P99Ms)
	log.Printf("wrote %s and %s", jsonPath, xlsxPath)
}

func runWorkers(ctx context.Context, cfg Config, client *http.Client, origins []origin, seed int64) []sample {
	out := make(chan sample, 4096)
	var wg sync.WaitGroup
	for id := range cfg.Concurrency {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed + int64(id) + 1))
			zipf := rand.NewZipf(r, cfg.ZipfS, cfg.ZipfV, uint64(len(origins)-1))
			for ctx.Err() == nil {
				var s sample
				if r.Float64() < cfg.ApplicantShare {
					s = doApplicant(ctx, client, cfg.BaseURL, applicantTerms[r.Intn(len(applicantTerms))])
				} else {
					idx := int(zipf.Uint64())
					s = doNearby(ctx, client, cfg.BaseURL, origins[idx])
					s.Origin = idx
				}
				if ctx.Err() != nil {
					return
				}
				select {
				case out <- s:
				case <-ctx.Done():
					return
				}
			}
		}(id)
	}
	go func() {
		wg.Wait()
		close(out)
	}()

	var all []sample
	for s := range out {
		all = append(all, s)
	}
	return all
}

func doNearby(ctx context.Context, client *http.Client, base string, o origin) sample {
	body := map[string]any{
		"latitude":  fmt.Sprintf("%.5f", o.Lat),
		"longitude": fmt.Sprintf("%.5f", o.Lon),
		"statuses":  []string{"APPROVED"},
	}
	return post(ctx, client, base+"/search_nearby", "nearby", body)
}

func doApplicant(ctx context.Context, client *http.Client, base, term string) sample {
	body := map[string]any{"applicant": term, "address": "", "statuses": []string{"APPROVED"}}
	return post(ctx, client, base+"/search_applicant", "applicant", body)
}

func post(ctx context.Context, client *http.Client, url, kind string, body any) sample {
	b, _ := json.Marshal(body)
	s := sample{Timestamp: time.Now(), Kind: kind, Origin: -1}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(url, "/"), bytes.NewReader(b))
	if err != nil {
		s.ErrorMsg = err.Error()
		return s
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	s.Latency = time.Since(s.Timestamp)
	if err != nil {
		s.ErrorMsg = err.Error()
		return s
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	s.Status = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.ErrorMsg = fmt.Sprintf("status=%d", resp.StatusCode)
	}
	return s
}

func summarize(samples []sample, start, end time.Time, cfg Config) summary {
	var ok, failed int64
	lat := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.ErrorMsg == "" {
			ok++
			lat = append(lat, float64(s.Latency.Microseconds())/1000.0)
		} else {
			failed++
		}
	}
	sort.Float64s(lat)
	elapsed := end.Sub(start).Seconds()
	thr := 0.0
	if elapsed > 0 {
		thr = float64(len(samples)) / elapsed
	}
	return summary{
		StartTime:     start.UTC(),
		EndTime:       end.UTC(),
		DurationSec:   elapsed,
		TotalRequests: int64(len(samples)),
		SuccessCount:  ok,
		ErrorCount:    failed,
		ThroughputRPS: thr,
		P50Ms:         percentile(lat, 50),
		P95Ms:         percentile(lat, 95),
		P99Ms:         percentile(lat, 99),
		Concurrency:   cfg.Concurrency,
		ZipfS:         cfg.ZipfS,
		ZipfV:         cfg.ZipfV,
		Origins:       cfg.Origins,
		Target:        cfg.BaseURL,
	}
}

func writeSummary(path string, s summary) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create summary: %w", err)
	}
	defer func() { _ = f.Close() }()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

func writeSamples(path string, samples []sample) error {
	const sheet = "samples"
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	idx, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("new sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}
	if err := sw.SetRow("A1", []any{"timestamp", "kind", "latency_ms", "status", "error", "origin_idx"}); err != nil {
		return fmt.Errorf("header: %w", err)
	}
	for i, s := range samples {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{
			s.Timestamp.UTC().Format(time.RFC3339Nano),
			s.Kind,
			float64(s.Latency.Microseconds()) / 1000.0,
			s.Status,
			s.ErrorMsg,
			s.Origin,
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func percentile(sortedValues []float64, p float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if p <= 0 {
		return sortedValues[0]
	}
	if p >= 100 {
		return sortedValues[len(sortedValues)-1]
	}
	k := (p / 100.0) * float64(len(sortedValues)-1)
	f := math.Floor(k)
	i := int(f)
	if i >= len(sortedValues)-1 {
		return sortedValues[len(sortedValues)-1]
	}
	d := k - f
	return sortedValues[i]*(1-d) + sortedValues[i+1]*d
}
