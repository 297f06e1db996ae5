package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/use-agent/sitegrab/orchestrator"
	"github.com/use-agent/sitegrab/session"
)

// CLI flags
var (
	serviceURL = flag.String("service-url", "http://localhost:8000/scrape", "scraping service endpoint")
	runs       = flag.Int("runs", 3, "Number of runs per URL for averaging")
	timeout    = flag.Duration("timeout", 3*time.Minute, "per-request timeout")
	output     = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Test URLs covering 5 site types.
var testURLs = []struct {
	Label string
	URL   string
}{
	{"Static", "https://example.com"},
	{"Blog", "https://go.dev/blog/go1.21"},
	{"Docs", "https://go.dev/doc/effective_go"},
	{"News", "https://www.bbc.com/news"},
	{"Complex", "https://github.com/gin-gonic/gin"},
}

// --- Benchmark result types ---

type runResult struct {
	Run           int    `json:"run"`
	TotalMs       int64  `json:"total_ms"`
	ArchiveBytes  int    `json:"archive_bytes"`
	Entries       int    `json:"entries"`
	MissingAssets int    `json:"missing_assets"`
	Filename      string `json:"filename,omitempty"`
	HasTitle      bool   `json:"has_title"`
	Success       bool   `json:"success"`
	ErrorKind     string `json:"error_kind,omitempty"`
	Error         string `json:"error,omitempty"`
}

type urlAverages struct {
	TotalMs       float64 `json:"total_ms"`
	ArchiveBytes  float64 `json:"archive_bytes"`
	Entries       float64 `json:"entries"`
	MissingAssets float64 `json:"missing_assets"`
}

type urlResult struct {
	URL      string       `json:"url"`
	Label    string       `json:"label"`
	Runs     []runResult  `json:"runs"`
	Averages *urlAverages `json:"averages,omitempty"`
}

type benchmarkReport struct {
	Timestamp  string      `json:"timestamp"`
	ServiceURL string      `json:"service_url"`
	RunsPerURL int         `json:"runs_per_url"`
	Results    []urlResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== sitegrab Benchmark Suite ===")
	fmt.Printf("Service:   %s\n", *serviceURL)
	fmt.Printf("Runs/URL:  %d\n", *runs)
	fmt.Printf("Output:    %s\n", *output)
	fmt.Println()

	collab := orchestrator.NewHTTPCollaborator(*serviceURL, orchestrator.HTTPOptions{
		Timeout:   *timeout,
		UserAgent: "sitegrab-benchmark",
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sess := &session.Session{
		Orch:    orchestrator.New(collab, orchestrator.WithLogger(logger)),
		Preview: true,
	}

	report := benchmarkReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		ServiceURL: *serviceURL,
		RunsPerURL: *runs,
	}

	for _, t := range testURLs {
		fmt.Printf("Benchmarking [%s] %s ...\n", t.Label, t.URL)
		ur := urlResult{URL: t.URL, Label: t.Label}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkURL(sess, t.URL, i)
			if rr.Success {
				fmt.Printf("OK  %dms  %s  %d entries\n", rr.TotalMs, formatInt(rr.ArchiveBytes), rr.Entries)
			} else {
				fmt.Printf("FAILED [%s]: %s\n", rr.ErrorKind, rr.Error)
			}
			ur.Runs = append(ur.Runs, rr)
		}

		ur.Averages = computeAverages(ur.Runs)
		report.Results = append(report.Results, ur)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func benchmarkURL(sess *session.Session, url string, run int) runResult {
	rr := runResult{Run: run}

	res := sess.Submit(context.Background(), url)
	rr.TotalMs = res.Duration.Milliseconds()

	out := res.Outcome
	if !out.Succeeded() {
		rr.ErrorKind = string(out.Failure.Kind)
		rr.Error = out.Failure.UserMessage()
		return rr
	}
	// The archive is only measured, never saved.
	defer sess.Orch.Revoke()

	rr.Success = true
	rr.Filename = out.Download.Filename
	rr.ArchiveBytes = out.Download.Handle.Size()
	if m := res.Manifest; m != nil {
		rr.Entries = m.Entries
		if m.Index != nil {
			rr.HasTitle = m.Index.Title != ""
			rr.MissingAssets = len(m.Index.MissingAssets)
		}
	}
	return rr
}

func computeAverages(runs []runResult) *urlAverages {
	var successCount int
	var avg urlAverages

	for _, r := range runs {
		if !r.Success {
			continue
		}
		successCount++
		avg.TotalMs += float64(r.TotalMs)
		avg.ArchiveBytes += float64(r.ArchiveBytes)
		avg.Entries += float64(r.Entries)
		avg.MissingAssets += float64(r.MissingAssets)
	}

	if successCount == 0 {
		return nil
	}

	n := float64(successCount)
	avg.TotalMs /= n
	avg.ArchiveBytes /= n
	avg.Entries /= n
	avg.MissingAssets /= n
	return &avg
}

func printTable(results []urlResult) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "URL\tAvg Latency\tArchive Size\tEntries\tMissing\n")
	fmt.Fprintf(w, "───\t───────────\t────────────\t───────\t───────\n")

	for _, r := range results {
		if r.Averages == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t-\n", truncateURL(r.URL, 40))
			continue
		}

		fmt.Fprintf(w, "%s\t%dms\t%s\t%.0f\t%.1f\n",
			truncateURL(r.URL, 40),
			int64(r.Averages.TotalMs),
			formatInt(int(r.Averages.ArchiveBytes)),
			r.Averages.Entries,
			r.Averages.MissingAssets,
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

func truncateURL(u string, max int) string {
	if len(u) <= max {
		return u
	}
	return u[:max-3] + "..."
}

func formatInt(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var result []byte
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result)
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
