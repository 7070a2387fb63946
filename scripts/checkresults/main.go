// Checkresults validates CSV output from the loadtest script: no duplicate
// request indices, row count matching the expected total, per-backend
// distribution, and the spread between the most- and least-used backends.
//
// Usage:
//
//	go run ./scripts/checkresults -csv results.csv -expected 1000
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
)

func main() {
	csvPath := flag.String("csv", "results.csv", "Path to CSV produced by loadtest")
	expected := flag.Int("expected", 0, "Expected number of rows (optional)")
	flag.Parse()

	f, err := os.Open(*csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open csv: %v\n", err)
		os.Exit(2)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read csv: %v\n", err)
		os.Exit(2)
	}

	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "csv empty")
		os.Exit(2)
	}

	// header expected: idx,timestamp,backend,status,duration_ms
	if len(rows[0]) < 5 {
		fmt.Fprintf(os.Stderr, "unexpected csv header: %v\n", rows[0])
		os.Exit(2)
	}

	idxSeen := map[int]bool{}
	backendCounts := map[string]int{}
	statusCounts := map[string]int{}

	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if len(row) < 5 {
			fmt.Fprintf(os.Stderr, "malformed row %d: %v\n", i, row)
			os.Exit(2)
		}

		idx, err := strconv.Atoi(row[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid idx at row %d: %v\n", i, err)
			os.Exit(2)
		}
		if idxSeen[idx] {
			fmt.Printf("DUPLICATE idx=%d at csv row %d\n", idx, i)
		}
		idxSeen[idx] = true

		backendCounts[row[2]]++
		statusCounts[row[3]]++
	}

	totalRows := len(rows) - 1
	unique := len(idxSeen)
	fmt.Printf("Total rows: %d  Unique idx: %d\n", totalRows, unique)

	if *expected > 0 && totalRows != *expected {
		fmt.Printf("Warning: total rows (%d) != expected (%d)\n", totalRows, *expected)
	}

	if totalRows != unique {
		fmt.Printf("ERROR: found %d duplicate indices\n", totalRows-unique)
		os.Exit(3)
	}

	fmt.Println("Status codes:")
	var statuses []string
	for k := range statusCounts {
		statuses = append(statuses, k)
	}
	sort.Strings(statuses)
	for _, k := range statuses {
		fmt.Printf("  %s -> %d\n", k, statusCounts[k])
	}

	fmt.Println("Per-backend counts:")
	minCount, maxCount := -1, 0
	var backends []string
	for k := range backendCounts {
		backends = append(backends, k)
	}
	sort.Strings(backends)
	for _, k := range backends {
		v := backendCounts[k]
		fmt.Printf("  %s -> %d\n", k, v)
		if minCount == -1 || v < minCount {
			minCount = v
		}
		if v > maxCount {
			maxCount = v
		}
	}

	if len(backendCounts) > 1 {
		fmt.Printf("Distribution spread (max-min): %d\n", maxCount-minCount)
	}

	fmt.Println("Verification passed: no duplicate indices.")
}
