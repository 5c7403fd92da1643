package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danielpatrickdp/svg-eval/internal/dataset"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to manifest.db")
	minFrames := flag.Int("min-frames", 0, "only list sequences with at least N frames")
	limit := flag.Int("limit", 0, "show only the first N sequences in dir order (0 = all)")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/manifest.db [--min-frames N] [--limit N] [--json]")
		os.Exit(2)
	}

	m, err := dataset.OpenManifest(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open manifest: %v\n", err)
		os.Exit(1)
	}
	defer m.Close()

	entries, err := m.Entries(*minFrames)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	entries = first(entries, *limit)
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no sequences found")
		return
	}

	rows := toRows(entries)
	if *jsonOut {
		err = printJSON(rows)
	} else {
		printTable(rows)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// first keeps the leading n entries; n <= 0 keeps all.
func first(entries []dataset.Entry, n int) []dataset.Entry {
	if n > 0 && len(entries) > n {
		return entries[:n]
	}
	return entries
}

// #endregion main

// #region rows

type row struct {
	ID        string `json:"sequence_id"`
	Dir       string `json:"dir"`
	Frames    int    `json:"frames"`
	First     string `json:"first_frame"`
	Last      string `json:"last_frame"`
	CreatedAt string `json:"created_at"`
}

func toRows(entries []dataset.Entry) []row {
	rows := make([]row, len(entries))
	for i, e := range entries {
		rows[i] = row{
			ID:        e.ID,
			Dir:       e.Dir,
			Frames:    len(e.Frames),
			CreatedAt: e.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
		if len(e.Frames) > 0 {
			rows[i].First = e.Frames[0]
			rows[i].Last = e.Frames[len(e.Frames)-1]
		}
	}
	return rows
}

// #endregion rows

// #region output

func printTable(rows []row) {
	fmt.Printf("%-8s  %6s  %-16s  %-16s  %s\n", "ID", "Frames", "First", "Last", "Dir")
	fmt.Printf("%-8s+-%6s+-%-16s+-%-16s+-%s\n", "--------", "------", "----------------", "----------------", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-8s  %6d  %-16s  %-16s  %s\n", short(r.ID), r.Frames, trunc(r.First, 16), trunc(r.Last, 16), filepath.Clean(r.Dir))
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func trunc(s string, n int) string {
	if len(s) > n {
		return s[:n-1] + "~"
	}
	return s
}

// #endregion output
