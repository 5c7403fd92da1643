package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danielpatrickdp/svg-eval/internal/dataset"
)

// #region main

func main() {
	root := flag.String("root", "", "data root to scan for frame directories")
	dbPath := flag.String("db", "", "manifest path (default <root>/manifest.db)")
	minFrames := flag.Int("min-frames", 30, "skip directories with fewer frames")
	flag.Parse()

	if *root == "" {
		fmt.Fprintln(os.Stderr, "usage: bootstrap-manifest --root path/to/data [--db manifest.db] [--min-frames N]")
		os.Exit(2)
	}
	if *dbPath == "" {
		*dbPath = filepath.Join(*root, "manifest.db")
	}

	m, err := dataset.OpenManifest(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open manifest: %v\n", err)
		os.Exit(1)
	}
	defer m.Close()

	added, err := dataset.Build(m, *root, *minFrames)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	total, err := m.Count()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("indexed %d sequences under %s (%d total in %s)\n", added, *root, total, *dbPath)
}

// #endregion main
