package main

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/arborlabs/arbor"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

// Long-running churn over a reactive grid: rows of leaves, a sum twig per
// row, one branch per row observing its sum. Random writes keep the graph
// hot; the summary reports how much work the engine actually did.

type soakConfig struct {
	name       string
	rows       int
	cols       int
	writes     int64
	writeSpan  int // how many distinct values a cell cycles through
	repeats    int
	expectRuns bool // a zero-span config never changes values, so no runs
}

type soakResult struct {
	duration   time.Duration
	branchRuns int64
	recomputes int64
}

func main() {
	log.Print("Starting arbor soak, please wait...")
	defer log.Print("Finished arbor soak")

	cfgs := []soakConfig{
		{name: "small hot grid", rows: 10, cols: 10, writes: 200_000, writeSpan: 16, repeats: 5, expectRuns: true},
		{name: "wide grid", rows: 100, cols: 50, writes: 50_000, writeSpan: 16, repeats: 5, expectRuns: true},
		{name: "deep churn", rows: 5, cols: 500, writes: 50_000, writeSpan: 16, repeats: 5, expectRuns: true},
		{name: "suppressed writes", rows: 10, cols: 10, writes: 200_000, writeSpan: 1, repeats: 3, expectRuns: false},
	}

	tbl := tablewriter.NewWriter(os.Stdout)
	tbl.SetHeader([]string{
		"scenario", "grid", "writes", "branch runs", "recomputes", "time", "writes/ms",
	})

	for _, cfg := range cfgs {
		log.Printf("Running '%s' scenario", cfg.name)

		best := soakResult{duration: time.Hour}
		for i := 0; i < cfg.repeats; i++ {
			res := runSoak(cfg)
			if res.duration < best.duration {
				best = res
			}
		}
		if cfg.expectRuns && best.branchRuns == 0 {
			log.Fatalf("scenario %q produced no branch runs", cfg.name)
		}

		writeRate := float64(cfg.writes) / (float64(best.duration) / float64(time.Millisecond))
		tbl.Append([]string{
			cfg.name,
			fmt.Sprintf("%dx%d", cfg.rows, cfg.cols),
			humanize.Comma(cfg.writes),
			humanize.Comma(best.branchRuns),
			humanize.Comma(best.recomputes),
			fmt.Sprint(best.duration),
			humanize.Comma(int64(writeRate)),
		})
	}

	tbl.Render()
}

func runSoak(cfg soakConfig) soakResult {
	sys := arbor.NewSystem(arbor.WithErrorFunc(func(from arbor.Reactive, err error) {
		log.Panic(err)
	}))

	var branchRuns, recomputes int64

	grid := make([][]*arbor.Leaf[int], cfg.rows)
	for r := range grid {
		grid[r] = make([]*arbor.Leaf[int], cfg.cols)
		for c := range grid[r] {
			grid[r][c] = arbor.NewLeaf(sys, 0)
		}
	}
	for r := range grid {
		row := grid[r]
		sum := arbor.NewTwig(sys, func() (int, error) {
			recomputes++
			total := 0
			for _, cell := range row {
				total += cell.Read()
			}
			return total, nil
		})
		if _, err := arbor.NewBranch(sys, func(b *arbor.Branch) error {
			sum.Read()
			branchRuns++
			return nil
		}); err != nil {
			log.Fatal(err)
		}
	}

	rng := rand.New(rand.NewSource(int64(cfg.rows*cfg.cols) + cfg.writes))
	branchRuns, recomputes = 0, 0

	start := time.Now()
	for i := int64(0); i < cfg.writes; i++ {
		leaf := grid[rng.Intn(cfg.rows)][rng.Intn(cfg.cols)]
		leaf.Write(rng.Intn(cfg.writeSpan))
		if i%64 == 0 {
			sys.RunDeferred()
		}
	}
	sys.RunDeferred()

	return soakResult{
		duration:   time.Since(start),
		branchRuns: branchRuns,
		recomputes: recomputes,
	}
}
