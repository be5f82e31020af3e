package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/arborlabs/arbor"
	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

const (
	widthsKey  = "widths"
	heightsKey = "heights"
	itersKey   = "iterations"
)

func main() {
	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "Benchmark arbor propagation latency over leaf->twig chains with branch observers",
		Flags: []cli.Flag{
			&cli.IntSliceFlag{
				Name:  widthsKey,
				Usage: "Chain counts to benchmark",
				Value: []int64{1, 10, 100},
			},
			&cli.IntSliceFlag{
				Name:  heightsKey,
				Usage: "Chain depths to benchmark",
				Value: []int64{1, 10, 100},
			},
			&cli.IntFlag{
				Name:  itersKey,
				Usage: "Writes per configuration",
				Value: 100,
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	start := time.Now()
	log.Print("arbor benchmark started")
	defer func() {
		log.Printf("arbor benchmark finished in %v", time.Since(start))
	}()

	widths := cmd.IntSlice(widthsKey)
	heights := cmd.IntSlice(heightsKey)
	iters := int(cmd.Int(itersKey))

	tbl := table.NewWriter()
	tbl.SetTitle("Arbor Signals")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max", "branch runs", "deterministic"})

	for _, w := range widths {
		for _, h := range heights {
			res, err := benchmarkPropagate(int(w), int(h), iters)
			if err != nil {
				return err
			}
			tbl.AppendRows([]table.Row{{
				fmt.Sprintf("propagate: %d * %d", w, h),
				res.calc.Time.Avg,
				res.calc.Time.Min,
				res.calc.Time.P75,
				res.calc.Time.P99,
				res.calc.Time.Max,
				humanize.Comma(res.branchRuns),
				res.deterministic,
			}})
		}
	}

	tbl.Render()
	return nil
}

type propagateResult struct {
	calc          *tachymeter.Metrics
	branchRuns    int64
	deterministic bool
}

// benchmarkPropagate builds width parallel chains of height twigs off one
// leaf, each observed by a branch, then times write+flush round trips. The
// branch execution order of every flush is checksummed so a run order that
// drifts between iterations shows up in the report.
func benchmarkPropagate(width, height, iters int) (*propagateResult, error) {
	sys := arbor.NewSystem(arbor.WithErrorFunc(func(from arbor.Reactive, err error) {
		log.Panic(err)
	}))
	src := arbor.NewLeaf(sys, 1)

	var (
		digest     = xxhash.New()
		branchRuns int64
	)
	for i := 0; i < width; i++ {
		read := src.Read
		for j := 0; j < height; j++ {
			prev := read
			tw := arbor.NewTwig(sys, func() (int, error) {
				return prev() + 1, nil
			})
			read = tw.Read
		}
		last := read
		_, err := arbor.NewBranch(sys, func(b *arbor.Branch) error {
			last()
			branchRuns++
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], uint64(b.Identity()))
			_, _ = digest.Write(buf[:])
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("building benchmark graph: %w", err)
		}
	}

	tach := tachymeter.New(&tachymeter.Config{Size: iters})
	deterministic := true
	var firstOrder uint64
	for i := 0; i < iters; i++ {
		digest.Reset()
		begin := time.Now()
		src.Write(src.Read() + 1)
		sys.RunDeferred()
		tach.AddTime(time.Since(begin))

		order := digest.Sum64()
		if i == 0 {
			firstOrder = order
		} else if order != firstOrder {
			deterministic = false
		}
	}

	return &propagateResult{
		calc:          tach.Calc(),
		branchRuns:    branchRuns,
		deterministic: deterministic,
	}, nil
}
