// Command generate-sample-report runs a short degenerated-mode simulation
// and writes its HTML and JSON reports, for checking report layout.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/gcscope/internal/gc/tunable"
	"github.com/wesleyorama2/gcscope/internal/report"
	"github.com/wesleyorama2/gcscope/internal/sim"
)

func main() {
	outputPath := "sample-gc-report"
	if len(os.Args) > 1 {
		outputPath = os.Args[1]
	}

	logrus.SetLevel(logrus.WarnLevel)
	prev := tunable.Apply(tunable.Settings{AllocationTrace: true, AllocationStallThreshold: 5 * time.Millisecond})
	defer tunable.Restore(prev)

	result, err := runSample()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := report.GenerateHTML(result, "Sample run: small heap, heavy allocation, cancelled concurrent cycles", outputPath+".html"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := report.GenerateJSON(result, outputPath+".json"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Sample report generated: %s.html, %s.json\n", outputPath, outputPath)
}

func runSample() (*sim.Result, error) {
	cfg := sim.DefaultConfig()
	cfg.Mode = sim.ModeDegenerated
	cfg.Duration = 3 * time.Second
	cfg.HeapWords = 1 << 17
	cfg.Mutators = 4
	cfg.AllocRate = 4000
	cfg.ExplicitGCInterval = time.Second

	s, err := sim.New(cfg,
		sim.WithName("sample"),
		sim.WithThresholds(sim.Thresholds{
			Pause:  []string{"p99 < 50ms"},
			Alloc:  []string{"p99 < 100ms"},
			Cycles: []string{"oom == 0"},
		}))
	if err != nil {
		return nil, err
	}
	return s.Run(context.Background())
}
