// Package bench — jitter/main.go
//
// Control-band jitter measurement tool.
//
// Measures the wall-clock inter-arrival time between consecutive Control
// ticks driven by internal/scheduler.BandScheduler, optionally against a
// background load of fire-and-forget advisory ticks, and reports whether
// the scheduler holds its target period under pressure.
//
// Method:
//  1. Starts a BandScheduler at the requested control_hz.
//  2. Each control tick records time.Since(lastTick) into a histogram.
//  3. Optionally starts a background goroutine that sleeps for
//     -background-sleep on each iteration, simulating a Predict/Semantics
//     band under load.
//  4. Runs for the requested duration, then stops the scheduler and
//     reports p50/p95/p99 inter-arrival latency plus missed-cycle count.
//
// Output CSV columns: iteration, inter_arrival_us
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/bandedctl/harness/internal/scheduler"
)

type missedCounter struct{ n int64 }

func (m *missedCounter) Inc() { atomic.AddInt64(&m.n, 1) }

func main() {
	controlHz := flag.Float64("control-hz", 50.0, "Control band rate")
	duration := flag.Duration("duration", 600*time.Millisecond, "measurement window")
	backgroundSleep := flag.Duration("background-sleep", 50*time.Millisecond, "background-band sleep per iteration (0 disables)")
	outputFile := flag.String("output", "jitter_raw.csv", "output CSV file path")
	p99TargetUs := flag.Int("p99-target-us", 30000, "fail if p99 inter-arrival exceeds this, in microseconds")
	flag.Parse()

	f, err := os.Create(*outputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create output: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	_ = w.Write([]string{"iteration", "inter_arrival_us"})

	var (
		mu       sync.Mutex
		lastTick time.Time
		samples  []time.Duration
	)

	missed := &missedCounter{}
	sched := scheduler.New(*controlHz, zap.NewNop(), missed)

	sched.StartControl(func() {
		now := time.Now()
		mu.Lock()
		if !lastTick.IsZero() {
			samples = append(samples, now.Sub(lastTick))
		}
		lastTick = now
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *backgroundSleep > 0 {
		runBackgroundLoad(ctx, sched, *backgroundSleep)
	}

	time.Sleep(*duration)
	sched.Stop(time.Second)
	cancel()

	mu.Lock()
	defer mu.Unlock()

	for i, d := range samples {
		_ = w.Write([]string{strconv.Itoa(i), strconv.FormatInt(d.Microseconds(), 10)})
	}

	p50, p95, p99 := percentilesUs(samples)
	fmt.Printf("Control-band jitter results (%d samples, %.1f Hz target)\n", len(samples), *controlHz)
	fmt.Printf("  missed cycles: %d\n", atomic.LoadInt64(&missed.n))
	fmt.Printf("  p50: %dus\n", p50)
	fmt.Printf("  p95: %dus\n", p95)
	fmt.Printf("  p99: %dus\n", p99)
	fmt.Printf("  output: %s\n", *outputFile)

	if p99 > *p99TargetUs {
		fmt.Fprintf(os.Stderr, "FAIL: p99 %dus exceeds %dus target\n", p99, *p99TargetUs)
		os.Exit(1)
	}
}

// runBackgroundLoad fires one sleeping background tick at a time, the way
// an advisory Predict/Semantics band would occupy its own goroutine
// without ever blocking the Control band.
func runBackgroundLoad(ctx context.Context, sched *scheduler.BandScheduler, sleep time.Duration) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			done := make(chan struct{})
			sched.RunBackground(func() {
				time.Sleep(sleep)
				close(done)
			})
			select {
			case <-done:
			case <-ctx.Done():
				return
			}
		}
	}()
}

func percentilesUs(samples []time.Duration) (p50, p95, p99 int) {
	if len(samples) == 0 {
		return 0, 0, 0
	}
	sorted := make([]int, len(samples))
	for i, d := range samples {
		sorted[i] = int(d.Microseconds())
	}
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	idx := func(pct float64) int {
		i := int(pct * float64(len(sorted)))
		if i >= len(sorted) {
			i = len(sorted) - 1
		}
		return i
	}
	return sorted[idx(0.50)], sorted[idx(0.95)], sorted[idx(0.99)]
}
