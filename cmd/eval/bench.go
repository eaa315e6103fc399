package eval

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/feval/cmd/util"
	libUtil "github.com/ValentinKolb/feval/lib/util"
	"github.com/ValentinKolb/feval/rpc/client"
	"github.com/ValentinKolb/feval/rpc/transport/base"
	"github.com/pterm/pterm"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	benchCmd = &cobra.Command{
		Use:     "bench",
		Short:   "Performance testing tool for feval servers",
		Long:    "Opens one connection per worker and sends the same statement from every worker, measuring the round trip of each message.",
		PreRunE: setupEval,
		RunE:    runBench,
	}
)

func init() {
	key := "workers"
	benchCmd.Flags().Int(key, 8, util.WrapString("Number of concurrent workers, each with its own connection"))
	key = "messages"
	benchCmd.Flags().Int(key, 1000, util.WrapString("Number of messages each worker sends"))
	key = "statement"
	benchCmd.Flags().String(key, "1+1", util.WrapString("The statement every message carries"))
}

// benchResult is the outcome of one worker
type benchResult struct {
	sent    int
	elapsed time.Duration
	err     error
}

func runBench(_ *cobra.Command, _ []string) error {
	workers := viper.GetInt("workers")
	messages := viper.GetInt("messages")
	statement := []byte(viper.GetString("statement"))
	if workers < 1 || messages < 1 {
		return fmt.Errorf("workers and messages must be at least 1")
	}

	config, err := util.GetClientConfig()
	if err != nil {
		return err
	}

	pterm.Info.Println("Performance testing tool for feval servers")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Workers: %d, Messages per worker: %d\n", workers, messages)
	fmt.Println()

	// connect all workers before the clock starts
	pools := base.NewPools(0)
	clients := make([]*client.Client, workers)
	for i := range clients {
		c, err := connect(pools)
		if err != nil {
			for _, open := range clients[:i] {
				_ = open.Close()
			}
			return err
		}
		clients[i] = c
	}
	defer func() {
		for _, c := range clients {
			_ = c.Close()
		}
	}()

	latency := metrics.NewTimer()
	defer latency.Stop()
	var failures atomic.Int64

	results := make([]benchResult, workers)
	var wg sync.WaitGroup
	start := time.Now()
	for i, c := range clients {
		wg.Add(1)
		go func(i int, c *client.Client) {
			defer wg.Done()
			began := time.Now()
			for j := 0; j < messages; j++ {
				sent := time.Now()
				if _, err := c.Send(statement); err != nil {
					failures.Add(1)
					results[i].err = err
					break
				}
				latency.UpdateSince(sent)
				results[i].sent++
			}
			results[i].elapsed = time.Since(began)
		}(i, c)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// per worker throughput, the spread shows how fair the server is
	rates := make([]float64, 0, workers)
	for i, r := range results {
		if r.err != nil {
			pterm.Warning.Printfln("worker %d stopped after %d messages: %v", i, r.sent, r.err)
		}
		if r.elapsed > 0 {
			rates = append(rates, float64(r.sent)/r.elapsed.Seconds())
		}
	}
	fairness := libUtil.NewStats(rates)

	total := int(latency.Count())
	printResult("round trip", testing.BenchmarkResult{N: max(total, 1), T: elapsed})
	fmt.Println()

	ps := latency.Percentiles([]float64{0.5, 0.95, 0.99})
	return pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"Metric", "Value"},
		{"Messages", fmt.Sprintf("%d", total)},
		{"Failed workers", fmt.Sprintf("%d", failures.Load())},
		{"Duration", elapsed.Round(time.Millisecond).String()},
		{"Throughput", fmt.Sprintf("%.2f msg/sec", float64(total)/elapsed.Seconds())},
		{"Latency mean", formatNanos(latency.Mean())},
		{"Latency p50", formatNanos(ps[0])},
		{"Latency p95", formatNanos(ps[1])},
		{"Latency p99", formatNanos(ps[2])},
		{"Latency max", formatNanos(float64(latency.Max()))},
		{"Worker rate min / max", fmt.Sprintf("%.2f / %.2f msg/sec", fairness.Min, fairness.Max)},
		{"Worker rate std dev", fmt.Sprintf("%.2f msg/sec", fairness.StdDeviation)},
		{"Worker fairness (min/max)", fmt.Sprintf("%.3f", fairness.MinMaxRatio)},
	}).Render()
}

func formatNanos(ns float64) string {
	return time.Duration(ns).Round(time.Microsecond).String()
}

func printResult(test string, result testing.BenchmarkResult) {
	nsPerOp := float64(result.T.Nanoseconds()) / float64(result.N)
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Format the time per operation with appropriate units
	var timePerOpStr string
	if nsPerOp < 1000 {
		timePerOpStr = fmt.Sprintf("%.2f ns/op", nsPerOp)
	} else if nsPerOp < 1000000 {
		timePerOpStr = fmt.Sprintf("%.2f ns/op (%.2f µs/op)", nsPerOp, nsPerOp/1000)
	} else if nsPerOp < 1000000000 {
		timePerOpStr = fmt.Sprintf("%.2f ns/op (%.2f ms/op)", nsPerOp, nsPerOp/1000000)
	} else {
		timePerOpStr = fmt.Sprintf("%.2f ns/op (%.2f s/op)", nsPerOp, nsPerOp/1000000000)
	}

	opsPerSecStr := fmt.Sprintf("%.2f ops/sec", opsPerSec)

	fmt.Printf("%-20s\t%s\t%s\n", test, timePerOpStr, opsPerSecStr)
}
