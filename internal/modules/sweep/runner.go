package sweep

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/backtest"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
)

// Outcome is the result of one combination
type Outcome struct {
	Index   int               `json:"index"`
	Params  backtest.Params   `json:"params"`
	Summary *backtest.Summary `json:"summary,omitempty"`
	Error   string            `json:"error,omitempty"`

	result *backtest.Result
}

// Result returns the full engine result of a successful combination
func (o Outcome) Result() *backtest.Result {
	return o.result
}

// Progress is reported after every finished combination
type Progress struct {
	Done   int  `json:"done"`
	Total  int  `json:"total"`
	Index  int  `json:"index"`
	Failed bool `json:"failed"`
}

// ProgressFunc receives progress updates. Calls are serialized.
type ProgressFunc func(Progress)

// Report is a ranked sweep
type Report struct {
	Symbol     string    `json:"symbol"`
	Total      int       `json:"total"`
	Ranked     []Outcome `json:"ranked"`
	Failed     []Outcome `json:"failed,omitempty"`
	DurationMs int64     `json:"durationMs"`
}

// Best returns the top-ranked outcome, if any combination succeeded
func (r *Report) Best() (Outcome, bool) {
	if len(r.Ranked) == 0 {
		return Outcome{}, false
	}
	return r.Ranked[0], true
}

// Runner executes sweeps on a bounded pool of goroutines. Each combination
// gets its own Session; nothing is shared between them.
type Runner struct {
	workers int
	log     zerolog.Logger
}

// NewRunner creates a runner. workers <= 0 sizes the pool to the number of
// logical CPUs.
func NewRunner(workers int, log zerolog.Logger) *Runner {
	l := log.With().Str("component", "sweep").Logger()
	if workers <= 0 {
		workers = defaultWorkers(l)
	}
	return &Runner{workers: workers, log: l}
}

// Workers returns the pool size
func (r *Runner) Workers() int {
	return r.workers
}

func defaultWorkers(log zerolog.Logger) int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		log.Warn().Err(err).Msg("Failed to count CPUs, using runtime.NumCPU")
		n = runtime.NumCPU()
	}
	return n
}

// Run backtests every combination against prices. A failing combination is
// reported in Report.Failed; only a cancelled context or an invalid series
// fails the whole sweep.
func (r *Runner) Run(ctx context.Context, symbol string, prices []backtest.PricePoint, combos []backtest.Params, progress ProgressFunc) (*Report, error) {
	if err := backtest.ValidatePrices(prices); err != nil {
		return nil, err
	}
	if len(combos) == 0 {
		return nil, fmt.Errorf("%w: sweep has no combinations", backtest.ErrInvalidConfig)
	}

	start := time.Now()
	jobs := make(chan int)
	outcomes := make(chan Outcome)

	workers := r.workers
	if workers > len(combos) {
		workers = len(combos)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes <- r.runOne(ctx, symbol, prices, i, combos[i])
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range combos {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	all := make([]Outcome, 0, len(combos))
	for o := range outcomes {
		all = append(all, o)
		if progress != nil {
			progress(Progress{Done: len(all), Total: len(combos), Index: o.Index, Failed: o.Error != ""})
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sweep of %s cancelled after %d of %d combinations: %w", symbol, len(all), len(combos), err)
	}

	report := &Report{Symbol: symbol, Total: len(combos)}
	for _, o := range all {
		if o.Error != "" {
			report.Failed = append(report.Failed, o)
		} else {
			report.Ranked = append(report.Ranked, o)
		}
	}
	Rank(report.Ranked)
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].Index < report.Failed[j].Index })
	elapsed := time.Since(start)
	report.DurationMs = elapsed.Milliseconds()

	r.log.Info().
		Str("symbol", symbol).
		Int("combinations", len(combos)).
		Int("failed", len(report.Failed)).
		Int("workers", workers).
		Dur("duration", elapsed).
		Msg("Sweep completed")

	return report, nil
}

func (r *Runner) runOne(ctx context.Context, symbol string, prices []backtest.PricePoint, index int, params backtest.Params) Outcome {
	o := Outcome{Index: index, Params: params}
	res, err := backtest.Run(ctx, symbol, prices, params, backtest.WithoutDiagnosticLog())
	if err != nil {
		o.Error = err.Error()
		r.log.Debug().Err(err).Int("index", index).Msg("Combination failed")
		return o
	}
	o.Params = res.Params
	o.Summary = &res.Summary
	o.result = res
	return o
}

// Rank orders successful outcomes by total return descending, then lower
// drawdown, then combination index.
func Rank(outcomes []Outcome) {
	sort.SliceStable(outcomes, func(i, j int) bool {
		a, b := outcomes[i], outcomes[j]
		if a.Summary.TotalReturn != b.Summary.TotalReturn {
			return a.Summary.TotalReturn > b.Summary.TotalReturn
		}
		if a.Summary.MaxDrawdown != b.Summary.MaxDrawdown {
			return a.Summary.MaxDrawdown < b.Summary.MaxDrawdown
		}
		return a.Index < b.Index
	})
}
