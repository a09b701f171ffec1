// Command backtest runs one DCA session over a CSV price file and prints the
// summary as JSON.
//
//	backtest -csv prices.csv -symbol AAPL -params params.json -from 2021-01-01 -log
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/backtest"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/prices"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type output struct {
	Summary      backtest.Summary       `json:"summary"`
	Transactions []backtest.Transaction `json:"transactions,omitempty"`
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("backtest", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		csvPath      string
		paramsPath   string
		symbol       string
		fromStr      string
		toStr        string
		showLog      bool
		transactions bool
		logLevel     string
	)
	fs.StringVar(&csvPath, "csv", "", "daily price CSV (date and close columns required)")
	fs.StringVar(&paramsPath, "params", "", "optional JSON file overriding default parameters")
	fs.StringVar(&symbol, "symbol", "SYMBOL", "symbol label for the report")
	fs.StringVar(&fromStr, "from", "", "optional start date (YYYY-MM-DD)")
	fs.StringVar(&toStr, "to", "", "optional end date (YYYY-MM-DD)")
	fs.BoolVar(&showLog, "log", false, "print the diagnostic log to stderr")
	fs.BoolVar(&transactions, "transactions", false, "include transactions in the output")
	fs.StringVar(&logLevel, "log-level", "warn", "service log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if csvPath == "" {
		fmt.Fprintln(stderr, "error: -csv is required")
		fs.Usage()
		return 2
	}

	series, err := loadSeries(csvPath, fromStr, toStr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	params, err := loadParams(paramsPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	log := logger.NewWithWriter(logger.Config{Level: logLevel}, stderr)
	res, err := backtest.Run(ctx, symbol, series, params, backtest.WithLogger(log))
	if err != nil {
		fmt.Fprintf(stderr, "backtest error: %v\n", err)
		return 1
	}

	if showLog {
		fmt.Fprint(stderr, res.Log)
	}

	out := output{Summary: res.Summary}
	if transactions {
		out.Transactions = res.Transactions
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "json: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, string(b))
	return 0
}

func loadSeries(path, fromStr, toStr string) ([]backtest.PricePoint, error) {
	from, to, err := prices.ParseWindow(fromStr, toStr)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open price file: %w", err)
	}
	defer f.Close()

	points, err := prices.LoadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	window := points[:0]
	for _, p := range points {
		if !from.IsZero() && p.Date.Before(from) {
			continue
		}
		if !to.IsZero() && p.Date.After(to) {
			continue
		}
		window = append(window, p)
	}
	if len(window) == 0 {
		return nil, fmt.Errorf("%w: no prices between %q and %q", prices.ErrNoPrices, fromStr, toStr)
	}
	return window, nil
}

// loadParams overlays a JSON file onto the default parameters. Unknown keys
// are rejected so a misspelled field cannot silently fall back to a default.
func loadParams(path string) (backtest.Params, error) {
	params := backtest.DefaultParams()
	if path == "" {
		return params, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return params, fmt.Errorf("failed to read params file: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&params); err != nil {
		return params, fmt.Errorf("failed to parse params file: %w", err)
	}
	return params, nil
}
