// billaudit runs a single extraction file through the assessment pipeline
// and prints the result. Useful for tuning tolerances and weights against
// labeled samples without standing up the daemon.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/clearclaim/billaudit/internal/common"
	"github.com/clearclaim/billaudit/internal/dedupe"
	"github.com/clearclaim/billaudit/internal/entity"
	"github.com/clearclaim/billaudit/internal/fraud"
	"github.com/clearclaim/billaudit/internal/normalize"
	"github.com/clearclaim/billaudit/internal/pipeline"
	"github.com/clearclaim/billaudit/internal/store"
	"github.com/clearclaim/billaudit/internal/validate"
)

func main() {
	fs := ff.NewFlagSet("billaudit")
	var (
		input  = fs.StringLong("input", "", "path to a RawExtraction JSON file (required)")
		commit = fs.BoolLong("commit", "register the bill in the store after assessing")
		quiet  = fs.BoolLong("quiet", "suppress pipeline logs, print only the result")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("BILLAUDIT")); err != nil || *input == "" {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if *quiet {
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	data, err := os.ReadFile(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: reading %s: %v\n", *input, err)
		os.Exit(1)
	}
	var raw entity.RawExtraction
	if err := json.Unmarshal(data, &raw); err != nil {
		fmt.Fprintf(os.Stderr, "error: decoding %s: %v\n", *input, err)
		os.Exit(1)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid config: %v\n", err)
		os.Exit(1)
	}

	engine, err := fraud.NewEngine(cfg.Fraud, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	billStore := store.NewMemory()
	proc := pipeline.NewProcessor(
		logger,
		normalize.New(cfg.Normalize, logger),
		validate.New(cfg.Arithmetic),
		dedupe.NewDetector(billStore, cfg.Dedupe, cfg.Store.Timeout, logger),
		engine,
	)

	ctx := context.Background()
	assessed, err := proc.Process(ctx, &raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *commit {
		if err := proc.Confirm(ctx, assessed.Record, assessed.BillID); err != nil {
			fmt.Fprintf(os.Stderr, "error: committing: %v\n", err)
			os.Exit(1)
		}
	}

	out, err := json.MarshalIndent(assessed, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
