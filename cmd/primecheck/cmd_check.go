package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"primecheck/internal/logging"
	"primecheck/internal/pipeline"
)

var showStages bool

// checkCmd evaluates one expression and prints the result line
var checkCmd = &cobra.Command{
	Use:   "check [expression...]",
	Short: "Check a single expression and print the result",
	Long: `Evaluates the expression and prints exactly one line:

  Result: Prime
  Result: Not prime
  Parse error: <reason>

Arguments are joined with spaces, so shell-split input works unquoted.
With no arguments the expression is read from stdin.

Interrupting the command (Ctrl+C) or exceeding --timeout abandons the query:
nothing is printed and the exit status is non-zero.`,
	Example: `  primecheck check "2+3*5"
  primecheck check 100! + 1
  echo "(2+3)*7!+1" | primecheck check`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&showStages, "stages", false, "Print per-stage timings to stderr")
}

func runCheck(cmd *cobra.Command, args []string) error {
	input := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		input = strings.TrimRight(string(data), "\r\n")
	}

	ctx, cancel := signalContext()
	defer cancel()

	tp, err := startTracing(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer stopTracing(tp)

	log := logging.For(logger, logging.CategoryCLI)
	out, err := newEngine(cfg.Engine, pipeline.WithTracerProvider(tp)).Check(ctx, input)
	if err != nil {
		if errors.Is(err, pipeline.ErrCancelled) {
			log.Info("Check abandoned", zap.Error(err))
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), out.Message())
	if showStages {
		w := cmd.ErrOrStderr()
		for _, st := range out.Stages {
			fmt.Fprintf(w, "%-13s %-15s %s\n", st.Stage, st.Result, st.Elapsed)
		}
		fmt.Fprintf(w, "%-13s %-15s %s\n", "total", fmt.Sprintf("%d digits", out.Digits), out.Elapsed)
	}
	return nil
}
