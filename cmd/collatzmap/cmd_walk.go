package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/nvandessel/collatzmap/internal/collatz"
	"github.com/nvandessel/collatzmap/internal/scan"
	"github.com/nvandessel/collatzmap/internal/visualization"
	"github.com/spf13/cobra"
)

func newWalkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "walk <start>",
		Short: "Walk and classify a single odd start",
		Long: `Walk the Collatz trajectory of one odd start and print its classification
and the odd values it visited.

By default the start is walked against the memo a scan would hold on reaching
it, so the classification matches what scan reports. This walks every smaller
odd start first; use --no-prime for large starts to walk against {1} only.

Examples:
  collatzmap walk 27
  collatzmap walk 1180591620717411303423 --no-prime
  collatzmap walk 27 --dot | dot -Tsvg > 27.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			noPrime, _ := cmd.Flags().GetBool("no-prime")
			dot, _ := cmd.Flags().GetBool("dot")
			out := cmd.OutOrStdout()

			start, ok := new(big.Int).SetString(strings.ReplaceAll(args[0], "_", ""), 10)
			if !ok {
				return fmt.Errorf("start %q is not a decimal integer", args[0])
			}

			memo := collatz.NewMemo()
			if !noPrime {
				if !start.IsUint64() {
					return fmt.Errorf("start %s is too large to prime; use --no-prime", start)
				}
				ctx, stop := signalContext(cmd.Context())
				defer stop()
				primed, err := scan.Prime(ctx, start.Uint64())
				if err != nil {
					return fmt.Errorf("failed to prime memo: %w", err)
				}
				memo = primed
			}

			if dot {
				g, err := visualization.Trajectory(start, memo)
				if err != nil {
					return err
				}
				fmt.Fprint(out, visualization.RenderDOT(g))
				return nil
			}

			class, visited, err := collatz.Walk(start, memo)
			if err != nil {
				return err
			}

			values := visited.Values()
			if jsonOut {
				strs := make([]string, len(values))
				for i, v := range values {
					strs[i] = v.String()
				}
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"start":          start.String(),
					"classification": class,
					"visited":        strs,
					"memo_size":      memo.Len(),
					"primed":         !noPrime,
				})
			}

			fmt.Fprintf(out, "%s is %s (memo size %d)\n", start, class, memo.Len())
			fmt.Fprintf(out, "Visited %d odd values:\n", len(values))
			for _, v := range values {
				fmt.Fprintf(out, "  %s\n", v)
			}
			return nil
		},
	}

	cmd.Flags().Bool("no-prime", false, "Walk against the seed memo {1} instead of priming with all smaller starts")
	cmd.Flags().Bool("dot", false, "Print the odd trajectory as a Graphviz DOT graph")

	return cmd
}
