package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sofmeright/cfgmod/src/layer"
	"github.com/sofmeright/cfgmod/src/output"
	"github.com/sofmeright/cfgmod/src/resolve"
	"github.com/sofmeright/cfgmod/src/workspace"
)

var (
	resolveSel   selection
	resolveJobs  int
	resolveJSON  bool
	resolveJUnit string
	resolveDelta bool
	resolveBase  string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve PATTERN[?modifiers]...",
	Short: "Resolve the configuration of top-level targets",
	Long: `Resolve the configuration of every target matched by the patterns.

Patterns are //dir:name, //dir:, //dir/... or //... and may carry
modifiers inline (//app:bin?linux,release). Alternatively, --modifier
applies the same modifiers to every pattern; the two forms cannot be mixed.

All targets are resolved even when some fail; the command exits non-zero
if any target failed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	resolveSel.register(resolveCmd)
	resolveCmd.Flags().IntVarP(&resolveJobs, "jobs", "j", 0, "targets resolved in parallel (default: GOMAXPROCS)")
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "print results as JSON")
	resolveCmd.Flags().StringVar(&resolveJUnit, "junit", "", "write a JUnit report to this directory")
	resolveCmd.Flags().BoolVar(&resolveDelta, "changed", false, "only targets whose package files or catalog changed (git)")
	resolveCmd.Flags().StringVar(&resolveBase, "base", "", "branch to diff against with --changed (default: CI target branch or main)")

	rootCmd.AddCommand(resolveCmd)
}

type jsonOutcome struct {
	Target string          `json:"target"`
	Result *resolve.Result `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	sess, reqs, err := resolveSel.prepare(ctx, args)
	if err != nil {
		return err
	}

	if resolveDelta {
		reqs, err = affectedOnly(ctx, sess, reqs)
		if err != nil {
			return err
		}
	}

	outcomes, err := sess.resolver.ResolveAll(ctx, reqs, resolveJobs)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	sess.logStats(ctx)

	if resolveJUnit != "" {
		if err := output.WriteResolveJUnit(resolveJUnit, outcomes, elapsed); err != nil {
			return err
		}
	}

	failed := resolve.Failed(outcomes)
	if resolveJSON {
		out := make([]jsonOutcome, len(outcomes))
		for i, o := range outcomes {
			out[i] = jsonOutcome{Target: o.Label, Result: o.Result}
			if o.Err != nil {
				out[i].Error = o.Err.Error()
			}
		}
		if err := output.WriteJSON(cmd.OutOrStdout(), out); err != nil {
			return err
		}
	} else {
		p := output.NewPrinter(sess.ws.Catalog)
		p.Writer = cmd.OutOrStdout()
		output.SectionStart(p.Writer, "cfgmod_resolve", "Resolved configurations")
		p.Outcomes(outcomes, elapsed)
		output.SectionEnd(p.Writer, "cfgmod_resolve")
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d targets failed to resolve", failed, len(outcomes))
	}
	return nil
}

func affectedOnly(ctx context.Context, sess *session, reqs []resolve.Request) ([]resolve.Request, error) {
	d := &workspace.Delta{Root: sess.ws.Root, TargetBranch: resolveBase}
	changed, err := d.ChangedFiles(ctx)
	if err != nil {
		return nil, err
	}
	targets := make([]layer.Target, len(reqs))
	for i, r := range reqs {
		targets[i] = r.Target
	}
	keep := make(map[string]bool)
	for _, t := range sess.ws.Affected(targets, changed) {
		keep[t.Label] = true
	}
	out := reqs[:0]
	for _, r := range reqs {
		if keep[r.Target.Label] || r.Target.Err != nil {
			out = append(out, r)
		}
	}
	return out, nil
}
