package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sofmeright/cfgmod/src/output"
	"github.com/sofmeright/cfgmod/src/resolve"
)

var (
	auditSel   selection
	auditTrace bool
	auditJSON  bool
)

var auditCmd = &cobra.Command{
	Use:   "audit PATTERN[?modifiers]...",
	Short: "Show the modifier layers of targets",
	Long: `Show, for every matched target, the modifiers contributed by each
ancestor directory, by the target and by the command line, plus its legacy
platform configuration.

With --trace the targets are also resolved and every assignment is listed,
including the ones a later layer overrode.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAudit,
}

func init() {
	auditSel.register(auditCmd)
	auditCmd.Flags().BoolVar(&auditTrace, "trace", false, "resolve and include the full resolution trace")
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "print reports as JSON")

	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sess, reqs, err := auditSel.prepare(ctx, args)
	if err != nil {
		return err
	}

	reports := make([]*resolve.Report, 0, len(reqs))
	failed := 0
	for _, req := range reqs {
		rep, err := sess.resolver.Audit(ctx, req.Target, req.CommandLine, auditTrace)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			failed++
			rep = &resolve.Report{Target: req.Target.Label, RuleKind: req.Target.RuleKind, Error: err.Error()}
		}
		reports = append(reports, rep)
	}
	sess.logStats(ctx)

	if auditJSON {
		if err := output.WriteJSON(cmd.OutOrStdout(), reports); err != nil {
			return err
		}
	} else {
		p := output.NewPrinter(sess.ws.Catalog)
		p.Writer = cmd.OutOrStdout()
		for _, rep := range reports {
			p.Audit(rep)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d targets could not be audited", failed, len(reports))
	}
	return nil
}
