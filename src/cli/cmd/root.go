package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sofmeright/cfgmod/src/ctxlog"
)

var (
	rootDir     string
	catalogFile string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "cfgmod",
	Short: "Resolve build target configurations from modifiers",
	Long: `cfgmod computes the configuration of top-level build targets by
layering modifiers declared on ancestor directories, on the target itself,
and on the command line.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		cmd.SetContext(ctxlog.WithLogger(ctx, ctxlog.New(os.Stderr, verbose)))
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "workspace root (default: nearest directory holding a catalog)")
	rootCmd.PersistentFlags().StringVar(&catalogFile, "catalog", "", "catalog file (default: catalog.yml or catalog.toml at the root)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
