package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sofmeright/cfgmod/src/config"
)

var (
	migrateInPlace bool
	migrateOutput  string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [file]",
	Short: "Migrate a declaration file to the latest schema version",
	Long: `Migrate a .cfgmod.yml package file or a YAML catalog to the latest
schema version.

By default, prints the migrated file to stdout. Use --in-place to
overwrite the file, or --output to write to a different path.

Unversioned files are stamped with version: 1. TOML catalogs are
already versioned and are not handled here.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVarP(&migrateInPlace, "in-place", "i", false, "overwrite the file in place")
	migrateCmd.Flags().StringVarP(&migrateOutput, "output", "o", "", "write the migrated file to this path")

	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	inputPath := config.PackageFileName
	if len(args) > 0 {
		inputPath = args[0]
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inputPath, err)
	}

	migrated, err := config.MigrateToLatest(data)
	if err != nil {
		return err
	}

	switch {
	case migrateInPlace:
		if err := os.WriteFile(inputPath, migrated, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", inputPath, err)
		}
		fmt.Fprintf(os.Stderr, "  migrated %s (in-place)\n", inputPath)

	case migrateOutput != "":
		if err := os.WriteFile(migrateOutput, migrated, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", migrateOutput, err)
		}
		fmt.Fprintf(os.Stderr, "  migrated %s → %s\n", inputPath, migrateOutput)

	default:
		// Print to stdout (pipeable).
		fmt.Fprint(cmd.OutOrStdout(), string(migrated))
	}

	return nil
}
