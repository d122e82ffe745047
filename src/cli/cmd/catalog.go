package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sofmeright/cfgmod/src/constraint"
	"github.com/sofmeright/cfgmod/src/output"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the constraint catalog",
	Args:  cobra.NoArgs,
	RunE:  runCatalog,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}

func runCatalog(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd.Context(), "")
	if err != nil {
		return err
	}
	cat := ws.Catalog
	w := cmd.OutOrStdout()
	color := output.UseColor()

	output.ContextBlock(w, []output.KV{
		{Key: "root", Value: ws.Root},
		{Key: "catalog", Value: ws.CatalogPath},
		{Key: "host", Value: hostSummary(cmd.Context(), cat)},
	})

	sec := output.NewSection(w, "Settings", 0, color)
	for _, s := range cat.Settings() {
		vals := cat.Values(s)
		names := make([]string, len(vals))
		for i, v := range vals {
			names[i] = cat.ShortName(string(v))
		}
		sec.KeyValue(cat.ShortName(string(s)), strings.Join(names, ", "))
	}
	sec.Close()

	sec = output.NewSection(w, "Aliases", 0, color)
	for _, a := range cat.Aliases() {
		ref, _ := cat.Lookup(a)
		target := string(ref.Value)
		if ref.Kind == constraint.RefSetting {
			target = string(ref.Setting)
		}
		sec.KeyValue(a, output.Dimmed(fmt.Sprintf("%s %s", ref.Kind, target), color))
	}
	sec.Close()

	sec = output.NewSection(w, "Bundles", 0, color)
	for _, b := range cat.Bundles() {
		vals, _ := cat.Bundle(b)
		sec.KeyValue(b, shortList(cat, vals))
	}
	sec.Close()

	sec = output.NewSection(w, "Platforms", 0, color)
	for _, name := range cat.Platforms() {
		cfg, _ := cat.Platform(name)
		var vals []constraint.Value
		for _, s := range cfg.Settings() {
			v, _ := cfg.Get(s)
			vals = append(vals, v)
		}
		sec.KeyValue(name, shortList(cat, vals))
	}
	sec.Close()
	return nil
}

func shortList(cat *constraint.Catalog, vals []constraint.Value) string {
	names := make([]string, len(vals))
	for i, v := range vals {
		names[i] = cat.ShortName(string(v))
	}
	return strings.Join(names, ", ")
}

func hostSummary(ctx context.Context, cat *constraint.Catalog) string {
	var sel selection
	snap := sel.hostSnapshot(ctx, cat)
	if snap.IsEmpty() {
		return "(unmapped)"
	}
	var parts []string
	for _, s := range snap.Settings() {
		v, _ := snap.Get(s)
		parts = append(parts, cat.ShortName(string(s))+"="+cat.ShortName(string(v)))
	}
	return strings.Join(parts, " ")
}
