package cmd

import (
	"context"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/sofmeright/cfgmod/src/constraint"
	"github.com/sofmeright/cfgmod/src/ctxlog"
	"github.com/sofmeright/cfgmod/src/host"
	"github.com/sofmeright/cfgmod/src/layer"
	"github.com/sofmeright/cfgmod/src/resolve"
	"github.com/sofmeright/cfgmod/src/version"
	"github.com/sofmeright/cfgmod/src/workspace"
)

// selection holds the flags shared by commands that pick targets.
type selection struct {
	modifiers       []string
	targetPlatforms string
	hostOS          string
	hostArch        string
}

func (s *selection) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&s.modifiers, "modifier", "m", nil, "modifier applied to every pattern (repeatable, comma-separated)")
	cmd.Flags().StringVar(&s.targetPlatforms, "target-platforms", "", "legacy platform for every target, overriding declared platforms")
	cmd.Flags().StringVar(&s.hostOS, "host-os", "", "host os to assume (default: "+runtime.GOOS+")")
	cmd.Flags().StringVar(&s.hostArch, "host-arch", "", "host arch to assume (default: "+runtime.GOARCH+")")
}

// session is everything one invocation shares across targets.
type session struct {
	ws       *workspace.Workspace
	resolver *resolve.Resolver
	scopes   *layer.ScopeCache
}

func openWorkspace(ctx context.Context, targetPlatforms string) (*workspace.Workspace, error) {
	root := rootDir
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		root, err = workspace.FindRoot(wd)
		if err != nil {
			return nil, err
		}
	}
	return workspace.Open(ctx, root, workspace.Options{
		CatalogPath:    catalogFile,
		TargetPlatform: targetPlatforms,
		ToolVersion:    version.Version,
	})
}

// prepare validates the command line, opens the workspace and expands the
// patterns into requests. Command-line syntax errors surface before anything
// is loaded. A pattern that matches nothing or carries an unknown modifier
// only fails its own requests.
func (s *selection) prepare(ctx context.Context, args []string) (*session, []resolve.Request, error) {
	patterns, err := layer.ParseCommandLine(args, s.modifiers)
	if err != nil {
		return nil, nil, err
	}

	ws, err := openWorkspace(ctx, s.targetPlatforms)
	if err != nil {
		return nil, nil, err
	}

	snap := s.hostSnapshot(ctx, ws.Catalog)
	scopes := layer.NewScopeCache(ws)
	sess := &session{
		ws:       ws,
		scopes:   scopes,
		resolver: resolve.New(ws.Catalog, snap, scopes, nil),
	}

	var reqs []resolve.Request
	for _, pa := range patterns {
		targets, err := ws.Match(ctx, pa.Pattern)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, err
			}
			reqs = append(reqs, resolve.Request{Target: layer.Target{Label: pa.Pattern, Err: err}})
			continue
		}
		cli, cliErr := layer.ExpandModifiers(pa.Modifiers, ws.Catalog)
		for _, t := range targets {
			if cliErr != nil && t.Err == nil {
				t.Err = cliErr
			}
			reqs = append(reqs, resolve.Request{Target: t, CommandLine: cli})
		}
	}
	ctxlog.FromContext(ctx).Debug("targets selected", "patterns", len(patterns), "targets", len(reqs), "host", snap.String())
	return sess, reqs, nil
}

// hostSnapshot maps the detected host, with any --host-* overrides, through
// the catalog. It is computed once per invocation.
func (s *selection) hostSnapshot(ctx context.Context, cat *constraint.Catalog) constraint.Configuration {
	info := host.Detect().With(map[string]string{"os": s.hostOS, "arch": s.hostArch})
	return host.Snapshot(ctx, cat, info)
}

func (s *session) logStats(ctx context.Context) {
	ctxlog.FromContext(ctx).Debug("cache stats",
		"scope_hits", s.scopes.Hits.Load(), "scope_misses", s.scopes.Misses.Load(),
		"plan_hits", s.resolver.Planner.Hits.Load(), "plan_misses", s.resolver.Planner.Misses.Load())
}
