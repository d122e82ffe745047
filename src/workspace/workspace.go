// Package workspace maps a directory tree of declaration files onto targets,
// ancestor chains and directory-scope modifiers.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"

	"github.com/sofmeright/cfgmod/src/config"
	"github.com/sofmeright/cfgmod/src/constraint"
	"github.com/sofmeright/cfgmod/src/ctxlog"
	"github.com/sofmeright/cfgmod/src/layer"
	"github.com/sofmeright/cfgmod/src/modifier"
)

// ErrNoTargets is returned when a pattern matches nothing.
var ErrNoTargets = errors.New("pattern matched no targets")

// Options tune how a workspace is opened.
type Options struct {
	// CatalogPath overrides catalog discovery at the root.
	CatalogPath string
	// TargetPlatform, when set, replaces every target's legacy platform.
	TargetPlatform string
	// ToolVersion is checked against the catalog's requires constraint.
	ToolVersion string
}

// Workspace is an opened workspace. It is read-only after Open and safe for
// concurrent use.
type Workspace struct {
	Root        string
	CatalogPath string
	Catalog     *constraint.Catalog

	targetPlatform constraint.Configuration
	hasOverride    bool
}

// FindRoot locates the workspace root for start: the nearest directory at or
// above start that holds a catalog, not looking past the enclosing git
// worktree when there is one.
func FindRoot(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	stop := ""
	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	switch {
	case err == nil:
		wt, err := repo.Worktree()
		if err == nil {
			stop = wt.Filesystem.Root()
		}
	case !errors.Is(err, git.ErrRepositoryNotExists):
		return "", fmt.Errorf("opening git repository: %w", err)
	}

	for dir := abs; ; dir = filepath.Dir(dir) {
		if _, err := config.FindCatalog(dir); err == nil {
			return dir, nil
		}
		if dir == stop || filepath.Dir(dir) == dir {
			break
		}
	}
	return "", fmt.Errorf("no workspace catalog (%s) found at or above %s", strings.Join(config.CatalogFileNames, ", "), abs)
}

// Open loads and validates the catalog of the workspace at root.
func Open(ctx context.Context, root string, opts Options) (*Workspace, error) {
	log := ctxlog.FromContext(ctx)

	catPath := opts.CatalogPath
	if catPath == "" {
		p, err := config.FindCatalog(root)
		if err != nil {
			return nil, err
		}
		catPath = p
	}

	file, err := config.LoadCatalog(catPath)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	warnings, err := config.ValidateCatalog(file)
	for _, w := range warnings {
		log.Warn("catalog", "path", catPath, "warning", w)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", catPath, err)
	}
	if err := config.CheckRequires(file.Requires, opts.ToolVersion); err != nil {
		return nil, fmt.Errorf("%s: %w", catPath, err)
	}
	cat, err := constraint.NewCatalog(file.Spec())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", catPath, err)
	}

	ws := &Workspace{Root: root, CatalogPath: catPath, Catalog: cat}
	if opts.TargetPlatform != "" {
		cfg, err := cat.Platform(opts.TargetPlatform)
		if err != nil {
			return nil, fmt.Errorf("--target-platforms: %w", err)
		}
		ws.targetPlatform = cfg
		ws.hasOverride = true
	}
	log.Debug("workspace opened", "root", root, "catalog", catPath, "settings", len(cat.Settings()))
	return ws, nil
}

// Package is one loaded declaration file with its targets.
type Package struct {
	Dir     string
	File    *config.Package
	Targets []layer.Target
}

// loadFile reads and validates the declaration file of dir ("" is the root).
// A directory without a file is an empty package.
func (w *Workspace) loadFile(ctx context.Context, dir string) (*config.Package, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	rel := path.Join(dir, config.PackageFileName)
	file, err := config.LoadPackage(filepath.Join(w.Root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, "", err
	}
	warnings, err := config.ValidatePackage(file)
	for _, wn := range warnings {
		ctxlog.FromContext(ctx).Warn("package", "path", rel, "warning", wn)
	}
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", rel, err)
	}
	return file, rel, nil
}

// LoadPackage reads the declaration file of dir and resolves its targets.
// A target whose own declarations do not resolve is still returned, with
// Err set; only an unreadable or malformed file fails the whole package.
func (w *Workspace) LoadPackage(ctx context.Context, dir string) (*Package, error) {
	file, rel, err := w.loadFile(ctx, dir)
	if err != nil {
		return nil, err
	}
	pkg := &Package{Dir: dir, File: file}
	broken := 0
	for _, tc := range file.Targets {
		t := w.target(dir, rel, file, tc)
		if t.Err != nil {
			broken++
		}
		pkg.Targets = append(pkg.Targets, t)
	}
	ctxlog.FromContext(ctx).Debug("package loaded", "path", rel, "targets", len(pkg.Targets), "broken", broken)
	return pkg, nil
}

func (w *Workspace) target(dir, rel string, file *config.Package, tc config.TargetConfig) layer.Target {
	t := layer.Target{
		Label:     Label{Dir: dir, Name: tc.Name}.String(),
		RuleKind:  tc.Rule,
		Ancestors: Ancestors(dir),
	}
	mods, err := modifier.DeclareMap(tc.Modifiers, w.Catalog, rel)
	if err != nil {
		t.Err = err
		return t
	}
	legacy, err := w.legacy(file, tc)
	if err != nil {
		t.Err = err
		return t
	}
	t.Modifiers = mods
	t.Legacy = legacy
	return t
}

// legacy picks the pre-modifier platform: the command-line override, else the
// target's own platform, else the package default.
func (w *Workspace) legacy(file *config.Package, tc config.TargetConfig) (constraint.Configuration, error) {
	if w.hasOverride {
		return w.targetPlatform.Clone(), nil
	}
	name := tc.Platform
	if name == "" {
		name = file.DefaultPlatform
	}
	if name == "" {
		return constraint.Configuration{}, nil
	}
	return w.Catalog.Platform(name)
}

// DirectoryModifiers implements layer.ScopeSource. Only the package-level
// modifiers are resolved; targets declared alongside them are not consulted.
func (w *Workspace) DirectoryModifiers(ctx context.Context, dir string) ([]modifier.Declaration, error) {
	file, rel, err := w.loadFile(ctx, dir)
	if err != nil {
		return nil, err
	}
	return modifier.DeclareMap(file.Modifiers, w.Catalog, rel)
}

// Match returns the targets a pattern selects, sorted by label. Targets that
// failed to load are included with Err set so callers can report them
// alongside the others.
func (w *Workspace) Match(ctx context.Context, pattern string) ([]layer.Target, error) {
	p, err := ParsePattern(pattern)
	if err != nil {
		return nil, err
	}

	var dirs []string
	if p.Kind == MatchRecursive {
		dirs, err = w.packageDirs(p.Dir)
		if err != nil {
			return nil, err
		}
	} else {
		dirs = []string{p.Dir}
	}

	var out []layer.Target
	for _, dir := range dirs {
		pkg, err := w.LoadPackage(ctx, dir)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			// An unreadable package stands in for the targets it would have held.
			out = append(out, layer.Target{
				Label:     Pattern{Kind: MatchPackage, Dir: dir}.String(),
				Ancestors: Ancestors(dir),
				Err:       err,
			})
			continue
		}
		for _, t := range pkg.Targets {
			if p.Kind == MatchTarget && t.Label != (Label{Dir: p.Dir, Name: p.Name}).String() {
				continue
			}
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoTargets
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

// packageDirs lists directories at or below dir holding a package file.
// Hidden directories are skipped.
func (w *Workspace) packageDirs(dir string) ([]string, error) {
	base := filepath.Join(w.Root, filepath.FromSlash(dir))
	var out []string
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != base && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if _, err := os.Stat(filepath.Join(p, config.PackageFileName)); err != nil {
			return nil
		}
		rel, err := filepath.Rel(w.Root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			rel = ""
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
