package workspace

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"

	"github.com/sofmeright/cfgmod/src/config"
	"github.com/sofmeright/cfgmod/src/ctxlog"
	"github.com/sofmeright/cfgmod/src/layer"
)

// Delta detects declaration files changed relative to a baseline.
type Delta struct {
	Root         string
	TargetBranch string
}

// ChangedFiles returns workspace-relative paths (slash separated) changed in
// the worktree (staged or not) or between the target branch and HEAD.
// Returns nil (everything is affected) if git is unavailable.
func (d *Delta) ChangedFiles(ctx context.Context) (map[string]bool, error) {
	log := ctxlog.FromContext(ctx)

	repo, err := git.PlainOpenWithOptions(d.Root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		log.Debug("delta: not a git repo, selecting all targets")
		return nil, nil
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, nil
	}
	prefix, err := filepath.Rel(wt.Filesystem.Root(), d.Root)
	if err != nil {
		return nil, err
	}
	prefix = filepath.ToSlash(prefix)

	status, err := wt.Status()
	if err != nil {
		log.Debug("delta: worktree status failed, selecting all targets", "error", err)
		return nil, nil
	}
	repoChanged := make(map[string]bool)
	for p, s := range status {
		if s.Worktree == git.Unmodified && s.Staging == git.Unmodified {
			continue
		}
		repoChanged[p] = true
	}

	branch, err := d.branchChanges(ctx, repo)
	if err != nil {
		log.Debug("delta: branch diff failed, selecting all targets", "error", err)
		return nil, nil
	}
	for p := range branch {
		repoChanged[p] = true
	}

	// Re-root repository paths onto the workspace.
	changed := make(map[string]bool)
	for p := range repoChanged {
		switch {
		case prefix == ".":
			changed[p] = true
		case strings.HasPrefix(p, prefix+"/"):
			changed[strings.TrimPrefix(p, prefix+"/")] = true
		}
	}
	log.Debug("delta computed", "changed", len(changed))
	return changed, nil
}

// branchChanges returns files changed between the target branch and HEAD.
func (d *Delta) branchChanges(ctx context.Context, repo *git.Repository) (map[string]bool, error) {
	targetBranch := d.targetBranch(repo)

	headRef, err := repo.Head()
	if err != nil {
		// No commits yet: only the worktree counts.
		return nil, nil
	}
	headCommit, err := repo.CommitObject(headRef.Hash())
	if err != nil {
		return nil, fmt.Errorf("getting HEAD commit: %w", err)
	}

	targetRef, err := repo.Reference(plumbing.NewBranchReferenceName(targetBranch), true)
	if err != nil {
		targetRef, err = repo.Reference(plumbing.NewRemoteReferenceName("origin", targetBranch), true)
		if err != nil {
			return nil, nil // target branch not found
		}
	}
	targetCommit, err := repo.CommitObject(targetRef.Hash())
	if err != nil {
		return nil, fmt.Errorf("getting target commit: %w", err)
	}
	if headCommit.Hash == targetCommit.Hash {
		return nil, nil
	}

	headTree, err := headCommit.Tree()
	if err != nil {
		return nil, err
	}
	targetTree, err := targetCommit.Tree()
	if err != nil {
		return nil, err
	}
	changes, err := object.DiffTreeWithOptions(ctx, targetTree, headTree, &object.DiffTreeOptions{})
	if err != nil {
		return nil, fmt.Errorf("diffing trees: %w", err)
	}

	changed := make(map[string]bool)
	for _, change := range changes {
		if name := changeName(change); name != "" {
			changed[name] = true
		}
	}
	return changed, nil
}

// targetBranch determines the branch to diff against.
func (d *Delta) targetBranch(repo *git.Repository) string {
	if branch := os.Getenv("CFGMOD_TARGET_BRANCH"); branch != "" {
		return branch
	}
	if d.TargetBranch != "" {
		return d.TargetBranch
	}
	for _, v := range []string{
		"CI_MERGE_REQUEST_TARGET_BRANCH_NAME", // GitLab CI
		"GITHUB_BASE_REF",                     // GitHub Actions
	} {
		if branch := os.Getenv(v); branch != "" {
			return branch
		}
	}
	// ref.Target() is like "refs/remotes/origin/main"
	if ref, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", "HEAD"), false); err == nil {
		if b, ok := strings.CutPrefix(ref.Target().String(), "refs/remotes/origin/"); ok {
			return b
		}
	}
	return "main"
}

func changeName(change *object.Change) string {
	action, err := change.Action()
	if err != nil {
		return ""
	}
	switch action {
	case merkletrie.Insert, merkletrie.Modify:
		return change.To.Name
	case merkletrie.Delete:
		return change.From.Name
	}
	return ""
}

// Affected keeps the targets whose resolution inputs may have changed: a
// package file in their ancestor chain, or the catalog. A nil changed set
// keeps every target.
func (w *Workspace) Affected(targets []layer.Target, changed map[string]bool) []layer.Target {
	if changed == nil {
		return targets
	}
	if rel, err := filepath.Rel(w.Root, w.CatalogPath); err == nil && changed[filepath.ToSlash(rel)] {
		return targets
	}

	var out []layer.Target
	for _, t := range targets {
		for _, dir := range t.Ancestors {
			if changed[path.Join(dir, config.PackageFileName)] {
				out = append(out, t)
				break
			}
		}
	}
	return out
}
