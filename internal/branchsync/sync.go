// Package branchsync keeps the staging branch consistent with production
// before a session touches content, and exposes the rollback and deploy
// primitives built on the same store surface.
//
// The engine never resolves conflicts and never rolls back on its own:
// rollback is a compensating action only the orchestrator can decide to
// take, because only it knows whether a later step actually failed.
package branchsync

import (
	"context"
	"errors"
	"fmt"

	"bloghub/api/internal/gitstore"
)

// ErrMissingMainBranch is fatal: nothing was or will be mutated.
var ErrMissingMainBranch = errors.New("repo must contain a 'main' branch")

// ConflictError is a user-actionable merge conflict. The message tells
// the user to resolve it on the git host; no automatic resolution exists.
type ConflictError struct {
	Base    string
	Head    string
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) Unwrap() error {
	return gitstore.ErrMergeConflict
}

// Result captures what sync found, and in particular the rollback point.
// PreviousDevelopSHA is empty when develop had to be created: there is
// nothing to restore, and Rollback becomes a no-op.
type Result struct {
	DevelopExisted     bool
	PreviousDevelopSHA string
}

// Engine runs the per-session synchronization state machine.
type Engine struct {
	store gitstore.Store
}

func New(store gitstore.Store) *Engine {
	return &Engine{store: store}
}

// EnsureDevelopSynced runs once before any write in a session:
//
//  1. main must exist, or the session aborts untouched
//  2. develop is created from main's head when absent, otherwise its
//     current head is captured as the rollback point
//  3. main is merged into develop so staging carries anything published
//     out-of-band
//
// Steps are strictly sequential; a conflict in step 3 aborts with a
// ConflictError and develop keeps whatever state the store left it in
// (the store does not create partial merge commits).
func (e *Engine) EnsureDevelopSynced(ctx context.Context) (Result, error) {
	mainSHA, err := e.store.BranchHead(ctx, gitstore.ProductionBranch)
	if err != nil {
		if errors.Is(err, gitstore.ErrNotFound) {
			return Result{}, ErrMissingMainBranch
		}
		return Result{}, fmt.Errorf("check main branch: %w", err)
	}

	result := Result{}
	developSHA, err := e.store.BranchHead(ctx, gitstore.StagingBranch)
	switch {
	case errors.Is(err, gitstore.ErrNotFound):
		if err := e.store.CreateBranch(ctx, gitstore.StagingBranch, mainSHA); err != nil {
			return Result{}, fmt.Errorf("create develop from main: %w", err)
		}
	case err != nil:
		return Result{}, fmt.Errorf("check develop branch: %w", err)
	default:
		result.DevelopExisted = true
		result.PreviousDevelopSHA = developSHA
	}

	_, err = e.store.Merge(ctx, gitstore.StagingBranch, gitstore.ProductionBranch, "chore: sync develop with main")
	if err != nil {
		if errors.Is(err, gitstore.ErrMergeConflict) {
			return Result{}, &ConflictError{
				Base:    gitstore.StagingBranch,
				Head:    gitstore.ProductionBranch,
				Message: "cannot sync branches: merging 'main' into 'develop' causes conflicts; please resolve them on the git host first",
			}
		}
		return Result{}, fmt.Errorf("merge main into develop: %w", err)
	}
	return result, nil
}

// Rollback force-resets develop to the captured pre-merge head. A no-op
// when there is no rollback point (develop was freshly created).
func (e *Engine) Rollback(ctx context.Context, previousDevelopSHA string) error {
	if previousDevelopSHA == "" {
		return nil
	}
	if err := e.store.ForceSetBranch(ctx, gitstore.StagingBranch, previousDevelopSHA); err != nil {
		return fmt.Errorf("rollback develop: %w", err)
	}
	return nil
}

// Deploy promotes staging to production by merging develop into main.
func (e *Engine) Deploy(ctx context.Context) (gitstore.MergeResult, error) {
	res, err := e.store.Merge(ctx, gitstore.ProductionBranch, gitstore.StagingBranch, "chore: deploy develop to main")
	if err != nil {
		if errors.Is(err, gitstore.ErrMergeConflict) {
			return gitstore.MergeResult{}, &ConflictError{
				Base:    gitstore.ProductionBranch,
				Head:    gitstore.StagingBranch,
				Message: "deploy failed: merging 'develop' into 'main' causes conflicts; please resolve them on the git host first",
			}
		}
		return gitstore.MergeResult{}, fmt.Errorf("deploy develop to main: %w", err)
	}
	return res, nil
}
