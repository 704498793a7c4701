// Package writer implements read-modify-write file operations with
// optimistic concurrency: every write carries the revision marker it read,
// and a stale marker surfaces as a conflict for the caller to handle.
// Nothing here retries.
package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bloghub/api/internal/gitstore"
)

// Writer performs optimistic single-file writes against a store. The
// default write branch is staging; callers writing production opt in
// explicitly per call.
type Writer struct {
	store         gitstore.Store
	defaultBranch string
}

func New(store gitstore.Store) *Writer {
	return &Writer{store: store, defaultBranch: gitstore.StagingBranch}
}

func (w *Writer) branch(override string) string {
	if override != "" {
		return override
	}
	return w.defaultBranch
}

// FileRevision returns the current revision marker for a file, or the
// empty string when the file does not exist yet. Other failures
// propagate.
func (w *Writer) FileRevision(ctx context.Context, path, branch string) (string, error) {
	info, err := w.store.ReadFile(ctx, path, w.branch(branch))
	if err != nil {
		if errors.Is(err, gitstore.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return info.SHA, nil
}

// WriteText writes UTF-8 text: read the current marker, submit tagged
// with it. A concurrent move of the marker makes the store reject the
// write; the resulting gitstore.ErrWriteConflict is never retried here.
func (w *Writer) WriteText(ctx context.Context, path, text, message, branch string) (gitstore.PutResult, error) {
	return w.WriteBinary(ctx, path, []byte(text), message, branch)
}

// WriteBinary is WriteText for raw payloads; identical protocol.
func (w *Writer) WriteBinary(ctx context.Context, path string, data []byte, message, branch string) (gitstore.PutResult, error) {
	b := w.branch(branch)
	sha, err := w.FileRevision(ctx, path, b)
	if err != nil {
		return gitstore.PutResult{}, err
	}
	return w.store.WriteFile(ctx, gitstore.WriteFileOptions{
		Path:    path,
		Content: data,
		Message: message,
		Branch:  b,
		SHA:     sha,
	})
}

// WriteJSON writes a document as pretty-printed JSON with a trailing
// newline, the format the generator and the SPA both expect.
func (w *Writer) WriteJSON(ctx context.Context, path string, doc any, message, branch string) (gitstore.PutResult, error) {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return gitstore.PutResult{}, fmt.Errorf("marshal %s: %w", path, err)
	}
	return w.WriteBinary(ctx, path, append(payload, '\n'), message, branch)
}

// Delete removes a file. Deleting a file that is already gone is an
// error, not a no-op: it means the caller's view of the repo has drifted
// and should be surfaced early.
func (w *Writer) Delete(ctx context.Context, path, message, branch string) error {
	b := w.branch(branch)
	sha, err := w.FileRevision(ctx, path, b)
	if err != nil {
		return err
	}
	if sha == "" {
		return fmt.Errorf("cannot delete %s on %s: %w", path, b, gitstore.ErrNotFound)
	}
	return w.store.DeleteFile(ctx, path, message, sha, b)
}

// ReadText fetches a file's content as text at a ref.
func (w *Writer) ReadText(ctx context.Context, path, branch string) (string, string, error) {
	info, err := w.store.ReadFile(ctx, path, w.branch(branch))
	if err != nil {
		return "", "", err
	}
	return string(info.Content), info.SHA, nil
}

// ReadJSON decodes a JSON file at a ref into out.
func (w *Writer) ReadJSON(ctx context.Context, path, branch string, out any) error {
	info, err := w.store.ReadFile(ctx, path, w.branch(branch))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(info.Content, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
