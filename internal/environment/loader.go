// Package environment provides the shared template runtime the build
// bridge compiles against: a pluggable loader, a template registry and
// load-notification subscriptions. One Environment instance corresponds to
// one runtime module in the emitted code.
package environment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// TemplateSource is one loaded template: its code, the logical name it was
// requested under and the concrete path it resolved to. Immutable once
// constructed.
type TemplateSource struct {
	Code         string
	LogicalName  string
	ResolvedPath string
}

// Loader resolves a logical template name to source text and a concrete
// path. requestedFrom is the logical name of the template asking for it,
// allowing relative references.
type Loader interface {
	GetSourceContext(ctx context.Context, name, requestedFrom string) (TemplateSource, error)
}

// NotFoundError reports a template name no loader could resolve.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("template %q not found", e.Name)
}

// IsNotFound reports whether err is a template-not-found error.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// FilesystemLoader loads templates from a directory tree. Names are
// slash-separated paths relative to the root; names starting with ./ or ../
// resolve relative to the requesting template instead.
type FilesystemLoader struct {
	Root string
}

// NewFilesystemLoader creates a loader rooted at dir.
func NewFilesystemLoader(dir string) *FilesystemLoader {
	return &FilesystemLoader{Root: dir}
}

// GetSourceContext implements Loader.
func (l *FilesystemLoader) GetSourceContext(ctx context.Context, name, requestedFrom string) (TemplateSource, error) {
	if err := ctx.Err(); err != nil {
		return TemplateSource{}, err
	}

	logical := l.logicalPath(name, requestedFrom)
	full := filepath.Join(l.Root, filepath.FromSlash(logical))

	// Refuse paths escaping the root.
	if rel, err := filepath.Rel(l.Root, full); err != nil || strings.HasPrefix(rel, "..") {
		return TemplateSource{}, &NotFoundError{Name: name}
	}

	code, err := os.ReadFile(full) //nolint:gosec // G304: path is confined to the loader root above
	if err != nil {
		if os.IsNotExist(err) {
			return TemplateSource{}, &NotFoundError{Name: name}
		}
		return TemplateSource{}, fmt.Errorf("reading template %q: %w", name, err)
	}

	return TemplateSource{
		Code:         string(code),
		LogicalName:  name,
		ResolvedPath: logical,
	}, nil
}

// logicalPath normalizes a requested name to a root-relative slash path.
func (l *FilesystemLoader) logicalPath(name, requestedFrom string) string {
	if strings.HasPrefix(name, "./") || strings.HasPrefix(name, "../") {
		base := path.Dir(path.Clean(requestedFrom))
		return path.Clean(path.Join(base, name))
	}
	return path.Clean(name)
}
