package environment

import "context"

// OverrideEntry pins one logical name to an in-memory source.
type OverrideEntry struct {
	Name   string
	Source TemplateSource
}

// OverrideLoader serves specific in-memory sources for their logical names,
// shadowing whatever the fallback would return for them. Every other name
// is forwarded verbatim to the fallback loader; with a nil fallback, misses
// report not-found.
//
// A hit is returned with ResolvedPath rewritten to the requested name (the
// caller's perceived identity) and LogicalName set to the requesting
// consumer, so in-flight source can stand in for an on-disk template
// without changing how references against it resolve.
type OverrideLoader struct {
	entries  []OverrideEntry
	fallback Loader
}

// NewOverrideLoader creates an override loader over fallback. Entries are
// matched in order; the first matching name wins.
func NewOverrideLoader(fallback Loader, entries ...OverrideEntry) *OverrideLoader {
	return &OverrideLoader{entries: entries, fallback: fallback}
}

// GetSourceContext implements Loader.
func (o *OverrideLoader) GetSourceContext(ctx context.Context, name, requestedFrom string) (TemplateSource, error) {
	for _, e := range o.entries {
		if e.Name == name {
			src := e.Source
			src.ResolvedPath = name
			src.LogicalName = requestedFrom
			return src, nil
		}
	}

	if o.fallback == nil {
		return TemplateSource{}, &NotFoundError{Name: name}
	}
	return o.fallback.GetSourceContext(ctx, name, requestedFrom)
}
