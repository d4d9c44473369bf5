package environment

import "context"

// ChainLoader tries an ordered list of loaders; the first successful match
// wins. A not-found result moves on to the next loader, any other error
// propagates immediately.
type ChainLoader struct {
	loaders []Loader
}

// NewChainLoader creates a chain over the given loaders in lookup order.
func NewChainLoader(loaders ...Loader) *ChainLoader {
	return &ChainLoader{loaders: loaders}
}

// GetSourceContext implements Loader.
func (c *ChainLoader) GetSourceContext(ctx context.Context, name, requestedFrom string) (TemplateSource, error) {
	for _, l := range c.loaders {
		src, err := l.GetSourceContext(ctx, name, requestedFrom)
		if err == nil {
			return src, nil
		}
		if !IsNotFound(err) {
			return TemplateSource{}, err
		}
	}
	return TemplateSource{}, &NotFoundError{Name: name}
}
