package rules

import "github.com/theirongolddev/plotlog/internal/model"

// Classifier is a stateless per-line classifier over an unordered set of
// filters. The first filter in declaration order whose pattern matches wins.
type Classifier struct {
	filters []Rule
}

// NewClassifier returns a classifier over filters.
func NewClassifier(filters []Rule) *Classifier {
	return &Classifier{filters: filters}
}

// Kinds returns the event names of the filters, in declaration order.
func (c *Classifier) Kinds() []model.Kind {
	kinds := make([]model.Kind, 0, len(c.filters))
	for _, f := range c.filters {
		kinds = append(kinds, f.Event)
	}
	return kinds
}

// Classify maps line through the first matching filter into a fresh payload.
// ok is false when no filter matches.
func (c *Classifier) Classify(line string) (model.Kind, model.Record, bool, error) {
	for _, f := range c.filters {
		groups := f.Match(line)
		if groups == nil {
			continue
		}
		payload := model.Record{}
		if err := Apply(f.Values, groups, payload); err != nil {
			return f.Event, nil, true, err
		}
		return f.Event, payload, true, nil
	}
	return "", nil, false, nil
}
