package collect

import (
	"fmt"

	"github.com/nexdatas/nxstools/internal/nexus"
)

// DiscoveryRule selects placeholder fields.
type DiscoveryRule struct {
	FieldName       string // e.g. "postrun"
	CollectionClass string // e.g. "NXcollection"
}

// Discover walks the tree from root depth-first, children in name order, and
// returns every field matching rule.
func Discover(root nexus.Group, rule DiscoveryRule) ([]nexus.Field, error) {
	var found []nexus.Field
	var walk func(g nexus.Group) error
	walk = func(g nexus.Group) error {
		children, err := g.Children()
		if err != nil {
			return fmt.Errorf("list %s: %w", nexus.NodePath(g), err)
		}
		for _, child := range children {
			switch n := child.(type) {
			case nexus.Group:
				if err := walk(n); err != nil {
					return err
				}
			case nexus.Field:
				if n.Name() == rule.FieldName && g.Class() == rule.CollectionClass && n.DType() == nexus.String {
					found = append(found, n)
				}
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return found, nil
}

// Select resolves an explicit placeholder path such as
// /entry:NXentry/instrument/pilatus/collection/postrun.
func Select(root nexus.Group, path string) (nexus.Field, error) {
	node, err := nexus.Lookup(root, path)
	if err != nil {
		return nil, err
	}
	field, ok := node.(nexus.Field)
	if !ok || field.DType() != nexus.String {
		return nil, fmt.Errorf("%s: %w", path, ErrNotPlaceholder)
	}
	return field, nil
}
