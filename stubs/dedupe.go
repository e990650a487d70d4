package stubs

import (
	"sort"

	"github.com/teranos/typetrace/errors"
)

// DedupeModule merges generated classes that differ only in name. Classes
// are grouped by structural template; each group keeps its
// lexicographically smallest name, absorbs the other members' reference
// sites and repoints them. Groups stay in first-seen order. Running it
// again changes nothing.
func DedupeModule(m *ModuleStub) error {
	var order []string
	groups := make(map[string][]*ClassStub)
	for _, c := range m.GeneratedClasses {
		tmpl := c.Template()
		if _, ok := groups[tmpl]; !ok {
			order = append(order, tmpl)
		}
		groups[tmpl] = append(groups[tmpl], c)
	}

	merged := make([]*ClassStub, 0, len(order))
	for _, tmpl := range order {
		c, err := mergeGroup(groups[tmpl])
		if err != nil {
			return err
		}
		merged = append(merged, c)
	}
	m.GeneratedClasses = merged
	return nil
}

// mergeGroup folds every class of a duplicate group into the one with the
// smallest name.
func mergeGroup(group []*ClassStub) (*ClassStub, error) {
	if len(group) == 0 {
		return nil, errors.AssertionFailedf("duplicate class group is empty")
	}
	sorted := append([]*ClassStub(nil), group...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	canonical := sorted[0]
	for _, other := range sorted[1:] {
		for ref := range other.refs {
			canonical.AddRef(ref)
		}
	}
	canonical.UpdateRefs()
	return canonical, nil
}
