package core

// keyRegistry records every primary key tuple written during one
// conversion. Tuples are stored as a trie keyed on the canonical rendering
// of each component, so 123 and "123" collide the way they would in the
// written output.
type keyRegistry struct {
	root keyNode
	size int
}

type keyNode struct {
	children map[string]*keyNode
}

// add records key and reports whether it was new.
func (r *keyRegistry) add(key []string) bool {
	n := &r.root
	for i, part := range key {
		if n.children == nil {
			n.children = make(map[string]*keyNode)
		}
		child, ok := n.children[part]
		if !ok {
			child = &keyNode{}
			n.children[part] = child
		} else if i == len(key)-1 {
			return false
		}
		n = child
	}
	r.size++
	return true
}

// keyComponent renders v for the registry. A nil value or one that renders
// as the empty string is not a valid key component.
func keyComponent(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	s := formatValue(v)
	return s, s != ""
}
