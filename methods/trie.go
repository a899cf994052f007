package methods

import "github.com/podhmo/go-analyzing/object"

// trie indexes method IDs by the segments of their erased path, so that a
// prefix can be evicted without scanning unrelated entries.
type trie struct {
	children map[string]*trie
	methods  map[object.MethodID]struct{}
}

func newTrie() *trie {
	return &trie{children: make(map[string]*trie)}
}

func (t *trie) insert(id object.MethodID) {
	node := t
	for _, seg := range id.Segments() {
		child, ok := node.children[seg]
		if !ok {
			child = newTrie()
			node.children[seg] = child
		}
		node = child
	}
	if node.methods == nil {
		node.methods = make(map[object.MethodID]struct{})
	}
	node.methods[id] = struct{}{}
}

// removePrefix detaches the subtree at segs and returns every method it held.
func (t *trie) removePrefix(segs []string) []object.MethodID {
	if len(segs) == 0 {
		removed := t.collect(nil)
		t.children = make(map[string]*trie)
		t.methods = nil
		return removed
	}
	parent := t
	for _, seg := range segs[:len(segs)-1] {
		next, ok := parent.children[seg]
		if !ok {
			return nil
		}
		parent = next
	}
	last := segs[len(segs)-1]
	node, ok := parent.children[last]
	if !ok {
		return nil
	}
	delete(parent.children, last)
	return node.collect(nil)
}

// remove drops a single method and prunes nodes left empty.
func (t *trie) remove(id object.MethodID) {
	t.removeAt(id, id.Segments())
}

func (t *trie) removeAt(id object.MethodID, segs []string) bool {
	if len(segs) == 0 {
		delete(t.methods, id)
	} else if child, ok := t.children[segs[0]]; ok {
		if child.removeAt(id, segs[1:]) {
			delete(t.children, segs[0])
		}
	}
	return len(t.methods) == 0 && len(t.children) == 0
}

func (t *trie) collect(acc []object.MethodID) []object.MethodID {
	for id := range t.methods {
		acc = append(acc, id)
	}
	for _, child := range t.children {
		acc = child.collect(acc)
	}
	return acc
}
