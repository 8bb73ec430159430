package ir

// DomTree holds immediate dominators of the blocks reachable from entry.
type DomTree struct {
	idom  map[*Block]*Block
	order map[*Block]int // reverse postorder index
}

// Predecessors maps each block to the blocks that branch to it.
func Predecessors(f *Function) map[*Block][]*Block {
	preds := make(map[*Block][]*Block, len(f.Blocks))
	for _, b := range f.Blocks {
		if t := b.Terminator(); t != nil {
			for _, s := range t.Successors() {
				preds[s] = append(preds[s], b)
			}
		}
	}
	return preds
}

// ReversePostorder returns the blocks reachable from entry.
func ReversePostorder(f *Function) []*Block {
	entry := f.Entry()
	if entry == nil {
		return nil
	}
	seen := make(map[*Block]bool, len(f.Blocks))
	var post []*Block
	var walk func(b *Block)
	walk = func(b *Block) {
		seen[b] = true
		if t := b.Terminator(); t != nil {
			for _, s := range t.Successors() {
				if s != nil && !seen[s] {
					walk(s)
				}
			}
		}
		post = append(post, b)
	}
	walk(entry)
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

// Dominators computes the dominator tree with the iterative algorithm of
// Cooper, Harvey and Kennedy.
func Dominators(f *Function) *DomTree {
	rpo := ReversePostorder(f)
	dt := &DomTree{idom: make(map[*Block]*Block, len(rpo)), order: make(map[*Block]int, len(rpo))}
	if len(rpo) == 0 {
		return dt
	}
	for i, b := range rpo {
		dt.order[b] = i
	}
	preds := Predecessors(f)
	entry := rpo[0]
	dt.idom[entry] = entry
	for changed := true; changed; {
		changed = false
		for _, b := range rpo[1:] {
			var newIdom *Block
			for _, p := range preds[b] {
				if _, ok := dt.idom[p]; !ok {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = dt.intersect(p, newIdom)
			}
			if newIdom != nil && dt.idom[b] != newIdom {
				dt.idom[b] = newIdom
				changed = true
			}
		}
	}
	return dt
}

func (dt *DomTree) intersect(a, b *Block) *Block {
	for a != b {
		for dt.order[a] > dt.order[b] {
			a = dt.idom[a]
		}
		for dt.order[b] > dt.order[a] {
			b = dt.idom[b]
		}
	}
	return a
}

// Reachable reports whether b is reachable from entry.
func (dt *DomTree) Reachable(b *Block) bool {
	_, ok := dt.order[b]
	return ok
}

// Dominates reports whether a dominates b. Unreachable blocks are
// dominated by everything.
func (dt *DomTree) Dominates(a, b *Block) bool {
	if !dt.Reachable(b) {
		return true
	}
	if !dt.Reachable(a) {
		return false
	}
	for {
		if a == b {
			return true
		}
		next := dt.idom[b]
		if next == b {
			return false
		}
		b = next
	}
}
