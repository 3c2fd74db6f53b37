package outline

// Resolve maps a cursor taken from prev onto t. It tries, in order: the same
// address (or its outermost collapsed ancestor), an equivalent section such
// as the same file in another group, the nearest surviving sibling from
// prev, the nearest surviving ancestor, and finally the first row.
func (t *Tree) Resolve(prev *Tree, c Cursor) Cursor {
	if len(t.rows) == 0 {
		return Cursor{}
	}
	if r, ok := t.exact(c); ok {
		return r
	}
	if a, ok := t.equivalent(c.Addr); ok {
		return Cursor{Addr: t.Visible(a)}
	}
	if prev != nil {
		for a := c.Addr; ; {
			if s, ok := t.nearestSibling(prev, a); ok {
				return Cursor{Addr: t.Visible(s)}
			}
			p, ok := prev.Parent(a)
			if !ok || p.Kind == KindRoot {
				break
			}
			if _, ok := t.index[p]; ok {
				return Cursor{Addr: t.Visible(p)}
			}
			a = p
		}
	}
	return t.CursorAt(0)
}

func (t *Tree) exact(c Cursor) (Cursor, bool) {
	s, ok := t.index[c.Addr]
	if !ok || c.Addr.Kind == KindRoot {
		return Cursor{}, false
	}
	if v := t.Visible(c.Addr); v != c.Addr {
		return Cursor{Addr: v}, true
	}
	if c.Line == 0 || s.Collapsed {
		return Cursor{Addr: c.Addr}, true
	}
	h, ok := s.Hunk()
	if !ok || len(h.Lines) == 0 {
		return Cursor{Addr: c.Addr}, true
	}
	return Cursor{Addr: c.Addr, Line: min(c.Line, len(h.Lines))}, true
}

// equivalents lists the kinds a file or commit may move to, most likely
// first.
var equivalents = map[Kind][]Kind{
	KindStagedFile:     {KindUnstagedFile, KindUntrackedFile},
	KindUnstagedFile:   {KindStagedFile, KindUntrackedFile},
	KindUntrackedFile:  {KindUnstagedFile, KindStagedFile},
	// A pushed commit leaves the unpushed list but stays recent.
	KindUnpushedCommit: {KindCommit},
	KindUnpulledCommit: {KindCommit},
}

func fileKindOf(hunk Kind) Kind {
	if hunk == KindStagedHunk {
		return KindStagedFile
	}
	return KindUnstagedFile
}

func (t *Tree) equivalent(a Address) (Address, bool) {
	switch {
	case a.Kind.IsHunk():
		fileKind := fileKindOf(a.Kind)
		for _, k := range append([]Kind{fileKind}, equivalents[fileKind]...) {
			if r, ok := t.hunkNear(Address{Kind: k, Key: a.Key}, a.Index); ok {
				return r, true
			}
		}
	case a.Kind.IsFile(), a.Kind.IsCommit():
		for _, k := range equivalents[a.Kind] {
			f := Address{Kind: k, Key: a.Key}
			if _, ok := t.index[f]; ok {
				return f, true
			}
		}
	}
	return Address{}, false
}

// hunkNear returns the hunk of file with the index closest to idx, or the
// file itself when it has no hunks.
func (t *Tree) hunkNear(file Address, idx int) (Address, bool) {
	s, ok := t.index[file]
	if !ok {
		return Address{}, false
	}
	if n := len(s.Children); n > 0 {
		return s.Children[min(idx, n-1)].Addr, true
	}
	return file, true
}

func (t *Tree) nearestSibling(prev *Tree, a Address) (Address, bool) {
	sibs := prev.Siblings(a)
	i := -1
	for j, s := range sibs {
		if s.Addr == a {
			i = j
			break
		}
	}
	if i < 0 {
		return Address{}, false
	}
	for j := i + 1; j < len(sibs); j++ {
		if _, ok := t.index[sibs[j].Addr]; ok {
			return sibs[j].Addr, true
		}
	}
	for j := i - 1; j >= 0; j-- {
		if _, ok := t.index[sibs[j].Addr]; ok {
			return sibs[j].Addr, true
		}
	}
	return Address{}, false
}
