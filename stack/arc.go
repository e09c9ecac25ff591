package stack

// arcStack is the classical Adaptive Replacement Cache: two live LRU lists
// (t1 for single-access keys, t2 for re-accessed keys) each paired with a
// same-sized ghost LRU of evicted keys (b1, b2). The adaptive target p
// shifts toward whichever ghost is currently absorbing more hits, biasing
// future replacements toward the other list.
type arcStack struct {
	maxSize uint64
	p       float64 // target size, in bytes, for t1

	t1 *list
	t2 *list
	b1 *list // ghost for t1
	b2 *list // ghost for t2
}

func newArcStack(maxSize uint64) *arcStack {
	return &arcStack{
		maxSize: maxSize,
		t1:      newList(),
		t2:      newList(),
		b1:      newList(),
		b2:      newList(),
	}
}

func (s *arcStack) cap() uint64 { return s.maxSize }

// replace evicts one live entry into its ghost list, preferring t1 unless
// its size has fallen to or below the adaptive target p (or the hit that
// triggered this replace came from b2, which always favors trimming t1 at
// the boundary).
func (s *arcStack) replace(favorT1AtBoundary bool) {
	if s.t1.len > 0 && (float64(s.t1.usedSize) > s.p || (float64(s.t1.usedSize) == s.p && favorT1AtBoundary)) {
		if n, ok := s.t1.popBack(); ok {
			s.b1.pushFront(&node{key: n.key, size: n.size})
		}
		return
	}
	if n, ok := s.t2.popBack(); ok {
		s.b2.pushFront(&node{key: n.key, size: n.size})
	}
}

func (s *arcStack) trimGhost(g *list) {
	for g.usedSize > s.cap() {
		if _, ok := g.popBack(); !ok {
			break
		}
	}
}

func (s *arcStack) Insert(key Key, size Size) {
	if n, ok := s.t1.get(key); ok {
		s.t1.moveToFront(n)
		return
	}
	if n, ok := s.t2.get(key); ok {
		s.t2.moveToFront(n)
		return
	}

	if n, ok := s.b1.get(key); ok {
		s.b1.remove(n)
		delta := 1.0
		if s.b2.len > 0 {
			delta = float64(s.b2.len) / float64(s.b1.len+1)
			if delta < 1 {
				delta = 1
			}
		}
		s.p += delta
		if s.p > float64(s.cap()) {
			s.p = float64(s.cap())
		}
		s.replace(false)
		s.t2.pushFront(&node{key: key, size: size})
		return
	}

	if n, ok := s.b2.get(key); ok {
		s.b2.remove(n)
		delta := 1.0
		if s.b1.len > 0 {
			delta = float64(s.b1.len) / float64(s.b2.len+1)
			if delta < 1 {
				delta = 1
			}
		}
		s.p -= delta
		if s.p < 0 {
			s.p = 0
		}
		s.replace(true)
		s.t2.pushFront(&node{key: key, size: size})
		return
	}

	// brand new key
	if s.t1.usedSize+s.b1.usedSize >= s.cap() {
		if s.t1.usedSize+s.b1.usedSize >= 2*s.cap() {
			if _, ok := s.b1.popBack(); ok {
			}
		} else {
			s.replace(false)
		}
	} else if s.t1.usedSize+s.t2.usedSize+s.b1.usedSize+s.b2.usedSize >= s.cap() {
		if s.t1.usedSize+s.t2.usedSize+s.b1.usedSize+s.b2.usedSize >= 2*s.cap() {
			if _, ok := s.b2.popBack(); ok {
			}
		}
		s.replace(false)
	}

	s.t1.pushFront(&node{key: key, size: size})
}

func (s *arcStack) Update(key Key) {
	if n, ok := s.t1.get(key); ok {
		s.t1.remove(n)
		s.t2.pushFront(n)
		return
	}
	if n, ok := s.t2.get(key); ok {
		s.t2.moveToFront(n)
	}
}

func (s *arcStack) Remove(key Key) {
	if n, ok := s.t1.get(key); ok {
		s.t1.remove(n)
		return
	}
	if n, ok := s.t2.get(key); ok {
		s.t2.remove(n)
		return
	}
	if n, ok := s.b1.get(key); ok {
		s.b1.remove(n)
		return
	}
	if n, ok := s.b2.get(key); ok {
		s.b2.remove(n)
	}
}

func (s *arcStack) Contains(key Key) bool {
	return s.t1.contains(key) || s.t2.contains(key)
}

func (s *arcStack) Resize(maxSize uint64) { s.maxSize = maxSize }

func (s *arcStack) Clear() {
	s.t1.clear()
	s.t2.clear()
	s.b1.clear()
	s.b2.clear()
	s.p = 0
}

func (s *arcStack) Len() int   { return s.t1.len + s.t2.len }
func (s *arcStack) Kind() Kind { return Arc }

func (s *arcStack) EvictOne() (Key, bool) {
	if s.t1.len == 0 && s.t2.len == 0 {
		return 0, false
	}
	before1, before2 := s.t1.len, s.t2.len
	s.replace(false)
	if s.t1.len < before1 {
		// the just-demoted key now sits at the ghost's front.
		return s.b1.head.key, true
	}
	if s.t2.len < before2 {
		return s.b2.head.key, true
	}
	return 0, false
}
