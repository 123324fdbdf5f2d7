package dispatch

import "sync"

// inflightSet holds the ids of campaigns being drained in this process.
type inflightSet struct {
	mu  sync.Mutex
	ids map[int64]struct{}
}

func newInflightSet() *inflightSet {
	return &inflightSet{ids: make(map[int64]struct{})}
}

// TryAcquire marks id as draining. It returns false if it already is. The
// returned release is safe to call more than once.
func (s *inflightSet) TryAcquire(id int64) (release func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.ids[id]; busy {
		return func() {}, false
	}
	s.ids[id] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.ids, id)
			s.mu.Unlock()
		})
	}, true
}

func (s *inflightSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
