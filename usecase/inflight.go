package usecase

import "sync"

// inflightSet tracks posts with a dispatch batch (or delete) running in this process.
type inflightSet struct {
	mu    sync.Mutex
	posts map[string]struct{}
}

func newInflightSet() *inflightSet {
	return &inflightSet{posts: make(map[string]struct{})}
}

func (s *inflightSet) acquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.posts[id]; busy {
		return false
	}
	s.posts[id] = struct{}{}
	return true
}

func (s *inflightSet) release(id string) {
	s.mu.Lock()
	delete(s.posts, id)
	s.mu.Unlock()
}

func (s *inflightSet) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.posts[id]
	return busy
}
