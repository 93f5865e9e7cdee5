package storage

import (
	"fmt"
	"sync"
)

// PageStore is the durable medium beneath the pager. Get and Put are the only
// calls that may block on I/O; failures are returned as-is and never retried.
type PageStore interface {
	Get(id PageID) ([]byte, error)
	Put(id PageID, data []byte) error
}

// MemStore keeps page images in a map.
type MemStore struct {
	lock     sync.RWMutex
	pageSize int
	pages    map[PageID][]byte
}

func NewMemStore(pageSize int) *MemStore {
	return &MemStore{
		pageSize: pageSize,
		pages:    make(map[PageID][]byte),
	}
}

func (s *MemStore) Get(id PageID) ([]byte, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	data, ok := s.pages[id]
	if !ok {
		return nil, fmt.Errorf("%w: page %d", ErrNotFound, id)
	}
	return append([]byte(nil), data...), nil
}

func (s *MemStore) Put(id PageID, data []byte) error {
	if id == NoPage {
		return fmt.Errorf("cannot put page %d", id)
	}
	if len(data) != s.pageSize {
		return fmt.Errorf("%w: page %d is %d bytes, store pages are %d", ErrShortWrite, id, len(data), s.pageSize)
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.pages[id] = append([]byte(nil), data...)
	return nil
}

func (s *MemStore) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.pages)
}
