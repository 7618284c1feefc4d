package slots

import (
	"context"
	"slices"
	"sync"
)

type fakeStore struct {
	mutex    sync.Mutex
	existing map[string]struct{}
	unknown  map[string]struct{}

	lookups   [][]string
	puts      [][]string
	lookupErr error
	putErr    func(ids []string) error
}

func newFakeStore(existing ...string) *fakeStore {
	s := &fakeStore{
		existing: map[string]struct{}{},
		unknown:  map[string]struct{}{},
	}
	for _, id := range existing {
		s.existing[id] = struct{}{}
	}
	return s
}

func (s *fakeStore) Lookup(ctx context.Context, ids []string) (Lookup, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.lookups = append(s.lookups, slices.Clone(ids))
	if s.lookupErr != nil {
		return Lookup{}, s.lookupErr
	}

	var out Lookup
	for _, id := range ids {
		if _, ok := s.unknown[id]; ok {
			out.Unknown = append(out.Unknown, id)
			continue
		}
		if _, ok := s.existing[id]; ok {
			out.Confirmed = append(out.Confirmed, id)
		}
	}
	return out, nil
}

func (s *fakeStore) Put(ctx context.Context, ids []string) error {
	if s.putErr != nil {
		if err := s.putErr(ids); err != nil {
			return err
		}
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.puts = append(s.puts, slices.Clone(ids))
	for _, id := range ids {
		s.existing[id] = struct{}{}
	}
	return nil
}

func (s *fakeStore) putSizes() []int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	sizes := make([]int, len(s.puts))
	for i, p := range s.puts {
		sizes[i] = len(p)
	}
	slices.Sort(sizes)
	slices.Reverse(sizes)
	return sizes
}

type fakeNotifier struct {
	sent []Notification
	err  error
}

func (n *fakeNotifier) Notify(ctx context.Context, notification Notification) error {
	n.sent = append(n.sent, notification)
	return n.err
}
