package explorer

import "sync"

// StateSnapshot is a published state with its version.
type StateSnapshot struct {
	Version uint64 `json:"version"`
	State   State  `json:"state"`
}

// Store owns the State of one explorer view. Dispatch is the only writer;
// readers get copies through Snapshot or Subscribe.
type Store struct {
	mu          sync.Mutex
	state       State
	version     uint64
	subscribers map[chan StateSnapshot]struct{}
}

func NewStore(initial State) *Store {
	if len(initial.CurrentPath) == 0 {
		initial.CurrentPath = NewPathStack()
	}
	return &Store{
		state:       initial.clone(),
		subscribers: make(map[chan StateSnapshot]struct{}),
	}
}

// Dispatch reduces a into the current state and publishes the result.
func (s *Store) Dispatch(a Action) StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = Reduce(s.state, a)
	s.version++
	snap := StateSnapshot{Version: s.version, State: s.state.clone()}
	s.broadcastLocked(snap)
	return snap
}

func (s *Store) Snapshot() StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StateSnapshot{Version: s.version, State: s.state.clone()}
}

// Subscribe streams every state published after the call. Slow readers miss
// intermediate states; the latest one can always be read with Snapshot.
func (s *Store) Subscribe() (ch <-chan StateSnapshot, cancel func()) {
	c := make(chan StateSnapshot, 32)

	s.mu.Lock()
	s.subscribers[c] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancelFn := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, c)
			close(c)
			s.mu.Unlock()
		})
	}
	return c, cancelFn
}

func (s *Store) broadcastLocked(snap StateSnapshot) {
	for ch := range s.subscribers {
		select {
		case ch <- snapshotCopy(snap):
		default:
			// drop
		}
	}
}

func snapshotCopy(snap StateSnapshot) StateSnapshot {
	return StateSnapshot{Version: snap.Version, State: snap.State.clone()}
}
