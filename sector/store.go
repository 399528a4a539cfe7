package sector

import (
	"sort"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/gridrider/models"
)

// Store references the running sector sessions by id and by name.
type Store struct {
	initOnce sync.Once
	mutex    sync.RWMutex
	sessions map[string]*Session
	names    map[string]*Session
}

func (s *Store) init() {
	s.sessions = make(map[string]*Session)
	s.names = make(map[string]*Session)
}

// Add registers a session. Sector names are unique within a store.
func (s *Store) Add(session *Session) error {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	name := session.Name()
	if _, ok := s.names[name]; ok {
		return errors.New("sector name already in use").
			WithType(models.ErrTypeInvalidConfig).
			WithTag("sector", name)
	}

	s.sessions[session.ID] = session
	s.names[name] = session

	instrumentAddSector()
	return nil
}

// Remove unregisters and closes a session.
func (s *Store) Remove(session *Session) {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.sessions[session.ID]; !ok {
		return
	}

	delete(s.sessions, session.ID)
	delete(s.names, session.Name())
	session.Close()

	instrumentRemoveSector(session.Name())
}

func (s *Store) Get(id string) (*Session, bool) {
	s.initOnce.Do(s.init)
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	session, ok := s.sessions[id]
	return session, ok
}

func (s *Store) GetByName(name string) (*Session, bool) {
	s.initOnce.Do(s.init)
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	session, ok := s.names[name]
	return session, ok
}

// List returns the sessions sorted by sector name.
func (s *Store) List() []*Session {
	s.initOnce.Do(s.init)
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Name() < sessions[j].Name()
	})
	return sessions
}

func (s *Store) Len() int {
	s.initOnce.Do(s.init)
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.sessions)
}

// GetOrAdd returns the session of the named sector, or registers the one
// returned by create when there is none. It reports whether the session was
// created.
func (s *Store) GetOrAdd(name string, create func() (*Session, error)) (*Session, bool, error) {
	return s.Join(name, create, nil)
}

// Join is GetOrAdd with join called on the session before the store is
// unlocked, so that RemoveIfEmpty cannot drop the session in between. A
// session created for a failed join is not registered.
func (s *Store) Join(name string, create func() (*Session, error), join func(*Session) error) (*Session, bool, error) {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	session, ok := s.names[name]
	created := !ok
	if created {
		var err error
		if session, err = create(); err != nil {
			return nil, false, err
		}
	}

	if join != nil {
		if err := join(session); err != nil {
			if created {
				session.Close()
			}
			return nil, false, err
		}
	}

	if created {
		s.sessions[session.ID] = session
		s.names[session.Name()] = session
		instrumentAddSector()
	}
	return session, created, nil
}

// RemoveIfEmpty removes and closes a session that is not persistent and has
// no body left. It reports whether the session was removed.
func (s *Store) RemoveIfEmpty(session *Session) bool {
	if session.Persistent {
		return false
	}

	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.sessions[session.ID]; !ok {
		return false
	}

	var bodies int
	session.Do(func(sec *Sector) error {
		bodies = sec.BodyCount()
		return nil
	})
	if bodies != 0 {
		return false
	}

	delete(s.sessions, session.ID)
	delete(s.names, session.Name())
	session.Close()

	instrumentRemoveSector(session.Name())
	return true
}
