package store

import (
	"sort"
	"sync"

	"portseal/internal/domain"
)

const sessionsFilename = "sessions.json.enc"

// SessionFileStore persists session records, ratchet state included, to disk.
type SessionFileStore struct {
	ks *Keystore
	mu sync.Mutex
}

// NewSessionFileStore returns a SessionFileStore sealed by ks.
func NewSessionFileStore(ks *Keystore) *SessionFileStore {
	return &SessionFileStore{ks: ks}
}

// SaveSession writes rec, replacing any earlier record with the same id.
func (s *SessionFileStore) SaveSession(rec domain.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := map[domain.SessionID]domain.SessionRecord{}
	if err := readSealed(s.ks, sessionsFilename, &sessions); err != nil {
		return err
	}
	sessions[rec.ID] = rec
	return writeSealed(s.ks, sessionsFilename, sessions)
}

// LoadSession retrieves a stored session by id.
func (s *SessionFileStore) LoadSession(id domain.SessionID) (domain.SessionRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := map[domain.SessionID]domain.SessionRecord{}
	if err := readSealed(s.ks, sessionsFilename, &sessions); err != nil {
		return domain.SessionRecord{}, false, err
	}
	rec, ok := sessions[id]
	return rec, ok, nil
}

// ListSessions returns every stored record, oldest first.
func (s *SessionFileStore) ListSessions() ([]domain.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := map[domain.SessionID]domain.SessionRecord{}
	if err := readSealed(s.ks, sessionsFilename, &sessions); err != nil {
		return nil, err
	}
	out := make([]domain.SessionRecord, 0, len(sessions))
	for _, rec := range sessions {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedUTC != out[j].CreatedUTC {
			return out[i].CreatedUTC < out[j].CreatedUTC
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// DeleteSession removes the record with id, if any.
func (s *SessionFileStore) DeleteSession(id domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := map[domain.SessionID]domain.SessionRecord{}
	if err := readSealed(s.ks, sessionsFilename, &sessions); err != nil {
		return err
	}
	if _, ok := sessions[id]; !ok {
		return nil
	}
	delete(sessions, id)
	return writeSealed(s.ks, sessionsFilename, sessions)
}

// Compile-time assertion that SessionFileStore implements domain.SessionStore.
var _ domain.SessionStore = (*SessionFileStore)(nil)
