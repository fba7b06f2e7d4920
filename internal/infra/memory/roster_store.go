package memory

import (
	"context"
	"sort"
	"sync"

	"live-quiz-service/internal/domain"
)

// RosterStore is the in-memory classroom scoreboard.
type RosterStore struct {
	mu          sync.RWMutex
	byClassroom map[string][]domain.RosterEntry
}

func NewRosterStore() *RosterStore {
	return &RosterStore{byClassroom: make(map[string][]domain.RosterEntry)}
}

func (s *RosterStore) UpsertScore(_ context.Context, classroomID string, entry domain.RosterEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	roster := s.byClassroom[classroomID]
	for i := range roster {
		if roster[i].ParticipantID == entry.ParticipantID {
			if entry.DisplayName == "" {
				entry.DisplayName = roster[i].DisplayName
			}
			roster[i] = entry
			return nil
		}
	}
	s.byClassroom[classroomID] = append(roster, entry)
	return nil
}

// Roster lists entries by score, highest first.
func (s *RosterStore) Roster(_ context.Context, classroomID string) ([]domain.RosterEntry, error) {
	s.mu.RLock()
	out := make([]domain.RosterEntry, len(s.byClassroom[classroomID]))
	copy(out, s.byClassroom[classroomID])
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ParticipantID < out[j].ParticipantID
	})
	return out, nil
}
