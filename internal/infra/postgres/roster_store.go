package postgres

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"live-quiz-service/internal/domain"
)

type rosterRow struct {
	bun.BaseModel `bun:"table:classroom_roster,alias:r"`

	ClassroomID   string    `bun:"classroom_id,pk"`
	ParticipantID string    `bun:"participant_id,pk"`
	DisplayName   string    `bun:"display_name"`
	Score         int       `bun:"score"`
	UpdatedAt     time.Time `bun:"updated_at"`
}

// RosterStore is the classroom scoreboard table.
type RosterStore struct {
	db *bun.DB
}

func NewRosterStore(db *bun.DB) *RosterStore {
	return &RosterStore{db: db}
}

// UpsertScore overwrites the score; an empty display name keeps the stored one.
func (s *RosterStore) UpsertScore(ctx context.Context, classroomID string, entry domain.RosterEntry) error {
	row := rosterRow{
		ClassroomID:   classroomID,
		ParticipantID: entry.ParticipantID,
		DisplayName:   entry.DisplayName,
		Score:         entry.Score,
		UpdatedAt:     entry.UpdatedAt,
	}
	_, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (classroom_id, participant_id) DO UPDATE").
		Set("score = EXCLUDED.score").
		Set("updated_at = EXCLUDED.updated_at").
		Set("display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), r.display_name)").
		Exec(ctx)
	return err
}

func (s *RosterStore) Roster(ctx context.Context, classroomID string) ([]domain.RosterEntry, error) {
	var rows []rosterRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("classroom_id = ?", classroomID).
		Order("score DESC", "participant_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RosterEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.RosterEntry{
			ParticipantID: r.ParticipantID,
			DisplayName:   r.DisplayName,
			Score:         r.Score,
			UpdatedAt:     r.UpdatedAt,
		})
	}
	return out, nil
}
