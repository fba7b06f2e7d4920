package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"live-quiz-service/internal/domain"
)

type submissionRow struct {
	bun.BaseModel `bun:"table:submissions,alias:s"`

	Seq             int64           `bun:"seq,scanonly"`
	ID              string          `bun:"id,pk"`
	SessionID       string          `bun:"session_id,notnull"`
	ParticipantID   string          `bun:"participant_id,notnull"`
	DisplayName     string          `bun:"display_name"`
	Answers         []domain.Answer `bun:"answers,type:jsonb"`
	TotalScore      int             `bun:"total_score"`
	CreatedAt       time.Time       `bun:"created_at"`
	LastSubmittedAt time.Time       `bun:"last_submitted_at"`
}

// SubmissionStore persists submissions with bun, one row per (session, participant).
type SubmissionStore struct {
	db *bun.DB
}

func NewSubmissionStore(db *bun.DB) *SubmissionStore {
	return &SubmissionStore{db: db}
}

func (s *SubmissionStore) Find(ctx context.Context, sessionID, participantID string) (domain.Submission, bool, error) {
	var row submissionRow
	err := s.db.NewSelect().
		Model(&row).
		Where("session_id = ?", sessionID).
		Where("participant_id = ?", participantID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Submission{}, false, nil
	}
	if err != nil {
		return domain.Submission{}, false, err
	}
	return row.toDomain(), true, nil
}

func (s *SubmissionStore) Save(ctx context.Context, submission domain.Submission) error {
	row := fromSubmission(submission)
	_, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (session_id, participant_id) DO UPDATE").
		Set("display_name = EXCLUDED.display_name").
		Set("answers = EXCLUDED.answers").
		Set("total_score = EXCLUDED.total_score").
		Set("last_submitted_at = EXCLUDED.last_submitted_at").
		Exec(ctx)
	return err
}

func (s *SubmissionStore) ListBySession(ctx context.Context, sessionID string) ([]domain.Submission, error) {
	var rows []submissionRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("session_id = ?", sessionID).
		Order("seq ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return toSubmissions(rows), nil
}

func (s *SubmissionStore) ListByParticipant(ctx context.Context, participantID string, sessionIDs []string) ([]domain.Submission, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	var rows []submissionRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("participant_id = ?", participantID).
		Where("session_id IN (?)", bun.In(sessionIDs)).
		Order("seq ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return toSubmissions(rows), nil
}

func fromSubmission(sub domain.Submission) submissionRow {
	answers := sub.Answers
	if answers == nil {
		answers = []domain.Answer{}
	}
	return submissionRow{
		ID:              sub.ID,
		SessionID:       sub.SessionID,
		ParticipantID:   sub.ParticipantID,
		DisplayName:     sub.DisplayName,
		Answers:         answers,
		TotalScore:      sub.TotalScore,
		CreatedAt:       sub.CreatedAt,
		LastSubmittedAt: sub.LastSubmittedAt,
	}
}

func (r submissionRow) toDomain() domain.Submission {
	return domain.Submission{
		ID:              r.ID,
		SessionID:       r.SessionID,
		ParticipantID:   r.ParticipantID,
		DisplayName:     r.DisplayName,
		Answers:         r.Answers,
		TotalScore:      r.TotalScore,
		CreatedAt:       r.CreatedAt,
		LastSubmittedAt: r.LastSubmittedAt,
	}
}

func toSubmissions(rows []submissionRow) []domain.Submission {
	out := make([]domain.Submission, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}
