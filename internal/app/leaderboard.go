package app

import (
	"context"
	"sort"
	"time"

	"live-quiz-service/internal/domain"
)

// Leaderboards derives standings from the answer ledger. Nothing is cached:
// every call reads the current submissions.
type Leaderboards struct {
	submissions SubmissionRepository
	now         func() time.Time
}

func NewLeaderboards(submissions SubmissionRepository, now func() time.Time) *Leaderboards {
	if now == nil {
		now = time.Now
	}
	return &Leaderboards{submissions: submissions, now: now}
}

func (b *Leaderboards) ForSession(ctx context.Context, sessionID string) (domain.Leaderboard, error) {
	submissions, err := b.submissions.ListBySession(ctx, sessionID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return domain.Leaderboard{
		SessionID: sessionID,
		Entries:   Rank(submissions),
		UpdatedAt: b.now(),
	}, nil
}

// Rank orders submissions by total score, highest first. Ties keep their input
// order and still get distinct ranks.
func Rank(submissions []domain.Submission) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(submissions))
	for _, s := range submissions {
		entries = append(entries, domain.LeaderboardEntry{
			ParticipantID: s.ParticipantID,
			DisplayName:   s.DisplayName,
			TotalScore:    s.TotalScore,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalScore > entries[j].TotalScore
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
