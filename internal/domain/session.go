package domain

import (
	"math"
	"time"
)

// SessionState is the lifecycle position of a game session.
type SessionState string

const (
	StateWaiting SessionState = "waiting"
	StateActive  SessionState = "active"
	StateEnded   SessionState = "ended"
)

// Participant is a connected, non-host player.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// GameSession is one live run of a quiz. Its methods implement the lifecycle
// state machine; callers serialize access per session.
type GameSession struct {
	ID                   string        `json:"id"`
	QuizID               string        `json:"quizId"`
	ClassroomID          string        `json:"classroomId"`
	HostID               string        `json:"hostId"`
	Pin                  string        `json:"pin"`
	ShareCode            string        `json:"shareCode"`
	State                SessionState  `json:"state"`
	HasStarted           bool          `json:"hasStarted"`
	Locked               bool          `json:"locked"`
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	QuestionStartedAt    time.Time     `json:"questionStartedAt"`
	Participants         []Participant `json:"connectedParticipants"`
	StartedAt            time.Time     `json:"startedAt"`
	EndedAt              time.Time     `json:"endedAt"`
	CreatedAt            time.Time     `json:"createdAt"`
	// Version is bumped by every stored update; stores reject writes based on an older one.
	Version              int64         `json:"version"`
}

// Transition reports what an Advance or End call did.
type Transition struct {
	// NoOp is set when the session was already locked (or, for End, still waiting).
	NoOp bool
	// Closed is the index of the question that was closed, -1 if none.
	Closed int
	// Opened is the index of the question that was opened, -1 if none.
	Opened int
	// Ended is set when the call moved the session to the ended state.
	Ended bool
}

func noOp() Transition {
	return Transition{NoOp: true, Closed: -1, Opened: -1}
}

// IsOpen reports whether the session still accepts joins that mutate it.
func (s *GameSession) IsOpen() bool {
	return s.State == StateWaiting || s.State == StateActive
}

// Start moves a waiting session to active on question 0. It can happen only once.
func (s *GameSession) Start(now time.Time) error {
	if s.Locked || s.HasStarted || s.State != StateWaiting {
		return ErrSessionLocked
	}
	s.State = StateActive
	s.HasStarted = true
	s.Locked = false
	s.CurrentQuestionIndex = 0
	s.StartedAt = now
	s.QuestionStartedAt = now
	s.EndedAt = time.Time{}
	return nil
}

// Advance closes the current question and opens the next one, ending the
// session once totalQuestions is exhausted.
func (s *GameSession) Advance(totalQuestions int, now time.Time) (Transition, error) {
	if s.Locked || s.State == StateEnded {
		return noOp(), nil
	}
	if s.State != StateActive {
		return Transition{Closed: -1, Opened: -1}, ErrSessionNotActive
	}

	t := Transition{Closed: s.CurrentQuestionIndex, Opened: -1}
	next := s.CurrentQuestionIndex + 1
	if next >= totalQuestions {
		s.finish(now)
		t.Ended = true
		return t, nil
	}
	s.CurrentQuestionIndex = next
	s.QuestionStartedAt = now
	t.Opened = next
	return t, nil
}

// End terminates an active session. Waiting and ended sessions are left alone.
func (s *GameSession) End(now time.Time) Transition {
	if s.Locked || s.State != StateActive {
		return noOp()
	}
	t := Transition{Closed: s.CurrentQuestionIndex, Opened: -1, Ended: true}
	s.finish(now)
	return t
}

func (s *GameSession) finish(now time.Time) {
	s.State = StateEnded
	s.Locked = true
	s.EndedAt = now
}

// AddParticipant adds p once, or renames it when it rejoins under another
// name. It reports whether the session changed.
func (s *GameSession) AddParticipant(p Participant) bool {
	for i := range s.Participants {
		if s.Participants[i].ID == p.ID {
			if p.DisplayName == "" || p.DisplayName == s.Participants[i].DisplayName {
				return false
			}
			s.Participants[i].DisplayName = p.DisplayName
			return true
		}
	}
	s.Participants = append(s.Participants, p)
	return true
}

// ParticipantName looks up the display name a participant joined with.
func (s *GameSession) ParticipantName(id string) (string, bool) {
	for _, p := range s.Participants {
		if p.ID == id {
			return p.DisplayName, true
		}
	}
	return "", false
}

// RemainingSeconds is the countdown left on the current question, never negative.
func (s *GameSession) RemainingSeconds(duration time.Duration, now time.Time) int {
	remaining := duration - now.Sub(s.QuestionStartedAt)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Seconds()))
}
