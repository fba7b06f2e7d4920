package app

import "live-quiz-service/internal/domain"

// Command is the closed set of inbound events the orchestrator understands.
// Only types in this package can implement it.
type Command interface {
	command()
}

// SessionRef points at a session by id, pin or share code.
type SessionRef struct {
	ID        string `json:"id" validate:"required_without_all=Pin ShareCode"`
	Pin       string `json:"pin" validate:"omitempty,len=6,numeric"`
	ShareCode string `json:"shareCode" validate:"omitempty,len=6,alphanum"`
}

type JoinCommand struct {
	Session         SessionRef
	ParticipantID   string `validate:"required"`
	ParticipantName string `validate:"required_unless=IsHost true,max=64"`
	IsHost          bool
}

type HostStartCommand struct {
	SessionID string `validate:"required"`
	HostID    string
}

type HostNextCommand struct {
	SessionID string `validate:"required"`
	HostID    string
	// QuestionIndex, when set, is the question the host means to close. A
	// command for a question that already closed is ignored.
	QuestionIndex *int `validate:"omitempty,min=0"`
}

type HostEndCommand struct {
	SessionID string `validate:"required"`
	HostID    string
}

type SubmitAnswerCommand struct {
	SessionID       string `validate:"required"`
	ParticipantID   string `validate:"required"`
	ParticipantName string `validate:"max=64"`
	QuestionID      string `validate:"required"`
	SelectedOption  int    `validate:"min=0"`
	ResponseTimeMs  int64
}

func (JoinCommand) command()         {}
func (HostStartCommand) command()    {}
func (HostNextCommand) command()     {}
func (HostEndCommand) command()      {}
func (SubmitAnswerCommand) command() {}

// Result is what Handle reports back to the caller of a command.
type Result struct {
	Session    domain.GameSession
	Join       *JoinResult
	Submission *domain.Submission
}

// JoinResult carries what a (late) joiner needs to catch up.
type JoinResult struct {
	Session domain.GameSession
	Total   int
	// Question is set while the session is active, with the countdown already running.
	Question *domain.QuestionStarted
	// Leaderboard is set once the session has ended.
	Leaderboard *domain.Leaderboard
}
