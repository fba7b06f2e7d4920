package domain

// Outbound event types published to a session topic.
const (
	EventGameStateUpdated  = "gameStateUpdated"
	EventQuestionStarted   = "questionStarted"
	EventQuestionEnded     = "questionEnded"
	EventGameEnded         = "gameEnded"
	EventParticipantJoined = "participantJoined"
	EventAnswerTally       = "answerTally"
	EventSessionLocked     = "sessionLocked"
)

// Event is a typed message fanned out to everyone subscribed to a session.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type QuestionStarted struct {
	Question         PublicQuestion `json:"question"`
	Index            int            `json:"index"`
	Total            int            `json:"total"`
	RemainingSeconds int            `json:"remainingSeconds"`
}

type QuestionEnded struct {
	Index              int         `json:"index"`
	CorrectOptionIndex int         `json:"correctOptionIndex"`
	Leaderboard        Leaderboard `json:"leaderboard"`
}

type GameEnded struct {
	Leaderboard Leaderboard `json:"leaderboard"`
}

type ParticipantJoined struct {
	Count  int           `json:"count"`
	Roster []Participant `json:"roster"`
}

type AnswerTally struct {
	AnsweredCount     int `json:"answeredCount"`
	TotalParticipants int `json:"totalParticipants"`
}

type SessionLocked struct {
	Reason string `json:"reason"`
}
