package domain

import "time"

// DefaultTimerSeconds applies to questions stored without a timer.
const DefaultTimerSeconds = 10

// Question is one multiple-choice question of a quiz.
type Question struct {
	ID                 string   `json:"id"`
	Text               string   `json:"text"`
	Options            []string `json:"options"`
	CorrectOptionIndex int      `json:"correctOptionIndex"`
	TimerSeconds       int      `json:"timerSeconds"`
}

// Duration is the answering window of the question.
func (q Question) Duration() time.Duration {
	return time.Duration(q.Timer()) * time.Second
}

// Timer returns the question timer in seconds, falling back to DefaultTimerSeconds.
func (q Question) Timer() int {
	if q.TimerSeconds <= 0 {
		return DefaultTimerSeconds
	}
	return q.TimerSeconds
}

// Public strips the correct answer so the question can be broadcast while it is open.
func (q Question) Public() PublicQuestion {
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	return PublicQuestion{
		ID:           q.ID,
		Text:         q.Text,
		Options:      options,
		TimerSeconds: q.Timer(),
	}
}

// PublicQuestion is what participants see of an open question.
type PublicQuestion struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	TimerSeconds int      `json:"timerSeconds"`
}

// Quiz is an ordered sequence of questions owned by a classroom.
type Quiz struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	ClassroomID string     `json:"classroomId"`
	Questions   []Question `json:"questions"`
}

// Question returns the question at index i.
func (q Quiz) Question(i int) (Question, bool) {
	if i < 0 || i >= len(q.Questions) {
		return Question{}, false
	}
	return q.Questions[i], true
}

// QuestionByID finds a question and its position.
func (q Quiz) QuestionByID(id string) (Question, int, bool) {
	for i := range q.Questions {
		if q.Questions[i].ID == id {
			return q.Questions[i], i, true
		}
	}
	return Question{}, -1, false
}

// Answer is one participant's response to one question within a session.
type Answer struct {
	QuestionID          string `json:"questionId"`
	SelectedOptionIndex int    `json:"selectedOptionIndex"`
	IsCorrect           bool   `json:"isCorrect"`
	ResponseTimeMs      int64  `json:"responseTimeMs"`
	Points              int    `json:"points"`
}

// Submission aggregates a participant's answers within one session.
type Submission struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"sessionId"`
	ParticipantID   string    `json:"participantId"`
	DisplayName     string    `json:"displayName"`
	Answers         []Answer  `json:"answers"`
	TotalScore      int       `json:"totalScore"`
	CreatedAt       time.Time `json:"createdAt"`
	LastSubmittedAt time.Time `json:"lastSubmittedAt"`
}

// AnswerFor returns the position of the answer for questionID, or -1.
func (s Submission) AnswerFor(questionID string) int {
	for i := range s.Answers {
		if s.Answers[i].QuestionID == questionID {
			return i
		}
	}
	return -1
}

// LeaderboardEntry is a ranked view of a submission.
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	TotalScore    int    `json:"totalScore"`
}

// Leaderboard captures the ordered standings for a game session.
type Leaderboard struct {
	SessionID string             `json:"sessionId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// RosterEntry is a classroom member with their running score across sessions.
type RosterEntry struct {
	ParticipantID string    `json:"participantId"`
	DisplayName   string    `json:"displayName"`
	Score         int       `json:"score"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ProgressEntry is one session of a classroom as seen by a participant who answered in it.
type ProgressEntry struct {
	SubmissionID    string       `json:"submissionId"`
	SessionID       string       `json:"sessionId"`
	QuizID          string       `json:"quizId"`
	QuizTitle       string       `json:"quizTitle"`
	QuestionCount   int          `json:"questionCount"`
	TotalScore      int          `json:"totalScore"`
	LastSubmittedAt time.Time    `json:"lastSubmittedAt"`
	SessionState    SessionState `json:"sessionState"`
	SessionEndedAt  time.Time    `json:"sessionEndedAt"`
}
