package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"live-quiz-service/internal/domain"
)

const (
	defaultCodeAttempts = 10
	// updateAttempts bounds how often a command is reapplied after another
	// instance changed the session underneath it.
	updateAttempts = 5
)

// Orchestrator contains the live game use cases. All state-changing work on a
// session, including timer callbacks, runs under that session's lock.
type Orchestrator struct {
	sessions   GameSessionRepository
	quizzes    QuizRepository
	ledger     *Ledger
	boards     *Leaderboards
	scoreboard *ScoreboardSync
	publisher  Publisher
	timers     *TimerSupervisor

	validate     *validator.Validate
	codes        *codeGenerator
	codeAttempts int
	defaultTimer int
	now          func() time.Time

	createMu sync.Mutex
	locksMu  sync.Mutex
	locks    map[string]*sessionLock
}

// sessionLock is dropped from the registry once nobody holds or waits for it.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithCodeAttempts bounds how often session creation retries a colliding pin or share code.
func WithCodeAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.codeAttempts = n
		}
	}
}

// WithDefaultTimer sets the timer, in seconds, of questions stored without one.
func WithDefaultTimer(seconds int) Option {
	return func(o *Orchestrator) {
		if seconds > 0 {
			o.defaultTimer = seconds
		}
	}
}

func NewOrchestrator(
	sessions GameSessionRepository,
	quizzes QuizRepository,
	submissions SubmissionRepository,
	roster RosterRepository,
	publisher Publisher,
	timers *TimerSupervisor,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		sessions:     sessions,
		quizzes:      quizzes,
		publisher:    publisher,
		timers:       timers,
		validate:     validator.New(),
		codes:        newCodeGenerator(),
		codeAttempts: defaultCodeAttempts,
		defaultTimer: domain.DefaultTimerSeconds,
		now:          time.Now,
		locks:        make(map[string]*sessionLock),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.ledger = NewLedger(submissions, o.now)
	o.boards = NewLeaderboards(submissions, o.now)
	o.scoreboard = NewScoreboardSync(sessions, submissions, roster, o.now)
	return o
}

// Handle dispatches an inbound command.
func (o *Orchestrator) Handle(ctx context.Context, cmd Command) (Result, error) {
	switch c := cmd.(type) {
	case JoinCommand:
		joined, err := o.Join(ctx, c)
		return Result{Session: joined.Session, Join: &joined}, err
	case HostStartCommand:
		session, err := o.HostStart(ctx, c)
		return Result{Session: session}, err
	case HostNextCommand:
		session, err := o.HostNext(ctx, c)
		return Result{Session: session}, err
	case HostEndCommand:
		session, err := o.HostEnd(ctx, c)
		return Result{Session: session}, err
	case SubmitAnswerCommand:
		submission, err := o.SubmitAnswer(ctx, c)
		if err != nil {
			return Result{}, err
		}
		return Result{Submission: &submission}, nil
	default:
		return Result{}, fmt.Errorf("%w: unsupported command %T", domain.ErrValidation, cmd)
	}
}

// CreateSession opens a waiting session for a quiz in a classroom. If one is
// already waiting or active it is returned instead of creating a duplicate.
func (o *Orchestrator) CreateSession(ctx context.Context, hostID, quizID, classroomID string) (domain.GameSession, error) {
	if hostID == "" || quizID == "" {
		return domain.GameSession{}, fmt.Errorf("%w: hostId and quizId are required", domain.ErrValidation)
	}
	quiz, err := o.loadQuiz(ctx, quizID)
	if err != nil {
		return domain.GameSession{}, err
	}
	if err := validateQuiz(quiz); err != nil {
		return domain.GameSession{}, err
	}
	if classroomID == "" {
		classroomID = quiz.ClassroomID
	}

	o.createMu.Lock()
	defer o.createMu.Unlock()

	if open, ok, err := o.sessions.FindOpen(ctx, quizID, classroomID); err != nil {
		return domain.GameSession{}, err
	} else if ok {
		return open, nil
	}

	for attempt := 0; attempt < o.codeAttempts; attempt++ {
		session := domain.GameSession{
			ID:          uuid.NewString(),
			QuizID:      quizID,
			ClassroomID: classroomID,
			HostID:      hostID,
			Pin:         o.codes.pin(),
			ShareCode:   o.codes.shareCode(),
			State:       domain.StateWaiting,
			CreatedAt:   o.now(),
		}
		err := o.sessions.Create(ctx, session)
		if errors.Is(err, domain.ErrCodeTaken) {
			continue
		}
		if err != nil {
			return domain.GameSession{}, err
		}
		log.Printf("session %s created for quiz %s (pin %s)", session.ID, quizID, session.Pin)
		return session, nil
	}
	return domain.GameSession{}, fmt.Errorf("allocate session codes after %d attempts: %w", o.codeAttempts, domain.ErrCodeTaken)
}

// Join registers a participant (or a host) with a session and returns what the
// client needs to render the current state, including the remaining countdown.
func (o *Orchestrator) Join(ctx context.Context, cmd JoinCommand) (JoinResult, error) {
	if err := o.check(cmd); err != nil {
		return JoinResult{}, err
	}
	resolved, err := o.resolve(ctx, cmd.Session)
	if err != nil {
		return JoinResult{}, err
	}

	unlock := o.lock(resolved.ID)
	defer unlock()

	session, err := o.update(ctx, resolved.ID, func(s *domain.GameSession) (bool, error) {
		if cmd.IsHost {
			return false, checkHost(*s, cmd.ParticipantID)
		}
		if !s.IsOpen() {
			return false, nil
		}
		return s.AddParticipant(domain.Participant{ID: cmd.ParticipantID, DisplayName: cmd.ParticipantName}), nil
	})
	if err != nil {
		return JoinResult{}, err
	}
	quiz, err := o.loadQuiz(ctx, session.QuizID)
	if err != nil {
		return JoinResult{}, err
	}
	if !cmd.IsHost && session.IsOpen() {
		o.publish(ctx, session.ID, domain.EventParticipantJoined, domain.ParticipantJoined{
			Count:  len(session.Participants),
			Roster: session.Participants,
		})
	}

	result := JoinResult{Session: session, Total: len(quiz.Questions)}
	switch session.State {
	case domain.StateActive:
		if q, ok := quiz.Question(session.CurrentQuestionIndex); ok {
			started := o.questionStarted(session, quiz, q)
			result.Question = &started
		}
	case domain.StateEnded:
		if lb, err := o.boards.ForSession(ctx, session.ID); err == nil {
			result.Leaderboard = &lb
		}
	}
	return result, nil
}

// HostStart starts the session and opens the first question. Starting a
// session a second time changes nothing and reports domain.ErrSessionLocked.
func (o *Orchestrator) HostStart(ctx context.Context, cmd HostStartCommand) (domain.GameSession, error) {
	if err := o.check(cmd); err != nil {
		return domain.GameSession{}, err
	}
	unlock := o.lock(cmd.SessionID)
	defer unlock()

	session, quiz, err := o.loadForHost(ctx, cmd.SessionID, cmd.HostID)
	if err != nil {
		return session, err
	}
	session, err = o.update(ctx, cmd.SessionID, func(s *domain.GameSession) (bool, error) {
		if err := s.Start(o.now()); err != nil {
			return false, err
		}
		if len(quiz.Questions) == 0 {
			s.End(o.now())
		}
		return true, nil
	})
	if err != nil {
		log.Printf("session %s: start ignored: %v", cmd.SessionID, err)
		return session, err
	}
	log.Printf("session %s started", session.ID)
	o.publish(ctx, session.ID, domain.EventGameStateUpdated, session)

	if session.State == domain.StateEnded {
		o.publishGameEnded(ctx, session.ID)
		return session, nil
	}
	o.openQuestionLocked(ctx, session, quiz)
	return session, nil
}

// HostNext closes the open question and opens the next one, or ends the game
// after the last question. On a locked session, or when cmd.QuestionIndex names
// a question that already closed, it is acknowledged and ignored.
func (o *Orchestrator) HostNext(ctx context.Context, cmd HostNextCommand) (domain.GameSession, error) {
	if err := o.check(cmd); err != nil {
		return domain.GameSession{}, err
	}
	unlock := o.lock(cmd.SessionID)
	defer unlock()

	session, quiz, err := o.loadForHost(ctx, cmd.SessionID, cmd.HostID)
	if err != nil {
		return session, err
	}
	index := session.CurrentQuestionIndex
	if cmd.QuestionIndex != nil {
		index = *cmd.QuestionIndex
	}
	return o.advanceLocked(ctx, session.ID, quiz, index)
}

// HostEnd ends an active session. Ending a waiting or ended session is a no-op.
func (o *Orchestrator) HostEnd(ctx context.Context, cmd HostEndCommand) (domain.GameSession, error) {
	if err := o.check(cmd); err != nil {
		return domain.GameSession{}, err
	}
	unlock := o.lock(cmd.SessionID)
	defer unlock()

	session, quiz, err := o.loadForHost(ctx, cmd.SessionID, cmd.HostID)
	if err != nil {
		return session, err
	}
	var t domain.Transition
	session, err = o.update(ctx, cmd.SessionID, func(s *domain.GameSession) (bool, error) {
		t = s.End(o.now())
		return !t.NoOp, nil
	})
	if err != nil || t.NoOp {
		return session, err
	}
	o.timers.Cancel(session.ID)
	log.Printf("session %s ended by host", session.ID)
	o.closeQuestionLocked(ctx, session.ID, quiz, t.Closed)
	o.publishGameEnded(ctx, session.ID)
	return session, nil
}

// SubmitAnswer records an answer and broadcasts how many participants have
// answered the open question, never who answered what.
func (o *Orchestrator) SubmitAnswer(ctx context.Context, cmd SubmitAnswerCommand) (domain.Submission, error) {
	if err := o.check(cmd); err != nil {
		return domain.Submission{}, err
	}

	submission, session, err := o.recordAnswer(ctx, cmd)
	if err != nil {
		return domain.Submission{}, err
	}

	if session.ClassroomID != "" {
		if _, err := o.scoreboard.Sync(ctx, session.ClassroomID, submission.ParticipantID, submission.DisplayName); err != nil {
			log.Printf("session %s: classroom scoreboard sync for %s failed: %v", session.ID, submission.ParticipantID, err)
		}
	}
	return submission, nil
}

func (o *Orchestrator) recordAnswer(ctx context.Context, cmd SubmitAnswerCommand) (domain.Submission, domain.GameSession, error) {
	unlock := o.lock(cmd.SessionID)
	defer unlock()

	session, err := o.sessions.Get(ctx, cmd.SessionID)
	if err != nil {
		return domain.Submission{}, session, err
	}
	quiz, err := o.loadQuiz(ctx, session.QuizID)
	if err != nil {
		return domain.Submission{}, session, err
	}

	name := cmd.ParticipantName
	if joined, ok := session.ParticipantName(cmd.ParticipantID); ok && name == "" {
		name = joined
	}
	submission, err := o.ledger.RecordAnswer(ctx, session, quiz, AnswerInput{
		ParticipantID:  cmd.ParticipantID,
		DisplayName:    name,
		QuestionID:     cmd.QuestionID,
		SelectedOption: cmd.SelectedOption,
		ResponseTimeMs: cmd.ResponseTimeMs,
	})
	if err != nil {
		return domain.Submission{}, session, err
	}

	if answered, err := o.answeredCount(ctx, session, quiz); err != nil {
		log.Printf("session %s: answer tally failed: %v", session.ID, err)
	} else {
		o.publish(ctx, session.ID, domain.EventAnswerTally, domain.AnswerTally{
			AnsweredCount:     answered,
			TotalParticipants: len(session.Participants),
		})
	}
	return submission, session, nil
}

// Leaderboard returns the current standings of a session.
func (o *Orchestrator) Leaderboard(ctx context.Context, sessionID string) (domain.Leaderboard, error) {
	if _, err := o.sessions.Get(ctx, sessionID); err != nil {
		return domain.Leaderboard{}, err
	}
	return o.boards.ForSession(ctx, sessionID)
}

// Roster returns the classroom scoreboard.
func (o *Orchestrator) Roster(ctx context.Context, classroomID string) ([]domain.RosterEntry, error) {
	return o.scoreboard.Roster(ctx, classroomID)
}

// Shutdown stops every pending question timer.
func (o *Orchestrator) Shutdown() {
	o.timers.StopAll()
}

// onQuestionTimeout is the timer callback for question index of sessionID.
// It does nothing if the session moved on since the timer was armed.
func (o *Orchestrator) onQuestionTimeout(sessionID string, index int) {
	ctx := context.Background()
	unlock := o.lock(sessionID)
	defer unlock()

	session, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		log.Printf("session %s: timer fired for missing session: %v", sessionID, err)
		return
	}
	if session.State != domain.StateActive || session.CurrentQuestionIndex != index {
		log.Printf("session %s: discarding stale timer for question %d (state=%s, current=%d)", sessionID, index, session.State, session.CurrentQuestionIndex)
		return
	}
	quiz, err := o.loadQuiz(ctx, session.QuizID)
	if err != nil {
		log.Printf("session %s: load quiz on timeout: %v", sessionID, err)
		return
	}
	if _, err := o.advanceLocked(ctx, sessionID, quiz, index); err != nil {
		log.Printf("session %s: auto-advance from question %d failed: %v", sessionID, index, err)
	}
}

// advanceLocked closes question index and opens the next one. It does nothing
// when the session is active on another question.
func (o *Orchestrator) advanceLocked(ctx context.Context, sessionID string, quiz domain.Quiz, index int) (domain.GameSession, error) {
	var t domain.Transition
	session, err := o.update(ctx, sessionID, func(s *domain.GameSession) (bool, error) {
		if s.State == domain.StateActive && s.CurrentQuestionIndex != index {
			log.Printf("session %s: question %d already closed (current=%d)", s.ID, index, s.CurrentQuestionIndex)
			t = domain.Transition{NoOp: true}
			return false, nil
		}
		var err error
		t, err = s.Advance(len(quiz.Questions), o.now())
		if err != nil {
			return false, err
		}
		return !t.NoOp, nil
	})
	if err != nil || t.NoOp {
		return session, err
	}
	o.closeQuestionLocked(ctx, session.ID, quiz, t.Closed)
	if t.Ended {
		o.timers.Cancel(session.ID)
		log.Printf("session %s finished after %d questions", session.ID, len(quiz.Questions))
		o.publishGameEnded(ctx, session.ID)
		return session, nil
	}
	o.openQuestionLocked(ctx, session, quiz)
	return session, nil
}

// update reads the session, applies change and stores the result. When another
// instance stored a newer version in between, change runs again on a fresh copy.
// change reports whether there is anything to store.
func (o *Orchestrator) update(ctx context.Context, sessionID string, change func(*domain.GameSession) (bool, error)) (domain.GameSession, error) {
	for attempt := 1; ; attempt++ {
		session, err := o.sessions.Get(ctx, sessionID)
		if err != nil {
			return session, err
		}
		save, err := change(&session)
		if err != nil || !save {
			return session, err
		}
		err = o.sessions.Update(ctx, &session)
		if !errors.Is(err, domain.ErrVersionConflict) || attempt == updateAttempts {
			return session, err
		}
		log.Printf("session %s changed concurrently, retrying (attempt %d)", sessionID, attempt)
	}
}

func (o *Orchestrator) openQuestionLocked(ctx context.Context, session domain.GameSession, quiz domain.Quiz) {
	q, ok := quiz.Question(session.CurrentQuestionIndex)
	if !ok {
		return
	}
	o.publish(ctx, session.ID, domain.EventQuestionStarted, o.questionStarted(session, quiz, q))
	o.timers.Schedule(session.ID, session.CurrentQuestionIndex, q.Duration(), o.onQuestionTimeout)
}

func (o *Orchestrator) closeQuestionLocked(ctx context.Context, sessionID string, quiz domain.Quiz, index int) {
	q, ok := quiz.Question(index)
	if !ok {
		return
	}
	lb, err := o.boards.ForSession(ctx, sessionID)
	if err != nil {
		log.Printf("session %s: leaderboard on question close: %v", sessionID, err)
		lb = domain.Leaderboard{SessionID: sessionID, UpdatedAt: o.now()}
	}
	o.publish(ctx, sessionID, domain.EventQuestionEnded, domain.QuestionEnded{
		Index:              index,
		CorrectOptionIndex: q.CorrectOptionIndex,
		Leaderboard:        lb,
	})
}

func (o *Orchestrator) publishGameEnded(ctx context.Context, sessionID string) {
	lb, err := o.boards.ForSession(ctx, sessionID)
	if err != nil {
		log.Printf("session %s: final leaderboard: %v", sessionID, err)
		lb = domain.Leaderboard{SessionID: sessionID, UpdatedAt: o.now()}
	}
	o.publish(ctx, sessionID, domain.EventGameEnded, domain.GameEnded{Leaderboard: lb})
}

func (o *Orchestrator) questionStarted(session domain.GameSession, quiz domain.Quiz, q domain.Question) domain.QuestionStarted {
	return domain.QuestionStarted{
		Question:         q.Public(),
		Index:            session.CurrentQuestionIndex,
		Total:            len(quiz.Questions),
		RemainingSeconds: session.RemainingSeconds(q.Duration(), o.now()),
	}
}

func (o *Orchestrator) answeredCount(ctx context.Context, session domain.GameSession, quiz domain.Quiz) (int, error) {
	q, ok := quiz.Question(session.CurrentQuestionIndex)
	if !ok {
		return 0, nil
	}
	submissions, err := o.ledger.submissions.ListBySession(ctx, session.ID)
	if err != nil {
		return 0, err
	}
	answered := 0
	for _, s := range submissions {
		if s.AnswerFor(q.ID) >= 0 {
			answered++
		}
	}
	return answered, nil
}

// loadQuiz fetches a quiz and fills in the default timer where a question has none.
func (o *Orchestrator) loadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := o.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return quiz, err
	}
	questions := make([]domain.Question, len(quiz.Questions))
	for i, q := range quiz.Questions {
		if q.TimerSeconds <= 0 {
			q.TimerSeconds = o.defaultTimer
		}
		questions[i] = q
	}
	quiz.Questions = questions
	return quiz, nil
}

func (o *Orchestrator) loadForHost(ctx context.Context, sessionID, hostID string) (domain.GameSession, domain.Quiz, error) {
	session, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return session, domain.Quiz{}, err
	}
	if err := checkHost(session, hostID); err != nil {
		return session, domain.Quiz{}, err
	}
	quiz, err := o.loadQuiz(ctx, session.QuizID)
	if err != nil {
		return session, domain.Quiz{}, err
	}
	return session, quiz, nil
}

// Resolve finds the session a reference points at.
func (o *Orchestrator) Resolve(ctx context.Context, ref SessionRef) (domain.GameSession, error) {
	if err := o.check(ref); err != nil {
		return domain.GameSession{}, err
	}
	return o.resolve(ctx, ref)
}

// resolve looks a session up by id (when the pin, if given, agrees), then share code, then pin.
func (o *Orchestrator) resolve(ctx context.Context, ref SessionRef) (domain.GameSession, error) {
	if ref.ID != "" {
		session, err := o.sessions.Get(ctx, ref.ID)
		if err == nil && (ref.Pin == "" || ref.Pin == session.Pin) {
			return session, nil
		}
		if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			return domain.GameSession{}, err
		}
	}
	if ref.ShareCode != "" {
		session, err := o.sessions.GetByShareCode(ctx, strings.ToUpper(ref.ShareCode))
		if err == nil || !errors.Is(err, domain.ErrSessionNotFound) {
			return session, err
		}
	}
	if ref.Pin != "" {
		return o.sessions.GetByPin(ctx, ref.Pin)
	}
	return domain.GameSession{}, domain.ErrSessionNotFound
}

func (o *Orchestrator) publish(ctx context.Context, sessionID, eventType string, payload any) {
	if o.publisher == nil {
		return
	}
	o.publisher.Publish(ctx, sessionID, domain.Event{Type: eventType, Payload: payload})
}

func (o *Orchestrator) check(cmd any) error {
	if err := o.validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

// lock serializes work on one session without blocking other sessions.
func (o *Orchestrator) lock(sessionID string) func() {
	o.locksMu.Lock()
	l, ok := o.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		o.locks[sessionID] = l
	}
	l.refs++
	o.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		o.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(o.locks, sessionID)
		}
		o.locksMu.Unlock()
	}
}

func checkHost(session domain.GameSession, hostID string) error {
	if hostID != "" && session.HostID != "" && hostID != session.HostID {
		return domain.ErrNotHost
	}
	return nil
}

func validateQuiz(quiz domain.Quiz) error {
	if len(quiz.Questions) == 0 {
		return fmt.Errorf("%w: quiz %s has no questions", domain.ErrValidation, quiz.ID)
	}
	for i, q := range quiz.Questions {
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: question %d needs at least two options", domain.ErrValidation, i)
		}
		if q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= len(q.Options) {
			return fmt.Errorf("%w: question %d has no valid correct option", domain.ErrValidation, i)
		}
	}
	return nil
}
