package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when an id, pin or share code resolves to no game session.
	ErrSessionNotFound = errors.New("game session not found")
	// ErrSessionNotActive is returned when a submission or advance happens outside the active state.
	ErrSessionNotActive = errors.New("game session is not active")
	// ErrInvalidTransition is the base error for state changes the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrSessionLocked is returned when starting a session that already started or ended.
	ErrSessionLocked = fmt.Errorf("%w: session locked", ErrInvalidTransition)
	// ErrValidation indicates a malformed command or answer payload.
	ErrValidation = errors.New("validation failed")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a submitted question ID is not part of the quiz.
	ErrQuestionNotFound = fmt.Errorf("%w: question not found", ErrValidation)
	// ErrOptionOutOfRange indicates a selected option index the question does not have.
	ErrOptionOutOfRange = fmt.Errorf("%w: option out of range", ErrValidation)
	// ErrNotHost is returned when a host command comes from someone other than the session host.
	ErrNotHost = errors.New("only the session host can do that")
	// ErrCodeTaken is returned by session stores when a pin or share code is already assigned.
	ErrCodeTaken = errors.New("session code already taken")
	// ErrSubmissionNotFound is returned when a participant has not answered in a session.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrVersionConflict is returned by session stores when the session changed since it was read.
	ErrVersionConflict = errors.New("game session changed concurrently")
)
