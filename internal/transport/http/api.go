package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// API serves the REST side: session creation and read-only views.
type API struct {
	orch   *app.Orchestrator
	events Subscriber
}

func NewAPI(orch *app.Orchestrator, events Subscriber) *API {
	return &API{orch: orch, events: events}
}

type createSessionRequest struct {
	QuizID      string `json:"quizId" binding:"required"`
	ClassroomID string `json:"classroomId"`
}

func (a *API) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorPayload{Message: err.Error()})
		return
	}
	session, err := a.orch.CreateSession(c.Request.Context(), c.GetString(hostIDKey), req.QuizID, req.ClassroomID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// sessionDetail is a session plus what this instance knows about its live state.
type sessionDetail struct {
	Session     domain.GameSession `json:"session"`
	Connections int                `json:"connections"`
	// PendingQuestion is the question whose timer runs on this instance.
	PendingQuestion *int `json:"pendingQuestion,omitempty"`
}

func (a *API) session(c *gin.Context) {
	a.writeSession(c, app.SessionRef{ID: c.Param("id")})
}

func (a *API) lookupSession(c *gin.Context) {
	a.writeSession(c, app.SessionRef{Pin: c.Query("pin"), ShareCode: c.Query("code")})
}

func (a *API) writeSession(c *gin.Context, ref app.SessionRef) {
	session, err := a.orch.Resolve(c.Request.Context(), ref)
	if err != nil {
		writeError(c, err)
		return
	}
	detail := sessionDetail{Session: session, Connections: a.events.Subscribers(session.ID)}
	if index, ok := a.orch.PendingQuestion(session.ID); ok {
		detail.PendingQuestion = &index
	}
	c.JSON(http.StatusOK, detail)
}

func (a *API) submission(c *gin.Context) {
	sub, err := a.orch.Submission(c.Request.Context(), c.Param("id"), c.Param("participantId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (a *API) progress(c *gin.Context) {
	entries, err := a.orch.Progress(c.Request.Context(), c.Param("id"), c.Param("participantId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"classroomId": c.Param("id"), "participantId": c.Param("participantId"), "sessions": entries})
}

func (a *API) leaderboard(c *gin.Context) {
	lb, err := a.orch.Leaderboard(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lb)
}

func (a *API) roster(c *gin.Context) {
	entries, err := a.orch.Roster(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"classroomId": c.Param("id"), "entries": entries})
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, errorPayload{Message: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrSubmissionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotHost):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrSessionNotActive), errors.Is(err, domain.ErrCodeTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
