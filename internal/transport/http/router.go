package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"live-quiz-service/internal/app"
)

// NewRouter wires the websocket endpoint and the REST API onto a gin engine.
func NewRouter(orch *app.Orchestrator, events Subscriber, auth *HostAuth) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	ws := NewWSHandler(orch, events, auth)
	api := NewAPI(orch, events)

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/ws", gin.WrapF(ws.ServeWS))

	group := router.Group("/api")
	group.POST("/sessions", auth.RequireHost(), api.createSession)
	group.GET("/sessions/lookup", api.lookupSession)
	group.GET("/sessions/:id", api.session)
	group.GET("/sessions/:id/leaderboard", api.leaderboard)
	group.GET("/sessions/:id/submissions/:participantId", api.submission)
	group.GET("/classrooms/:id/roster", api.roster)
	group.GET("/classrooms/:id/participants/:participantId/progress", api.progress)
	return router
}
