package http

import "github.com/gin-gonic/gin"

// Register mounts the JSON API on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	v1 := r.Group("/v1")
	{
		v1.POST("/eval", h.Eval)
		v1.GET("/metrics", h.Metrics)

		v1.POST("/sessions", h.CreateSession)
		v1.GET("/sessions", h.ListSessions)
		v1.GET("/sessions/:id", h.GetSession)
		v1.POST("/sessions/:id/eval", h.EvalSession)
		v1.DELETE("/sessions/:id", h.DeleteSession)
	}
}
