package http

import (
	"net/http"

	"academy-ledger-service/internal/app"
	"academy-ledger-service/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the REST API, the leaderboard stream, health and metrics.
func NewRouter(service *app.QuizService, log logger.Log) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	h := NewHandler(service, log)
	ws := NewWSHandler(service, log)

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws/leaderboard", ws.ServeWS)

	v1 := r.Group("/api/v1", LoggingMiddleware(log))
	{
		v1.GET("/certificates/verify/:number", h.VerifyCertificate)
		v1.GET("/certificates/recent", h.RecentCertificates)
		v1.GET("/leaderboard", h.Leaderboard)

		user := v1.Group("", RequireUser())
		{
			user.POST("/accounts", h.OpenAccount)

			user.POST("/quiz-attempts", h.SubmitQuiz)
			user.GET("/quiz-attempts", h.ListAttempts)
			user.GET("/quiz-attempts/:id", h.GetAttempt)

			user.GET("/progress", h.ListProgress)
			user.GET("/progress/courses", h.AllCoursesProgress)
			user.GET("/progress/courses/:courseId", h.CourseProgress)

			user.GET("/stats", h.Stats)
			user.GET("/xp/history", h.XPHistory)
			user.GET("/xp/activity-stats", h.ActivityStats)
			user.GET("/xp/recent", h.RecentActivity)

			user.GET("/certificates", h.ListCertificates)
			user.GET("/certificates/stats", h.CertificateStats)
			user.GET("/certificates/:id", h.GetCertificate)
		}
	}
	return r
}
