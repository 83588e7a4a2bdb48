package http

import (
	"net/http"
	"strconv"
	"time"

	"academy-ledger-service/internal/app"
	"academy-ledger-service/internal/domain"
	"academy-ledger-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Handler serves the learner-facing REST API.
type Handler struct {
	service *app.QuizService
	log     logger.Log
}

func NewHandler(service *app.QuizService, log logger.Log) *Handler {
	return &Handler{service: service, log: log}
}

type openAccountRequest struct {
	DisplayName string `json:"displayName"`
}

func (h *Handler) OpenAccount(c *gin.Context) {
	var req openAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, domain.Validationf("invalid request body"))
		return
	}
	account, err := h.service.OpenAccount(c.Request.Context(), currentUser(c), req.DisplayName)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *Handler) SubmitQuiz(c *gin.Context) {
	var sub domain.QuizSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		writeError(c, domain.Validationf("invalid request body"))
		return
	}
	result, err := h.service.SubmitQuiz(c.Request.Context(), currentUser(c), sub)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) ListAttempts(c *gin.Context) {
	attempts, err := h.service.GetUserAttempts(c.Request.Context(), currentUser(c), attemptFilter(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, attempts)
}

func (h *Handler) GetAttempt(c *gin.Context) {
	attempt, err := h.service.GetAttempt(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	// attempts are private to their owner
	if attempt.UserID != currentUser(c) {
		writeError(c, domain.ErrAttemptNotFound)
		return
	}
	c.JSON(http.StatusOK, attempt)
}

func (h *Handler) ListProgress(c *gin.Context) {
	rows, err := h.service.GetUserProgress(c.Request.Context(), currentUser(c), attemptFilter(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) AllCoursesProgress(c *gin.Context) {
	progress, err := h.service.GetAllCoursesProgress(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (h *Handler) CourseProgress(c *gin.Context) {
	progress, err := h.service.GetCourseProgress(c.Request.Context(), currentUser(c), c.Param("courseId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.service.GetUserStats(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) XPHistory(c *gin.Context) {
	limit, offset, err := paging(c)
	if err != nil {
		writeError(c, err)
		return
	}
	from, err := timeQuery(c, "from")
	if err != nil {
		writeError(c, err)
		return
	}
	to, err := timeQuery(c, "to")
	if err != nil {
		writeError(c, err)
		return
	}
	entries, err := h.service.GetXPHistory(c.Request.Context(), domain.XPHistoryFilter{
		UserID:       currentUser(c),
		ActivityType: domain.ActivityType(c.Query("activityType")),
		From:         from,
		To:           to,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) ActivityStats(c *gin.Context) {
	stats, err := h.service.GetActivityStats(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) RecentActivity(c *gin.Context) {
	limit, _, err := paging(c)
	if err != nil {
		writeError(c, err)
		return
	}
	entries, err := h.service.GetRecentActivity(c.Request.Context(), currentUser(c), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) Leaderboard(c *gin.Context) {
	limit, _, err := paging(c)
	if err != nil {
		writeError(c, err)
		return
	}
	entries, err := h.service.GetXPLeaderboard(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) RecentCertificates(c *gin.Context) {
	limit, _, err := paging(c)
	if err != nil {
		writeError(c, err)
		return
	}
	certs, err := h.service.GetRecentCertificates(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, certs)
}

func (h *Handler) ListCertificates(c *gin.Context) {
	certs, err := h.service.GetUserCertificates(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, certs)
}

func (h *Handler) CertificateStats(c *gin.Context) {
	stats, err := h.service.GetCertificateStats(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetCertificate(c *gin.Context) {
	cert, err := h.service.GetCertificate(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if cert.UserID != currentUser(c) {
		writeError(c, domain.ErrCertificateNotFound)
		return
	}
	c.JSON(http.StatusOK, cert)
}

// VerifyCertificate is public: anyone holding a certificate number may check it.
func (h *Handler) VerifyCertificate(c *gin.Context) {
	cert, err := h.service.VerifyCertificate(c.Request.Context(), c.Param("number"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "certificate": cert})
}

func attemptFilter(c *gin.Context) domain.AttemptFilter {
	return domain.AttemptFilter{CourseID: c.Query("courseId"), LessonID: c.Query("lessonId")}
}

// timeQuery parses an optional RFC 3339 query parameter.
func timeQuery(c *gin.Context, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, domain.Validationf("%s must be an RFC 3339 timestamp", name)
	}
	return t, nil
}

func paging(c *gin.Context) (limit, offset int, err error) {
	if raw := c.Query("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			return 0, 0, domain.Validationf("limit must be a non-negative integer")
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil || offset < 0 {
			return 0, 0, domain.Validationf("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}
