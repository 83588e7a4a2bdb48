package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"academy-ledger-service/internal/domain"
	"github.com/gorilla/websocket"
)

func TestWebSocketSubmitFlow(t *testing.T) {
	server := httptest.NewServer(newTestRouter(t))
	defer server.Close()

	header := http.Header{}
	header.Set(userIDHeader, "u1")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "/ws/leaderboard"), header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// current leaderboard first
	_, payload := readNext(conn, t, "leaderboard")
	if entries, _ := payload["entries"].([]any); len(entries) != 2 {
		t.Fatalf("expected two leaderboard entries, got %v", payload)
	}

	submit := map[string]any{
		"type": "submit",
		"payload": map[string]any{
			"quizId":   "quiz-1",
			"lessonId": "l1",
			"courseId": "course-1",
			"answers": []map[string]int{
				{"questionIndex": 0, "selectedAnswer": 1},
				{"questionIndex": 1, "selectedAnswer": 1},
			},
		},
	}
	if err := conn.WriteJSON(submit); err != nil {
		t.Fatalf("write submit: %v", err)
	}

	resultSeen := false
	leaderboardSeen := false
	for i := 0; i < 4 && !(resultSeen && leaderboardSeen); i++ {
		typ, payload := readNext(conn, t, "")
		switch typ {
		case "submissionResult":
			resultSeen = true
			if payload["score"] != float64(50) || payload["passed"] != false {
				t.Fatalf("unexpected result %v", payload)
			}
		case "leaderboard":
			leaderboardSeen = true
		}
	}
	if !resultSeen || !leaderboardSeen {
		t.Fatalf("expected submissionResult and leaderboard, got submissionResult=%v leaderboard=%v", resultSeen, leaderboardSeen)
	}

	// the same quiz twice is rejected
	if err := conn.WriteJSON(submit); err != nil {
		t.Fatalf("write resubmit: %v", err)
	}
	_, payload = readNext(conn, t, "error")
	if payload["message"] != "quiz already attempted" {
		t.Fatalf("unexpected error %v", payload)
	}
}

func TestWebSocketAnonymousCannotSubmit(t *testing.T) {
	server := httptest.NewServer(newTestRouter(t))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "/ws/leaderboard"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readNext(conn, t, "leaderboard")

	if err := conn.WriteJSON(map[string]any{"type": "submit", "payload": map[string]any{}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, payload := readNext(conn, t, "error"); payload["message"] != "missing X-User-ID header" {
		t.Fatalf("unexpected error %v", payload)
	}

	if err := conn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, payload := readNext(conn, t, "error")
	if payload["message"] != "unsupported message type" {
		t.Fatalf("unexpected error %v", payload)
	}
}

func TestWebSocketQueryUserIDCannotSubmit(t *testing.T) {
	r := newTestRouter(t)
	server := httptest.NewServer(r)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "/ws/leaderboard?userId=u2"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readNext(conn, t, "leaderboard")

	if err := conn.WriteJSON(map[string]any{"type": "submit", "payload": perfectSubmission()}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, payload := readNext(conn, t, "error"); payload["message"] != "missing X-User-ID header" {
		t.Fatalf("unexpected error %v", payload)
	}

	rec := do(r, http.MethodGet, "/api/v1/quiz-attempts", "u2", nil)
	if attempts := decode[[]domain.QuizAttempt](t, rec); len(attempts) != 0 {
		t.Fatalf("expected no attempts for u2, got %+v", attempts)
	}
}

func wsURL(server *httptest.Server, path string) string {
	return "ws" + server.URL[len("http"):] + path
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}
