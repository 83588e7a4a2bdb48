package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"academy-ledger-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuizSource fetches quiz definitions from the content store.
type QuizSource interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizCache keeps quiz definitions in Redis as JSON and falls back to the source on a miss:
//
//	SET quiz:{quizID}:definition {json} EX ttl
//
// Redis failures degrade to reading the source.
type QuizCache struct {
	client *redis.Client
	source QuizSource
	ttl    time.Duration
	sf     singleflight.Group
}

func NewQuizCache(client *redis.Client, source QuizSource, ttl time.Duration) *QuizCache {
	return &QuizCache{client: client, source: source, ttl: ttl}
}

func (c *QuizCache) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := c.cached(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		// another caller may have filled the cache meanwhile
		if quiz, ok := c.cached(ctx, quizID); ok {
			return quiz, nil
		}
		quiz, err := c.source.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		if payload, err := json.Marshal(quiz); err == nil && c.ttl > 0 {
			_ = c.client.Set(ctx, definitionKey(quizID), payload, jitter(c.ttl)).Err()
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Invalidate drops a cached definition after content authoring edits it.
func (c *QuizCache) Invalidate(ctx context.Context, quizID string) error {
	return c.client.Del(ctx, definitionKey(quizID)).Err()
}

func (c *QuizCache) cached(ctx context.Context, quizID string) (domain.Quiz, bool) {
	payload, err := c.client.Get(ctx, definitionKey(quizID)).Bytes()
	if err != nil {
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(payload, &quiz); err != nil || len(quiz.Questions) == 0 {
		return domain.Quiz{}, false
	}
	return quiz, true
}

func definitionKey(quizID string) string {
	return "quiz:" + quizID + ":definition"
}

// jitter adds up to 10% to ttl to spread expirations.
func jitter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl + time.Duration(rand.Int63n(int64(ttl)/10+1))
}
