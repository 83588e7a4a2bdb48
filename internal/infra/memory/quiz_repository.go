package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"academy-ledger-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuizSource fetches quiz definitions from the content store.
type QuizSource interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizCache is a read-through cache of quiz definitions with a jittered TTL.
type QuizCache struct {
	source QuizSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu      sync.RWMutex
	entries map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizCache(source QuizSource, ttl time.Duration) *QuizCache {
	return &QuizCache{
		source:  source,
		ttl:     ttl,
		clock:   time.Now,
		entries: make(map[string]cachedQuiz),
	}
}

func (c *QuizCache) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := c.lookup(quizID); ok {
		return quiz, nil
	}

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		if quiz, ok := c.lookup(quizID); ok {
			return quiz, nil
		}
		quiz, err := c.source.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		if c.ttl > 0 {
			c.mu.Lock()
			c.entries[quizID] = cachedQuiz{quiz: quiz, expiresAt: c.clock().Add(jitter(c.ttl))}
			c.mu.Unlock()
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Invalidate drops a cached definition after content authoring edits it.
func (c *QuizCache) Invalidate(_ context.Context, quizID string) error {
	c.mu.Lock()
	delete(c.entries, quizID)
	c.mu.Unlock()
	return nil
}

func (c *QuizCache) lookup(quizID string) (domain.Quiz, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[quizID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Quiz{}, false
	}
	return entry.quiz, true
}

// jitter adds up to 10% to ttl to spread expirations.
func jitter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl + time.Duration(rand.Int63n(int64(ttl)/10+1))
}

// StaticQuizSource serves quizzes from a map (tests/demos).
type StaticQuizSource struct {
	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
}

func NewStaticQuizSource(quizzes ...domain.Quiz) *StaticQuizSource {
	m := make(map[string]domain.Quiz, len(quizzes))
	for _, q := range quizzes {
		m[q.ID] = q
	}
	return &StaticQuizSource{quizzes: m}
}

func (s *StaticQuizSource) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if quiz, ok := s.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (s *StaticQuizSource) SaveQuiz(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	s.quizzes[quiz.ID] = quiz
	s.mu.Unlock()
	return nil
}
