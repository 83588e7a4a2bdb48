package memory

import (
	"context"
	"sort"
	"sync"

	"academy-ledger-service/internal/domain"
)

type userCourse struct {
	userID   string
	courseID string
}

// CertificateStore keeps issued certificates, unique per (user, course) and per number.
type CertificateStore struct {
	mu       sync.RWMutex
	byID     map[string]domain.UserCertificate
	byCourse map[userCourse]string
	byNumber map[string]string
}

func NewCertificateStore() *CertificateStore {
	return &CertificateStore{
		byID:     make(map[string]domain.UserCertificate),
		byCourse: make(map[userCourse]string),
		byNumber: make(map[string]string),
	}
}

func (s *CertificateStore) Exists(_ context.Context, userID, courseID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byCourse[userCourse{userID, courseID}]
	return ok, nil
}

func (s *CertificateStore) Create(ctx context.Context, cert domain.UserCertificate) error {
	key := userCourse{cert.UserID, cert.CourseID}

	s.mu.Lock()
	if _, ok := s.byCourse[key]; ok {
		s.mu.Unlock()
		return domain.ErrCertificateExists
	}
	if _, ok := s.byNumber[cert.CertificateNumber]; ok {
		s.mu.Unlock()
		return domain.ErrCertificateNumberTaken
	}
	s.byID[cert.ID] = cert
	s.byCourse[key] = cert.ID
	s.byNumber[cert.CertificateNumber] = cert.ID
	s.mu.Unlock()

	onRollback(ctx, func() {
		s.mu.Lock()
		delete(s.byID, cert.ID)
		delete(s.byCourse, key)
		delete(s.byNumber, cert.CertificateNumber)
		s.mu.Unlock()
	})
	return nil
}

func (s *CertificateStore) Get(_ context.Context, id string) (domain.UserCertificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.byID[id]
	if !ok {
		return domain.UserCertificate{}, domain.ErrCertificateNotFound
	}
	return cert, nil
}

func (s *CertificateStore) GetByNumber(_ context.Context, number string) (domain.UserCertificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byNumber[number]
	if !ok {
		return domain.UserCertificate{}, domain.ErrCertificateNotFound
	}
	return s.byID[id], nil
}

func (s *CertificateStore) ListByUser(_ context.Context, userID string) ([]domain.UserCertificate, error) {
	s.mu.RLock()
	out := make([]domain.UserCertificate, 0)
	for _, cert := range s.byID {
		if cert.UserID == userID {
			out = append(out, cert)
		}
	}
	s.mu.RUnlock()

	sortNewestFirst(out)
	return out, nil
}

func (s *CertificateStore) ListRecent(_ context.Context, limit int) ([]domain.UserCertificate, error) {
	s.mu.RLock()
	out := make([]domain.UserCertificate, 0, len(s.byID))
	for _, cert := range s.byID {
		out = append(out, cert)
	}
	s.mu.RUnlock()

	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortNewestFirst(certs []domain.UserCertificate) {
	sort.Slice(certs, func(i, j int) bool {
		if certs[i].IssuedAt.Equal(certs[j].IssuedAt) {
			return certs[i].ID > certs[j].ID
		}
		return certs[i].IssuedAt.After(certs[j].IssuedAt)
	})
}
