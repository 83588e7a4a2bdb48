package postgres

import (
	"context"
	"errors"

	"academy-ledger-service/internal/domain"
	"github.com/jackc/pgx/v4"
)

const (
	certificateCourseConstraint = "user_certificates_user_course_key"
	certificateNumberConstraint = "user_certificates_number_key"
)

const certificateColumns = `id, user_id, course_id, certificate_template_id, certificate_number,
	final_score, xp_earned, issued_at`

// CertificateStore persists certificates. Unique constraints on (user, course) and on the
// number decide issuance races.
type CertificateStore struct {
	store *Store
}

func NewCertificateStore(store *Store) *CertificateStore {
	return &CertificateStore{store: store}
}

func (s *CertificateStore) Exists(ctx context.Context, userID, courseID string) (bool, error) {
	var exists bool
	err := s.store.q(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_certificates WHERE user_id=$1 AND course_id=$2)`,
		userID, courseID).Scan(&exists)
	if err != nil {
		return false, domain.Internal("check certificate", err)
	}
	return exists, nil
}

func (s *CertificateStore) Create(ctx context.Context, c domain.UserCertificate) error {
	_, err := s.store.q(ctx).Exec(ctx,
		`INSERT INTO user_certificates (`+certificateColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.UserID, c.CourseID, c.CertificateTemplateID, c.CertificateNumber, c.FinalScore, c.XPEarned, c.IssuedAt)
	switch violatedConstraint(err) {
	case certificateCourseConstraint:
		return domain.ErrCertificateExists
	case certificateNumberConstraint:
		return domain.ErrCertificateNumberTaken
	}
	if err != nil {
		return domain.Internal("insert certificate", err)
	}
	return nil
}

func (s *CertificateStore) Get(ctx context.Context, id string) (domain.UserCertificate, error) {
	return s.getOne(ctx, `SELECT `+certificateColumns+` FROM user_certificates WHERE id=$1`, id)
}

func (s *CertificateStore) GetByNumber(ctx context.Context, number string) (domain.UserCertificate, error) {
	return s.getOne(ctx, `SELECT `+certificateColumns+` FROM user_certificates WHERE certificate_number=$1`, number)
}

func (s *CertificateStore) getOne(ctx context.Context, query, arg string) (domain.UserCertificate, error) {
	c, err := scanCertificate(s.store.q(ctx).QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserCertificate{}, domain.ErrCertificateNotFound
	}
	if err != nil {
		return domain.UserCertificate{}, domain.Internal("load certificate", err)
	}
	return c, nil
}

func (s *CertificateStore) ListByUser(ctx context.Context, userID string) ([]domain.UserCertificate, error) {
	return s.list(ctx,
		`SELECT `+certificateColumns+` FROM user_certificates WHERE user_id=$1 ORDER BY issued_at DESC, id DESC`,
		userID)
}

func (s *CertificateStore) ListRecent(ctx context.Context, limit int) ([]domain.UserCertificate, error) {
	return s.list(ctx,
		`SELECT `+certificateColumns+` FROM user_certificates ORDER BY issued_at DESC, id DESC LIMIT $1`,
		limit)
}

func (s *CertificateStore) list(ctx context.Context, query string, args ...any) ([]domain.UserCertificate, error) {
	rows, err := s.store.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, domain.Internal("list certificates", err)
	}
	defer rows.Close()

	out := make([]domain.UserCertificate, 0)
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, domain.Internal("scan certificate", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal("list certificates", err)
	}
	return out, nil
}

func scanCertificate(row pgx.Row) (domain.UserCertificate, error) {
	var c domain.UserCertificate
	err := row.Scan(&c.ID, &c.UserID, &c.CourseID, &c.CertificateTemplateID, &c.CertificateNumber,
		&c.FinalScore, &c.XPEarned, &c.IssuedAt)
	c.IssuedAt = c.IssuedAt.UTC()
	return c, err
}
