package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"academy-ledger-service/internal/domain"
	"github.com/google/uuid"
)

const (
	certificateBaseXP      = 200
	certificateExcellentXP = 100
	certificateHighXP      = 50
	courseCompletionXP     = 100

	certificateNumberAttempts = 3
)

const base36Digits = "0123456789abcdefghijklmnopqrstuvwxyz"

// CertificateIssuer awards at most one certificate per (user, course).
type CertificateIssuer struct {
	repo    CertificateRepository
	catalog CourseCatalog
	ledger  *Ledger
	tx      Transactor
	now     func() time.Time
	random  io.Reader
}

func NewCertificateIssuer(repo CertificateRepository, catalog CourseCatalog, ledger *Ledger, tx Transactor) *CertificateIssuer {
	return &CertificateIssuer{
		repo:    repo,
		catalog: catalog,
		ledger:  ledger,
		tx:      tx,
		now:     time.Now,
		random:  rand.Reader,
	}
}

// NewCertificateIssuerWithClock is test-only for deterministic numbers.
func NewCertificateIssuerWithClock(repo CertificateRepository, catalog CourseCatalog, ledger *Ledger, tx Transactor, now func() time.Time, random io.Reader) *CertificateIssuer {
	c := NewCertificateIssuer(repo, catalog, ledger, tx)
	c.now = now
	c.random = random
	return c
}

// MaybeAward issues the certificate for a completed course. The caller has already established
// completion. It reports issued=false when the course has no template or the certificate
// already exists; the store's uniqueness on (user, course) decides races.
func (c *CertificateIssuer) MaybeAward(ctx context.Context, userID, courseID string, finalScore int) (domain.UserCertificate, bool, error) {
	exists, err := c.repo.Exists(ctx, userID, courseID)
	if err != nil {
		return domain.UserCertificate{}, false, err
	}
	if exists {
		return domain.UserCertificate{}, false, nil
	}

	templateID, err := c.catalog.CertificateTemplateForCourse(ctx, courseID)
	if err != nil {
		return domain.UserCertificate{}, false, err
	}
	if templateID == "" {
		return domain.UserCertificate{}, false, nil
	}

	for attempt := 0; attempt < certificateNumberAttempts; attempt++ {
		cert, err := c.issue(ctx, userID, courseID, templateID, finalScore)
		switch {
		case err == nil:
			certificatesIssued.Inc()
			return cert, true, nil
		case errors.Is(err, domain.ErrCertificateExists):
			return domain.UserCertificate{}, false, nil
		case errors.Is(err, domain.ErrCertificateNumberTaken):
			// the whole unit rolled back; nothing was applied, so a fresh number is safe
			continue
		default:
			return domain.UserCertificate{}, false, err
		}
	}
	return domain.UserCertificate{}, false, domain.Internal("issue certificate", domain.ErrCertificateNumberTaken)
}

func (c *CertificateIssuer) issue(ctx context.Context, userID, courseID, templateID string, finalScore int) (domain.UserCertificate, error) {
	number, err := c.newNumber()
	if err != nil {
		return domain.UserCertificate{}, domain.Internal("generate certificate number", err)
	}
	cert := domain.UserCertificate{
		ID:                    uuid.NewString(),
		UserID:                userID,
		CourseID:              courseID,
		CertificateTemplateID: templateID,
		CertificateNumber:     number,
		FinalScore:            finalScore,
		XPEarned:              CertificateXP(finalScore),
		IssuedAt:              c.now().UTC(),
	}

	err = c.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := c.repo.Create(ctx, cert); err != nil {
			return err
		}
		if _, err := c.ledger.Apply(ctx, domain.XPChange{
			UserID:      userID,
			Delta:       cert.XPEarned,
			Activity:    domain.ActivityCertificateEarned,
			Description: fmt.Sprintf("Certificate earned for course %s", courseID),
			Related:     &domain.EntityRef{ID: templateID, Type: "certificate"},
		}); err != nil {
			return err
		}
		_, err := c.ledger.Apply(ctx, domain.XPChange{
			UserID:      userID,
			Delta:       courseCompletionXP,
			Activity:    domain.ActivityCourseCompletion,
			Description: fmt.Sprintf("Course completed: %s", courseID),
			Related:     &domain.EntityRef{ID: courseID, Type: "course"},
		})
		return err
	})
	if err != nil {
		return domain.UserCertificate{}, err
	}
	return cert, nil
}

// newNumber builds CERT-<base36 millis>-<6 random base36 chars>, uppercased.
func (c *CertificateIssuer) newNumber() (string, error) {
	buf := make([]byte, 6)
	if _, err := io.ReadFull(c.random, buf); err != nil {
		return "", err
	}
	suffix := make([]byte, len(buf))
	for i, b := range buf {
		suffix[i] = base36Digits[int(b)%len(base36Digits)]
	}
	stamp := strconv.FormatInt(c.now().UnixMilli(), 36)
	return strings.ToUpper("CERT-" + stamp + "-" + string(suffix)), nil
}

// CertificateXP is the bonus for a certificate earned with finalScore.
func CertificateXP(finalScore int) int {
	xp := certificateBaseXP
	switch {
	case finalScore >= 90:
		xp += certificateExcellentXP
	case finalScore >= 80:
		xp += certificateHighXP
	}
	return xp
}

// ForUser lists the user's certificates, newest first.
func (c *CertificateIssuer) ForUser(ctx context.Context, userID string) ([]domain.UserCertificate, error) {
	return c.repo.ListByUser(ctx, userID)
}

// Recent lists the latest certificates across all users.
func (c *CertificateIssuer) Recent(ctx context.Context, limit int) ([]domain.UserCertificate, error) {
	return c.repo.ListRecent(ctx, clampLimit(limit, defaultLeaderboardLimit))
}

func (c *CertificateIssuer) Get(ctx context.Context, id string) (domain.UserCertificate, error) {
	return c.repo.Get(ctx, id)
}

// Verify looks a certificate up by its public number.
func (c *CertificateIssuer) Verify(ctx context.Context, number string) (domain.UserCertificate, error) {
	number = strings.ToUpper(strings.TrimSpace(number))
	if number == "" {
		return domain.UserCertificate{}, domain.Validationf("certificate number is required")
	}
	return c.repo.GetByNumber(ctx, number)
}

func (c *CertificateIssuer) Stats(ctx context.Context, userID string) (domain.CertificateStats, error) {
	certs, err := c.repo.ListByUser(ctx, userID)
	if err != nil {
		return domain.CertificateStats{}, err
	}
	stats := domain.CertificateStats{TotalCertificates: len(certs), Certificates: certs}
	scoreSum := 0
	for _, cert := range certs {
		stats.TotalXPEarned += cert.XPEarned
		scoreSum += cert.FinalScore
	}
	stats.AverageScore = roundAverage(scoreSum, len(certs))
	if stats.Certificates == nil {
		stats.Certificates = []domain.UserCertificate{}
	}
	return stats, nil
}
