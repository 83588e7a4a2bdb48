package postgres

import (
	"context"
	"errors"

	"academy-ledger-service/internal/domain"
	"github.com/jackc/pgx/v4"
)

// Catalog reads course structure from the courses and lessons tables.
type Catalog struct {
	store *Store
}

func NewCatalog(store *Store) *Catalog {
	return &Catalog{store: store}
}

func (c *Catalog) LessonsForCourse(ctx context.Context, courseID string) ([]string, error) {
	if _, err := c.CertificateTemplateForCourse(ctx, courseID); err != nil {
		return nil, err
	}
	rows, err := c.store.q(ctx).Query(ctx,
		`SELECT id FROM lessons WHERE course_id=$1 ORDER BY position, id`, courseID)
	if err != nil {
		return nil, domain.Internal("list lessons", err)
	}
	defer rows.Close()

	lessons := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.Internal("scan lesson", err)
		}
		lessons = append(lessons, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal("list lessons", err)
	}
	return lessons, nil
}

func (c *Catalog) CertificateTemplateForCourse(ctx context.Context, courseID string) (string, error) {
	var templateID string
	err := c.store.q(ctx).QueryRow(ctx,
		`SELECT COALESCE(certificate_template_id, '') FROM courses WHERE id=$1`, courseID).Scan(&templateID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrCourseNotFound
	}
	if err != nil {
		return "", domain.Internal("load course", err)
	}
	return templateID, nil
}

func (c *Catalog) CourseIDs(ctx context.Context) ([]string, error) {
	rows, err := c.store.q(ctx).Query(ctx, `SELECT id FROM courses ORDER BY id`)
	if err != nil {
		return nil, domain.Internal("list courses", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.Internal("scan course", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal("list courses", err)
	}
	return ids, nil
}

// SaveCourse upserts a course and replaces its lesson list. Used for seeding.
func (c *Catalog) SaveCourse(ctx context.Context, course domain.Course) error {
	return c.store.WithinTx(ctx, func(ctx context.Context) error {
		q := c.store.q(ctx)
		var template interface{}
		if course.CertificateTemplateID != "" {
			template = course.CertificateTemplateID
		}
		if _, err := q.Exec(ctx,
			`INSERT INTO courses (id, title, certificate_template_id) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, certificate_template_id = EXCLUDED.certificate_template_id`,
			course.ID, course.Title, template); err != nil {
			return domain.Internal("save course", err)
		}
		if _, err := q.Exec(ctx, `DELETE FROM lessons WHERE course_id=$1`, course.ID); err != nil {
			return domain.Internal("clear lessons", err)
		}
		for i, lessonID := range course.LessonIDs {
			if _, err := q.Exec(ctx,
				`INSERT INTO lessons (id, course_id, position) VALUES ($1, $2, $3)`,
				lessonID, course.ID, i); err != nil {
				return domain.Internal("save lesson", err)
			}
		}
		return nil
	})
}
