package memory

import (
	"context"
	"sort"

	"academy-ledger-service/internal/domain"
)

// StaticCatalog is a course catalog backed by a fixed set of courses (tests/demos).
type StaticCatalog struct {
	courses map[string]domain.Course
}

func NewStaticCatalog(courses ...domain.Course) *StaticCatalog {
	c := &StaticCatalog{courses: make(map[string]domain.Course, len(courses))}
	for _, course := range courses {
		c.courses[course.ID] = course
	}
	return c
}

func (c *StaticCatalog) LessonsForCourse(_ context.Context, courseID string) ([]string, error) {
	course, ok := c.courses[courseID]
	if !ok {
		return nil, domain.ErrCourseNotFound
	}
	return append([]string(nil), course.LessonIDs...), nil
}

func (c *StaticCatalog) CertificateTemplateForCourse(_ context.Context, courseID string) (string, error) {
	course, ok := c.courses[courseID]
	if !ok {
		return "", domain.ErrCourseNotFound
	}
	return course.CertificateTemplateID, nil
}

func (c *StaticCatalog) CourseIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(c.courses))
	for id := range c.courses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
