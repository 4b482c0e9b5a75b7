package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/baraza/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.courses[crs.ID] = crs
	return crs, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCourses(_ context.Context, teacherID string) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	crss := make([]course.Course, 0)
	for _, crs := range repo.db.courses {
		if crs.TeacherID == teacherID {
			crss = append(crss, crs)
		}
	}
	sort.Slice(crss, func(i, j int) bool {
		if !crss[i].CreatedAt.Equal(crss[j].CreatedAt) {
			return crss[i].CreatedAt.After(crss[j].CreatedAt)
		}
		return crss[i].ID < crss[j].ID
	})
	return crss, nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.courses[crs.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	orig.Title = crs.Title
	orig.Description = crs.Description
	repo.db.courses[crs.ID] = orig
	return orig, nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return course.ErrNotFound
	}
	for actID, act := range repo.db.activities {
		if act.CourseID == id {
			repo.db.deleteActivity(actID)
		}
	}
	for qID, q := range repo.db.questions {
		if q.CourseID == id {
			delete(repo.db.questions, qID)
		}
	}
	delete(repo.db.courses, id)
	return nil
}

func (repo *courseRepository) CreateQuestion(_ context.Context, q course.Question) (course.Question, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[q.CourseID]; !ok {
		return course.Question{}, course.ErrNotFound
	}
	q.ConceptTags = copyStrings(q.ConceptTags)
	repo.db.questions[q.ID] = q
	return q, nil
}

func (repo *courseRepository) UpdateQuestion(_ context.Context, q course.Question) (course.Question, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.questions[q.ID]
	if !ok {
		return course.Question{}, course.ErrQuestionNotFound
	}
	q.CourseID = orig.CourseID
	q.CreatedAt = orig.CreatedAt
	q.ConceptTags = copyStrings(q.ConceptTags)
	repo.db.questions[q.ID] = q
	return q, nil
}

func (repo *courseRepository) GetQuestion(_ context.Context, id string) (course.Question, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if q, ok := repo.db.questions[id]; ok {
		q.ConceptTags = copyStrings(q.ConceptTags)
		return q, nil
	}
	return course.Question{}, course.ErrQuestionNotFound
}

func (repo *courseRepository) QueryQuestions(_ context.Context, courseID string) ([]course.Question, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	qs := make([]course.Question, 0)
	for _, q := range repo.db.questions {
		if q.CourseID == courseID {
			q.ConceptTags = copyStrings(q.ConceptTags)
			qs = append(qs, q)
		}
	}
	sort.Slice(qs, func(i, j int) bool { return qs[i].CreatedAt.Before(qs[j].CreatedAt) })
	return qs, nil
}

func (repo *courseRepository) DeleteQuestion(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.questions[id]; !ok {
		return course.ErrQuestionNotFound
	}
	for _, act := range repo.db.activities {
		if act.HasQuestion(id) {
			return course.ErrQuestionInUse
		}
	}
	delete(repo.db.questions, id)
	return nil
}
