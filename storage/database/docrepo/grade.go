package docrepo

import (
	"context"

	"github.com/pkg/errors"

	"github.com/sistemaeducativo/gradebook/core"
	"github.com/sistemaeducativo/gradebook/core/grade"
)

const (
	enrollmentsCollection = "inscripciones"
	subjectsCollection    = "materias"
	sheetsCollection      = "calificaciones"
)

type gradeRepository struct {
	store core.DocumentStore
}

var _ grade.Repository = (*gradeRepository)(nil)

func NewGradeRepository(store core.DocumentStore) grade.Repository {
	return &gradeRepository{store: store}
}

func (repo *gradeRepository) QueryEnrollments(ctx context.Context, subjectID, group string) ([]grade.Enrollment, error) {
	docs, err := repo.store.QueryDocuments(ctx, enrollmentsCollection,
		core.Where("materiaId", subjectID),
		core.Where("grupo", group),
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}

	enrollments := make([]grade.Enrollment, 0, len(docs))
	for _, doc := range docs {
		var e grade.Enrollment
		if err = doc.Decode(&e); err != nil {
			return nil, errors.Wrapf(err, "decoding enrollment %s", doc.ID)
		}
		e.ID = doc.ID
		enrollments = append(enrollments, e)
	}
	return enrollments, nil
}

func (repo *gradeRepository) CreateEnrollment(ctx context.Context, e grade.Enrollment) (grade.Enrollment, error) {
	if err := repo.store.SetDocument(ctx, enrollmentsCollection, e.ID, e); err != nil {
		return grade.Enrollment{}, errors.Wrap(err, "creating enrollment")
	}
	return e, nil
}

func (repo *gradeRepository) GetSubject(ctx context.Context, id string) (grade.Subject, error) {
	doc, err := repo.store.GetDocument(ctx, subjectsCollection, id)
	if err != nil {
		if errors.Cause(err) == core.ErrDocumentNotFound {
			return grade.Subject{}, grade.ErrSubjectNotFound
		}
		return grade.Subject{}, errors.Wrap(err, "getting subject")
	}
	var s grade.Subject
	if err = doc.Decode(&s); err != nil {
		return grade.Subject{}, errors.Wrapf(err, "decoding subject %s", id)
	}
	s.ID = doc.ID
	return s, nil
}

func (repo *gradeRepository) SaveSubject(ctx context.Context, s grade.Subject) (grade.Subject, error) {
	if err := repo.store.SetDocument(ctx, subjectsCollection, s.ID, s); err != nil {
		return grade.Subject{}, errors.Wrap(err, "saving subject")
	}
	return s, nil
}

func (repo *gradeRepository) GetScoreSheet(ctx context.Context, key string) (grade.ScoreSheet, error) {
	doc, err := repo.store.GetDocument(ctx, sheetsCollection, key)
	if err != nil {
		if errors.Cause(err) == core.ErrDocumentNotFound {
			return grade.ScoreSheet{}, grade.ErrSheetNotFound
		}
		return grade.ScoreSheet{}, errors.Wrap(err, "getting score sheet")
	}
	var sheet grade.ScoreSheet
	if err = doc.Decode(&sheet); err != nil {
		return grade.ScoreSheet{}, errors.Wrapf(err, "decoding score sheet %s", key)
	}
	return sheet, nil
}

func (repo *gradeRepository) SaveScoreSheet(ctx context.Context, key string, sheet grade.ScoreSheet) error {
	if err := repo.store.SetDocument(ctx, sheetsCollection, key, sheet); err != nil {
		return errors.Wrap(err, "saving score sheet")
	}
	return nil
}
