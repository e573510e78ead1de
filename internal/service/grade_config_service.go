package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/ace-school-api/internal/dto"
	"github.com/noah-isme/ace-school-api/internal/models"
	appErrors "github.com/noah-isme/ace-school-api/pkg/errors"
	"github.com/noah-isme/ace-school-api/pkg/grading"
)

// TeacherInfo returns the caller's account with the subject assigned to it.
func (s *GradeService) TeacherInfo(ctx context.Context, caller Caller) (*dto.TeacherInfo, error) {
	user, err := s.users.FindByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	info := &dto.TeacherInfo{UserID: user.ID, FullName: user.FullName}
	if user.SubjectID == nil {
		return info, nil
	}
	subject, err := s.subjects.FindByID(ctx, *user.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("teacher assigned to missing subject", zap.String("user_id", user.ID), zap.String("subject_id", *user.SubjectID))
			return info, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	info.Subject = subject
	return info, nil
}

// Weights returns a subject's weights, storing the defaults on first use.
func (s *GradeService) Weights(ctx context.Context, subjectID string) (*models.GradeWeight, error) {
	weight, err := s.weights.FindWeights(ctx, subjectID)
	if err == nil {
		return weight, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load weights")
	}
	if _, err := s.subjects.FindByID(ctx, subjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	weight = weightRow(subjectID, grading.DefaultWeights())
	if err := s.weights.UpsertWeights(ctx, weight); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store default weights")
	}
	return weight, nil
}

// UpdateWeights applies a partial weight change. The merged weights must be
// non-negative and sum to 100.
func (s *GradeService) UpdateWeights(ctx context.Context, caller Caller, subjectID string, req dto.UpdateWeightsRequest) (*models.GradeWeight, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid weights payload")
	}
	if err := s.authorizeSubject(ctx, caller, subjectID); err != nil {
		return nil, err
	}
	current, err := s.Weights(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	merged := current.Weights()
	if req.Activity != nil {
		merged.Activity = *req.Activity
	}
	if req.Quiz != nil {
		merged.Quiz = *req.Quiz
	}
	if req.Exam != nil {
		merged.Exam = *req.Exam
	}
	if req.ClassStanding != nil {
		merged.ClassStanding = *req.ClassStanding
	}
	if err := merged.Validate(); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidWeights, err.Error())
	}

	weight := weightRow(subjectID, merged)
	if err := s.weights.UpsertWeights(ctx, weight); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save weights")
	}
	_ = s.cache.Invalidate(ctx, gradesSubjectPattern(subjectID))
	s.logger.Info("grade weights updated", zap.String("subject_id", subjectID), zap.String("user_id", caller.UserID))
	return weight, nil
}

// currentWeights reads the configured weights without persisting defaults.
func (s *GradeService) currentWeights(ctx context.Context, subjectID string) (grading.Weights, error) {
	weight, err := s.weights.FindWeights(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return grading.DefaultWeights(), nil
		}
		return grading.Weights{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load weights")
	}
	return weight.Weights(), nil
}

func weightRow(subjectID string, w grading.Weights) *models.GradeWeight {
	return &models.GradeWeight{
		SubjectID:     subjectID,
		Activity:      w.Activity,
		Quiz:          w.Quiz,
		Exam:          w.Exam,
		ClassStanding: w.ClassStanding,
	}
}
