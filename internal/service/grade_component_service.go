package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/ace-school-api/internal/dto"
	"github.com/noah-isme/ace-school-api/internal/models"
	appErrors "github.com/noah-isme/ace-school-api/pkg/errors"
)

const defaultTotalScore = 100

// ListItems returns grade items matching the filter.
func (s *GradeService) ListItems(ctx context.Context, filter models.GradeItemFilter) ([]models.GradeItem, error) {
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "category must be ACTIVITY, QUIZ or EXAM")
	}
	items, err := s.items.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grade items")
	}
	return items, nil
}

// GetItem returns a grade item.
func (s *GradeService) GetItem(ctx context.Context, id string) (*models.GradeItem, error) {
	return s.loadItem(ctx, id)
}

// CreateItem adds an activity, quiz or exam owned by the caller.
func (s *GradeService) CreateItem(ctx context.Context, caller Caller, req dto.CreateGradeItemRequest) (*models.GradeItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade item payload")
	}
	if err := s.authorizeSubject(ctx, caller, req.SubjectID); err != nil {
		return nil, err
	}

	item := &models.GradeItem{
		SubjectID:   req.SubjectID,
		GradeLevel:  *req.GradeLevel,
		Quarter:     req.Quarter,
		Category:    req.Category,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		DateGiven:   req.DateGiven.Ptr(),
		DueDate:     req.DueDate.Ptr(),
		TotalScore:  defaultTotalScore,
		Order:       req.Order,
	}
	if req.TotalScore != nil {
		item.TotalScore = *req.TotalScore
	}
	if caller.UserID != "" {
		teacherID := caller.UserID
		item.TeacherID = &teacherID
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create grade item")
	}
	_ = s.cache.Invalidate(ctx, gradesSubjectPattern(item.SubjectID))
	return item, nil
}

// UpdateItem edits a grade item. The total score cannot drop below a score
// already recorded on the item.
func (s *GradeService) UpdateItem(ctx context.Context, caller Caller, id string, req dto.UpdateGradeItemRequest) (*models.GradeItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade item payload")
	}
	item, err := s.loadItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeSubject(ctx, caller, item.SubjectID); err != nil {
		return nil, err
	}

	if req.TotalScore != nil && *req.TotalScore < item.TotalScore {
		highest, err := s.items.MaxScoreOf(ctx, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check recorded scores")
		}
		if *req.TotalScore < highest {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("Total score cannot be lower than a recorded score of %g.", highest))
		}
	}

	if req.Quarter != nil {
		item.Quarter = *req.Quarter
	}
	if req.Category != nil {
		item.Category = *req.Category
	}
	if req.Title != nil {
		item.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		item.Description = strings.TrimSpace(*req.Description)
	}
	if req.DateGiven != nil {
		item.DateGiven = req.DateGiven.Ptr()
	}
	if req.DueDate != nil {
		item.DueDate = req.DueDate.Ptr()
	}
	if req.TotalScore != nil {
		item.TotalScore = *req.TotalScore
	}
	if req.Order != nil {
		item.Order = *req.Order
	}

	if err := s.items.Update(ctx, item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grade item")
	}
	_ = s.cache.Invalidate(ctx, gradesSubjectPattern(item.SubjectID))
	return item, nil
}

// DeleteItem removes a grade item together with its scores.
func (s *GradeService) DeleteItem(ctx context.Context, caller Caller, id string) error {
	item, err := s.loadItem(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeSubject(ctx, caller, item.SubjectID); err != nil {
		return err
	}
	if err := s.items.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "grade item not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete grade item")
	}
	_ = s.cache.Invalidate(ctx, gradesSubjectPattern(item.SubjectID))
	s.logger.Info("grade item deleted", zap.String("grade_item_id", id), zap.String("user_id", caller.UserID))
	return nil
}

func (s *GradeService) loadItem(ctx context.Context, id string) (*models.GradeItem, error) {
	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade item")
	}
	return item, nil
}
