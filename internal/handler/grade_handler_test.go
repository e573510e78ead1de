package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ace-school-api/internal/dto"
	"github.com/noah-isme/ace-school-api/internal/models"
	"github.com/noah-isme/ace-school-api/internal/service"
	appErrors "github.com/noah-isme/ace-school-api/pkg/errors"
	"github.com/noah-isme/ace-school-api/pkg/grading"
)

type fakeGradeSrv struct {
	caller      service.Caller
	scoreFilter models.ScoreFilter
	itemFilter  models.GradeItemFilter
	standFilter models.ClassStandingFilter
	scoreReq    dto.UpsertScoreRequest
	standingReq dto.UpsertClassStandingRequest
	weightsReq  dto.UpdateWeightsRequest
	itemReq     dto.CreateGradeItemRequest
	itemUpdate  dto.UpdateGradeItemRequest
	deletedItem string
	gradeLevel  int
	sheetArgs   []interface{}
	computeArgs [2]string
	upsertErr   error
	computeErr  error
}

func (f *fakeGradeSrv) TeacherInfo(_ context.Context, caller service.Caller) (*dto.TeacherInfo, error) {
	f.caller = caller
	return &dto.TeacherInfo{UserID: caller.UserID, Subject: &models.Subject{ID: "math", Name: "Mathematics"}}, nil
}

func (f *fakeGradeSrv) Weights(_ context.Context, subjectID string) (*models.GradeWeight, error) {
	return &models.GradeWeight{SubjectID: subjectID, Activity: 40, Quiz: 20, Exam: 20, ClassStanding: 20}, nil
}

func (f *fakeGradeSrv) UpdateWeights(_ context.Context, caller service.Caller, subjectID string, req dto.UpdateWeightsRequest) (*models.GradeWeight, error) {
	f.caller = caller
	f.weightsReq = req
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	return &models.GradeWeight{SubjectID: subjectID, Activity: 40, Quiz: 20, Exam: 20, ClassStanding: 20}, nil
}

func (f *fakeGradeSrv) ListItems(_ context.Context, filter models.GradeItemFilter) ([]models.GradeItem, error) {
	f.itemFilter = filter
	return []models.GradeItem{{ID: "i1", Title: "Quiz 1"}}, nil
}

func (f *fakeGradeSrv) GetItem(_ context.Context, id string) (*models.GradeItem, error) {
	if id == "missing" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "grade item not found")
	}
	return &models.GradeItem{ID: id}, nil
}

func (f *fakeGradeSrv) CreateItem(_ context.Context, caller service.Caller, req dto.CreateGradeItemRequest) (*models.GradeItem, error) {
	f.caller = caller
	f.itemReq = req
	return &models.GradeItem{ID: "i-new", Title: req.Title}, nil
}

func (f *fakeGradeSrv) UpdateItem(_ context.Context, caller service.Caller, id string, req dto.UpdateGradeItemRequest) (*models.GradeItem, error) {
	f.caller = caller
	f.itemUpdate = req
	return &models.GradeItem{ID: id}, nil
}

func (f *fakeGradeSrv) DeleteItem(_ context.Context, caller service.Caller, id string) error {
	f.caller = caller
	f.deletedItem = id
	return nil
}

func (f *fakeGradeSrv) ListScores(_ context.Context, filter models.ScoreFilter) ([]models.Score, error) {
	f.scoreFilter = filter
	return []models.Score{}, nil
}

func (f *fakeGradeSrv) UpsertScore(_ context.Context, caller service.Caller, req dto.UpsertScoreRequest) (*models.Score, error) {
	f.caller = caller
	f.scoreReq = req
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	return &models.Score{StudentID: req.StudentID, GradeItemID: req.GradeItemID, Score: *req.Score}, nil
}

func (f *fakeGradeSrv) ListClassStandings(_ context.Context, filter models.ClassStandingFilter) ([]models.ClassStanding, error) {
	f.standFilter = filter
	return []models.ClassStanding{}, nil
}

func (f *fakeGradeSrv) UpsertClassStanding(_ context.Context, caller service.Caller, req dto.UpsertClassStandingRequest) (*models.ClassStanding, error) {
	f.caller = caller
	f.standingReq = req
	return &models.ClassStanding{StudentID: req.StudentID, Quarter: req.Quarter}, nil
}

func (f *fakeGradeSrv) StudentsByGrade(_ context.Context, gradeLevel int) ([]dto.GradeStudent, error) {
	f.gradeLevel = gradeLevel
	return []dto.GradeStudent{{ID: "s1", StudentName: "Juan Dela Cruz"}}, nil
}

func (f *fakeGradeSrv) Sheet(_ context.Context, subjectID string, gradeLevel, quarter int) (*dto.GradeSheet, error) {
	f.sheetArgs = []interface{}{subjectID, gradeLevel, quarter}
	return &dto.GradeSheet{SubjectID: subjectID, GradeLevel: gradeLevel, Quarter: quarter}, nil
}

func (f *fakeGradeSrv) Compute(_ context.Context, caller service.Caller, studentID, subjectID string) (*models.SubjectGrades, error) {
	f.caller = caller
	f.computeArgs = [2]string{studentID, subjectID}
	if f.computeErr != nil {
		return nil, f.computeErr
	}
	final := 83.125
	return &models.SubjectGrades{StudentID: studentID, SubjectID: subjectID, FinalGrade: &final, FinalDisplay: "83.1", Remark: grading.RemarkPassed}, nil
}

func (f *fakeGradeSrv) MyGrades(_ context.Context, caller service.Caller) ([]models.ReportCard, error) {
	f.caller = caller
	return []models.ReportCard{{StudentID: "s1", StudentName: "Juan Dela Cruz"}}, nil
}

func gradeRouter(srv *fakeGradeSrv, claims *models.JWTClaims) *gin.Engine {
	h := NewGradeHandler(srv)
	r := newTestRouter(claims)
	g := r.Group("/grades")
	g.GET("/teacher-info", h.TeacherInfo)
	g.GET("/weights/:subjectId", h.Weights)
	g.PUT("/weights/:subjectId", h.UpdateWeights)
	g.GET("/items", h.ListItems)
	g.POST("/items", h.CreateItem)
	g.GET("/items/:id", h.GetItem)
	g.PUT("/items/:id", h.UpdateItem)
	g.DELETE("/items/:id", h.DeleteItem)
	g.GET("/scores", h.ListScores)
	g.POST("/scores", h.UpsertScore)
	g.GET("/class-standing", h.ListClassStandings)
	g.POST("/class-standing", h.UpsertClassStanding)
	g.GET("/students/:gradeLevel", h.StudentsByGrade)
	g.GET("/sheet", h.Sheet)
	g.GET("/compute/:studentId/:subjectId", h.Compute)
	g.GET("/my-grades", h.MyGrades)
	return r
}

func TestGradeHandlerTeacherInfoUsesCaller(t *testing.T) {
	srv := &fakeGradeSrv{}
	rec, env := perform(t, gradeRouter(srv, teacherClaims()), http.MethodGet, "/grades/teacher-info", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.Caller{UserID: "t-math", Role: models.RoleTeacher}, srv.caller)
	var info dto.TeacherInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	require.NotNil(t, info.Subject)
	assert.Equal(t, "math", info.Subject.ID)
}

func TestGradeHandlerWritesRequireClaims(t *testing.T) {
	srv := &fakeGradeSrv{}
	r := gradeRouter(srv, nil)

	rec, _ := perform(t, r, http.MethodPost, "/grades/scores", map[string]interface{}{"student_id": "s1", "grade_item_id": "i1", "score": 5})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = perform(t, r, http.MethodDelete, "/grades/items/i1", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, srv.deletedItem)
}

func TestGradeHandlerListScoresFilters(t *testing.T) {
	srv := &fakeGradeSrv{}
	rec, _ := perform(t, gradeRouter(srv, teacherClaims()), http.MethodGet,
		"/grades/scores?grade_item=i1&student=s1&subject=math&grade_level=0&quarter=2", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "i1", srv.scoreFilter.GradeItemID)
	assert.Equal(t, "s1", srv.scoreFilter.StudentID)
	assert.Equal(t, "math", srv.scoreFilter.SubjectID)
	require.NotNil(t, srv.scoreFilter.GradeLevel)
	assert.Equal(t, 0, *srv.scoreFilter.GradeLevel)
	require.NotNil(t, srv.scoreFilter.Quarter)
	assert.Equal(t, 2, *srv.scoreFilter.Quarter)
}

func TestGradeHandlerRejectsNonNumericQuery(t *testing.T) {
	r := gradeRouter(&fakeGradeSrv{}, teacherClaims())

	rec, env := perform(t, r, http.MethodGet, "/grades/scores?quarter=first", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "quarter must be a number", env.Error.Message)

	rec, _ = perform(t, r, http.MethodGet, "/grades/items?grade_level=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = perform(t, r, http.MethodGet, "/grades/students/six", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGradeHandlerUpsertScore(t *testing.T) {
	srv := &fakeGradeSrv{}
	rec, env := perform(t, gradeRouter(srv, teacherClaims()), http.MethodPost, "/grades/scores",
		map[string]interface{}{"student_id": "s1", "grade_item_id": "i1", "score": 18.5})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t-math", srv.caller.UserID)
	require.NotNil(t, srv.scoreReq.Score)
	assert.Equal(t, 18.5, *srv.scoreReq.Score)
	var score models.Score
	require.NoError(t, json.Unmarshal(env.Data, &score))
	assert.Equal(t, 18.5, score.Score)
}

func TestGradeHandlerUpsertScoreOutOfRange(t *testing.T) {
	srv := &fakeGradeSrv{upsertErr: appErrors.Clone(appErrors.ErrValidation, "Score must be between 0 and 20.")}
	rec, env := perform(t, gradeRouter(srv, teacherClaims()), http.MethodPost, "/grades/scores",
		map[string]interface{}{"student_id": "s1", "grade_item_id": "i1", "score": 25})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "Score must be between 0 and 20.", env.Error.Message)
}

func TestGradeHandlerClassStanding(t *testing.T) {
	srv := &fakeGradeSrv{}
	r := gradeRouter(srv, teacherClaims())

	rec, _ := perform(t, r, http.MethodGet, "/grades/class-standing?subject=math&quarter=3&student=s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "math", srv.standFilter.SubjectID)
	require.NotNil(t, srv.standFilter.Quarter)
	assert.Equal(t, 3, *srv.standFilter.Quarter)

	rec, _ = perform(t, r, http.MethodPost, "/grades/class-standing",
		map[string]interface{}{"student_id": "s1", "subject_id": "math", "quarter": 1, "score": 90})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, srv.standingReq.Quarter)
}

func TestGradeHandlerWeights(t *testing.T) {
	srv := &fakeGradeSrv{}
	r := gradeRouter(srv, teacherClaims())

	rec, env := perform(t, r, http.MethodGet, "/grades/weights/math", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var weight models.GradeWeight
	require.NoError(t, json.Unmarshal(env.Data, &weight))
	assert.Equal(t, "math", weight.SubjectID)

	rec, _ = perform(t, r, http.MethodPut, "/grades/weights/math", map[string]interface{}{"activity": 30, "quiz": 30})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, srv.weightsReq.Activity)
	assert.Equal(t, 30.0, *srv.weightsReq.Activity)
	assert.Nil(t, srv.weightsReq.Exam)

	srv.upsertErr = appErrors.Clone(appErrors.ErrInvalidWeights, "Weights must add up to 100%.")
	rec, env = perform(t, r, http.MethodPut, "/grades/weights/math", map[string]interface{}{"activity": 90})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrInvalidWeights.Code, env.Error.Code)
}

func TestGradeHandlerItems(t *testing.T) {
	srv := &fakeGradeSrv{}
	r := gradeRouter(srv, teacherClaims())

	rec, _ := perform(t, r, http.MethodGet, "/grades/items?subject=math&grade_level=1&quarter=1&category=quiz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, grading.CategoryQuiz, srv.itemFilter.Category)
	assert.Equal(t, "math", srv.itemFilter.SubjectID)

	rec, _ = perform(t, r, http.MethodPost, "/grades/items", map[string]interface{}{
		"subject_id": "math", "grade_level": 1, "quarter": 1, "category": "QUIZ", "title": "Quiz 1", "total_score": 20,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Quiz 1", srv.itemReq.Title)
	require.NotNil(t, srv.itemReq.GradeLevel)
	assert.Equal(t, 1, *srv.itemReq.GradeLevel)

	rec, _ = perform(t, r, http.MethodPut, "/grades/items/i1", map[string]interface{}{"title": "Quiz 1A"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, srv.itemUpdate.Title)
	assert.Equal(t, "Quiz 1A", *srv.itemUpdate.Title)

	rec, _ = perform(t, r, http.MethodGet, "/grades/items/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = perform(t, r, http.MethodDelete, "/grades/items/i1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "i1", srv.deletedItem)
}

func TestGradeHandlerStudentsAndSheet(t *testing.T) {
	srv := &fakeGradeSrv{}
	r := gradeRouter(srv, teacherClaims())

	rec, _ := perform(t, r, http.MethodGet, "/grades/students/3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, srv.gradeLevel)

	rec, _ = perform(t, r, http.MethodGet, "/grades/sheet?subject=math&grade_level=1&quarter=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{"math", 1, 2}, srv.sheetArgs)

	rec, env := perform(t, r, http.MethodGet, "/grades/sheet?subject=math&quarter=2", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "grade_level is required", env.Error.Message)

	rec, _ = perform(t, r, http.MethodGet, "/grades/sheet?grade_level=1&quarter=2", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGradeHandlerCompute(t *testing.T) {
	srv := &fakeGradeSrv{}
	r := gradeRouter(srv, parentClaims())

	rec, env := perform(t, r, http.MethodGet, "/grades/compute/s1/math", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, [2]string{"s1", "math"}, srv.computeArgs)
	assert.Equal(t, models.RoleParentStudent, srv.caller.Role)
	var grades models.SubjectGrades
	require.NoError(t, json.Unmarshal(env.Data, &grades))
	assert.Equal(t, "83.1", grades.FinalDisplay)

	srv.computeErr = appErrors.Clone(appErrors.ErrForbidden, "You can only view your own grades.")
	rec, _ = perform(t, r, http.MethodGet, "/grades/compute/s2/math", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGradeHandlerMyGrades(t *testing.T) {
	srv := &fakeGradeSrv{}
	rec, env := perform(t, gradeRouter(srv, parentClaims()), http.MethodGet, "/grades/my-grades", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p1", srv.caller.UserID)
	var cards []models.ReportCard
	require.NoError(t, json.Unmarshal(env.Data, &cards))
	require.Len(t, cards, 1)
	assert.Equal(t, "s1", cards[0].StudentID)
}
