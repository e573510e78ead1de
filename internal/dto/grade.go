package dto

import (
	"time"

	"github.com/noah-isme/ace-school-api/internal/models"
	"github.com/noah-isme/ace-school-api/pkg/grading"
)

// UpdateWeightsRequest is a partial weight update; the merged result must
// sum to 100.
type UpdateWeightsRequest struct {
	Activity      *float64 `json:"activity" validate:"omitempty,gte=0,lte=100"`
	Quiz          *float64 `json:"quiz" validate:"omitempty,gte=0,lte=100"`
	Exam          *float64 `json:"exam" validate:"omitempty,gte=0,lte=100"`
	ClassStanding *float64 `json:"class_standing" validate:"omitempty,gte=0,lte=100"`
}

// CreateGradeItemRequest creates an activity, quiz or exam.
type CreateGradeItemRequest struct {
	SubjectID   string           `json:"subject_id" validate:"required"`
	GradeLevel  *int             `json:"grade_level" validate:"required,min=0,max=6"`
	Quarter     int              `json:"quarter" validate:"required,min=1,max=4"`
	Category    grading.Category `json:"category" validate:"required,oneof=ACTIVITY QUIZ EXAM"`
	Title       string           `json:"title" validate:"required,max=255"`
	Description string           `json:"description" validate:"omitempty,max=2000"`
	DateGiven   *Date            `json:"date_given"`
	DueDate     *Date            `json:"due_date"`
	TotalScore  *float64         `json:"total_score" validate:"omitempty,gt=0"`
	Order       int              `json:"order" validate:"omitempty,min=0"`
}

// UpdateGradeItemRequest edits a grade item.
type UpdateGradeItemRequest struct {
	Quarter     *int              `json:"quarter" validate:"omitempty,min=1,max=4"`
	Category    *grading.Category `json:"category" validate:"omitempty,oneof=ACTIVITY QUIZ EXAM"`
	Title       *string           `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string           `json:"description" validate:"omitempty,max=2000"`
	DateGiven   *Date             `json:"date_given"`
	DueDate     *Date             `json:"due_date"`
	TotalScore  *float64          `json:"total_score" validate:"omitempty,gt=0"`
	Order       *int              `json:"order" validate:"omitempty,min=0"`
}

// UpsertScoreRequest records a student's score on an item.
type UpsertScoreRequest struct {
	StudentID   string   `json:"student_id" validate:"required"`
	GradeItemID string   `json:"grade_item_id" validate:"required"`
	Score       *float64 `json:"score" validate:"required,gte=0"`
}

// UpsertClassStandingRequest records a class standing score.
type UpsertClassStandingRequest struct {
	StudentID string   `json:"student_id" validate:"required"`
	SubjectID string   `json:"subject_id" validate:"required"`
	Quarter   int      `json:"quarter" validate:"required,min=1,max=4"`
	Score     *float64 `json:"score" validate:"required,gte=0,lte=100"`
}

// TeacherInfo describes the caller's teaching assignment.
type TeacherInfo struct {
	UserID   string          `json:"user_id"`
	FullName string          `json:"full_name"`
	Subject  *models.Subject `json:"subject,omitempty"`
}

// GradeStudent is a student row in grade-encoding views.
type GradeStudent struct {
	ID            string `json:"id"`
	StudentNumber string `json:"student_number,omitempty"`
	StudentName   string `json:"student_name"`
	GradeLevel    string `json:"grade_level"`
}

// SheetRow is one student's line on the encoding sheet.
type SheetRow struct {
	GradeStudent
	Scores map[string]*float64 `json:"scores"`
	models.QuarterGrades
}

// GradeSheet is the encoding view for one subject, grade level and quarter.
type GradeSheet struct {
	SubjectID  string             `json:"subject_id"`
	GradeLevel int                `json:"grade_level"`
	Quarter    int                `json:"quarter"`
	Weights    grading.Weights    `json:"weights"`
	Items      []models.GradeItem `json:"items"`
	Rows       []SheetRow         `json:"rows"`
}

// ExportResponse points at a generated report card.
type ExportResponse struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	Filename  string    `json:"filename"`
	Format    string    `json:"format"`
	ExpiresAt time.Time `json:"expires_at"`
}
