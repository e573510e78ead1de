package models

import (
	"time"

	"github.com/noah-isme/ace-school-api/pkg/grading"
)

// GradeWeight is the per-subject weight configuration.
type GradeWeight struct {
	SubjectID     string    `db:"subject_id" json:"subject_id"`
	Activity      float64   `db:"activity" json:"activity"`
	Quiz          float64   `db:"quiz" json:"quiz"`
	Exam          float64   `db:"exam" json:"exam"`
	ClassStanding float64   `db:"class_standing" json:"class_standing"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Weights converts the row into calculator weights.
func (w GradeWeight) Weights() grading.Weights {
	return grading.Weights{Activity: w.Activity, Quiz: w.Quiz, Exam: w.Exam, ClassStanding: w.ClassStanding}
}

// GradeItem is an activity, quiz or exam for a subject, grade level and quarter.
type GradeItem struct {
	ID          string           `db:"id" json:"id"`
	SubjectID   string           `db:"subject_id" json:"subject_id"`
	TeacherID   *string          `db:"teacher_id" json:"teacher_id,omitempty"`
	GradeLevel  int              `db:"grade_level" json:"grade_level"`
	Quarter     int              `db:"quarter" json:"quarter"`
	Category    grading.Category `db:"category" json:"category"`
	Title       string           `db:"title" json:"title"`
	Description string           `db:"description" json:"description"`
	DateGiven   *time.Time       `db:"date_given" json:"date_given,omitempty"`
	DueDate     *time.Time       `db:"due_date" json:"due_date,omitempty"`
	TotalScore  float64          `db:"total_score" json:"total_score"`
	Order       int              `db:"item_order" json:"order"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// GradeItemFilter scopes grade item listings.
type GradeItemFilter struct {
	SubjectID  string
	GradeLevel *int
	Quarter    *int
	Category   grading.Category
}

// Score is a student's result on a grade item.
type Score struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	GradeItemID string    `db:"grade_item_id" json:"grade_item_id"`
	Score       float64   `db:"score" json:"score"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ScoreFilter scopes score listings. Subject, grade level and quarter filter
// through the joined grade item.
type ScoreFilter struct {
	GradeItemID string
	StudentID   string
	SubjectID   string
	GradeLevel  *int
	Quarter     *int
}

// ClassStanding is the holistic 0-100 teacher score per student, subject and quarter.
type ClassStanding struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	Quarter   int       `db:"quarter" json:"quarter"`
	Score     float64   `db:"score" json:"score"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClassStandingFilter scopes class standing listings.
type ClassStandingFilter struct {
	SubjectID string
	StudentID string
	Quarter   *int
}

// QuarterGrades is one quarter of a computed subject grade.
type QuarterGrades struct {
	grading.QuarterResult
	Display string `json:"display"`
}

// SubjectGrades is the computed grade of one student in one subject.
type SubjectGrades struct {
	StudentID    string         `json:"student_id"`
	SubjectID    string         `json:"subject_id"`
	SubjectName  string         `json:"subject_name,omitempty"`
	Q1           QuarterGrades  `json:"q1"`
	Q2           QuarterGrades  `json:"q2"`
	Q3           QuarterGrades  `json:"q3"`
	Q4           QuarterGrades  `json:"q4"`
	FinalGrade   *float64       `json:"final_grade"`
	FinalDisplay string         `json:"final_display"`
	Remark       grading.Remark `json:"remark,omitempty"`
}

// Quarters returns the four quarters in order.
func (s *SubjectGrades) Quarters() []QuarterGrades {
	return []QuarterGrades{s.Q1, s.Q2, s.Q3, s.Q4}
}

// ReportCard lists a student's grades across all subjects.
type ReportCard struct {
	StudentID      string          `json:"student_id"`
	StudentName    string          `json:"student_name"`
	StudentNumber  string          `json:"student_number,omitempty"`
	GradeLevel     string          `json:"grade_level"`
	AcademicYear   string          `json:"academic_year"`
	Subjects       []SubjectGrades `json:"subjects"`
	GeneralAverage *float64        `json:"general_average"`
	AverageDisplay string          `json:"general_average_display"`
}
