// Package grading computes category averages, weighted quarter grades and
// final grades from a snapshot of grade items, scores and weights.
package grading

import (
	"errors"
	"fmt"
	"math"
	"math/big"
)

// Category groups grade items.
type Category string

const (
	CategoryActivity Category = "ACTIVITY"
	CategoryQuiz     Category = "QUIZ"
	CategoryExam     Category = "EXAM"
)

// Categories lists the itemised categories in display order.
func Categories() []Category {
	return []Category{CategoryActivity, CategoryQuiz, CategoryExam}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryActivity, CategoryQuiz, CategoryExam:
		return true
	}
	return false
}

// Remark is the pass/fail verdict of a grade.
type Remark string

const (
	RemarkPassed Remark = "PASSED"
	RemarkFailed Remark = "FAILED"
	RemarkNone   Remark = ""
)

// PassingGrade is the lowest passing grade.
const PassingGrade = 75.0

// Item is a gradable activity, quiz or exam within one quarter.
type Item struct {
	ID         string
	Category   Category
	TotalScore float64
}

// Weights are the per-subject category weights.
type Weights struct {
	Activity      float64 `json:"activity"`
	Quiz          float64 `json:"quiz"`
	Exam          float64 `json:"exam"`
	ClassStanding float64 `json:"class_standing"`
}

// DefaultWeights returns the 40/20/20/20 split used when a subject has no
// configuration.
func DefaultWeights() Weights {
	return Weights{Activity: 40, Quiz: 20, Exam: 20, ClassStanding: 20}
}

// Errors returned by Weights.Validate.
var (
	ErrNegativeWeight = errors.New("weights must not be negative")
	ErrWeightSum      = errors.New("weights must sum to 100")
)

// Sum adds all four weights.
func (w Weights) Sum() float64 {
	return w.Activity + w.Quiz + w.Exam + w.ClassStanding
}

// Validate enforces the save-time rule: non-negative and summing to 100.
// The calculator itself never requires this.
func (w Weights) Validate() error {
	if w.Activity < 0 || w.Quiz < 0 || w.Exam < 0 || w.ClassStanding < 0 {
		return ErrNegativeWeight
	}
	if math.Abs(w.Sum()-100) > 1e-9 {
		return fmt.Errorf("%w: got %.2f", ErrWeightSum, w.Sum())
	}
	return nil
}

// For returns the weight of an itemised category.
func (w Weights) For(c Category) float64 {
	switch c {
	case CategoryActivity:
		return w.Activity
	case CategoryQuiz:
		return w.Quiz
	case CategoryExam:
		return w.Exam
	}
	return 0
}

// Sheet is the snapshot for one (subject, grade level, quarter).
type Sheet struct {
	Items []Item
	// Scores is keyed by item id, then student id.
	Scores        map[string]map[string]float64
	ClassStanding map[string]float64
	Weights       Weights
}

// Score returns the recorded score of a student on an item.
func (s Sheet) Score(itemID, studentID string) (float64, bool) {
	byStudent, ok := s.Scores[itemID]
	if !ok {
		return 0, false
	}
	v, ok := byStudent[studentID]
	return v, ok
}

// CategoryAverage returns 100*earned/possible over the items of the category
// the student has a score for. Nil means no data: the category has no items
// or none of them is scored for the student.
func CategoryAverage(s Sheet, studentID string, c Category) *float64 {
	var earned, possible float64
	scored := false
	for _, item := range s.Items {
		if item.Category != c {
			continue
		}
		v, ok := s.Score(item.ID, studentID)
		if !ok {
			continue
		}
		scored = true
		earned += v
		possible += item.TotalScore
	}
	if !scored {
		return nil
	}
	if possible <= 0 {
		return ptr(0)
	}
	return ptr(100 * earned / possible)
}

// ClassStandingOf returns the student's class standing, nil when unset.
func ClassStandingOf(s Sheet, studentID string) *float64 {
	v, ok := s.ClassStanding[studentID]
	if !ok {
		return nil
	}
	return ptr(v)
}

// QuarterResult is the per-student breakdown of one quarter.
type QuarterResult struct {
	ActivityAvg   *float64 `json:"activity_avg"`
	QuizAvg       *float64 `json:"quiz_avg"`
	ExamAvg       *float64 `json:"exam_avg"`
	ClassStanding *float64 `json:"class_standing"`
	QuarterGrade  *float64 `json:"quarter_grade"`
	Remark        Remark   `json:"remark,omitempty"`
}

// Breakdown computes every component of a student's quarter.
func Breakdown(s Sheet, studentID string) QuarterResult {
	res := QuarterResult{
		ActivityAvg:   CategoryAverage(s, studentID, CategoryActivity),
		QuizAvg:       CategoryAverage(s, studentID, CategoryQuiz),
		ExamAvg:       CategoryAverage(s, studentID, CategoryExam),
		ClassStanding: ClassStandingOf(s, studentID),
	}
	res.QuarterGrade = weighted(s.Weights, res)
	res.Remark = RemarkFor(res.QuarterGrade)
	return res
}

// QuarterGrade is the weighted mean of the components present for the
// student. Weights are renormalised over those components, so a missing
// category is excluded rather than counted as zero. Nil when nothing is
// present.
func QuarterGrade(s Sheet, studentID string) *float64 {
	return Breakdown(s, studentID).QuarterGrade
}

func weighted(w Weights, r QuarterResult) *float64 {
	pairs := []struct {
		avg    *float64
		weight float64
	}{
		{r.ActivityAvg, w.Activity},
		{r.QuizAvg, w.Quiz},
		{r.ExamAvg, w.Exam},
		{r.ClassStanding, w.ClassStanding},
	}
	var total, weights float64
	for _, p := range pairs {
		if p.avg == nil {
			continue
		}
		total += *p.avg * p.weight
		weights += p.weight
	}
	if weights == 0 {
		return nil
	}
	return ptr(total / weights)
}

// RemarkFor maps a grade to PASSED or FAILED; nil has no remark.
func RemarkFor(grade *float64) Remark {
	if grade == nil {
		return RemarkNone
	}
	if *grade >= PassingGrade {
		return RemarkPassed
	}
	return RemarkFailed
}

// FinalGrade averages the quarters that have a grade. Nil when none do.
func FinalGrade(quarters []*float64) *float64 {
	var sum float64
	n := 0
	for _, q := range quarters {
		if q == nil {
			continue
		}
		sum += *q
		n++
	}
	if n == 0 {
		return nil
	}
	return ptr(sum / float64(n))
}

// Placeholder is shown in place of a missing grade.
const Placeholder = "—"

// Display renders a grade with one decimal, or the placeholder for nil.
// Values exactly halfway between tenths round away from zero, so 82.25
// shows as 82.3; everything else rounds to the nearest tenth.
func Display(v *float64) string {
	if v == nil {
		return Placeholder
	}
	return fmt.Sprintf("%.1f", roundTenths(*v))
}

// roundTenths resolves exact ties on the binary value of v. Non-ties are
// returned unchanged for %.1f to round.
func roundTenths(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	tenths := new(big.Float).SetPrec(128).SetFloat64(v)
	tenths.Mul(tenths, big.NewFloat(10))
	whole, _ := tenths.Int(nil)
	frac := new(big.Float).SetPrec(128).Sub(tenths, new(big.Float).SetInt(whole))
	if frac.Abs(frac).Cmp(big.NewFloat(0.5)) != 0 {
		return v
	}
	w, _ := new(big.Float).SetInt(whole).Float64()
	return (w + math.Copysign(1, v)) / 10
}

func ptr(v float64) *float64 {
	return &v
}
