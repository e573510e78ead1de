package lifecycle

// GradeCode identifies a grade level as stored on enrollment records.
type GradeCode string

// Supported grade levels, in progression order.
const (
	GradePreK   GradeCode = "prek"
	GradeKinder GradeCode = "kinder"
	Grade1      GradeCode = "grade1"
	Grade2      GradeCode = "grade2"
	Grade3      GradeCode = "grade3"
	Grade4      GradeCode = "grade4"
	Grade5      GradeCode = "grade5"
	Grade6      GradeCode = "grade6"
)

// EducationLevel buckets grades into preschool and elementary.
type EducationLevel string

const (
	LevelPreschool  EducationLevel = "preschool"
	LevelElementary EducationLevel = "elementary"
)

// AgeRange is an inclusive age bracket in whole years.
type AgeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type gradeInfo struct {
	label  string
	level  EducationLevel
	ages   AgeRange
	next   GradeCode
	number int
}

var grades = map[GradeCode]gradeInfo{
	GradePreK:   {label: "Pre-Kinder", level: LevelPreschool, ages: AgeRange{Min: 3, Max: 4}, next: GradeKinder, number: 0},
	GradeKinder: {label: "Kindergarten", level: LevelPreschool, ages: AgeRange{Min: 4, Max: 6}, next: Grade1, number: 0},
	Grade1:      {label: "Grade 1", level: LevelElementary, ages: AgeRange{Min: 5, Max: 8}, next: Grade2, number: 1},
	Grade2:      {label: "Grade 2", level: LevelElementary, ages: AgeRange{Min: 6, Max: 9}, next: Grade3, number: 2},
	Grade3:      {label: "Grade 3", level: LevelElementary, ages: AgeRange{Min: 7, Max: 10}, next: Grade4, number: 3},
	Grade4:      {label: "Grade 4", level: LevelElementary, ages: AgeRange{Min: 8, Max: 11}, next: Grade5, number: 4},
	Grade5:      {label: "Grade 5", level: LevelElementary, ages: AgeRange{Min: 9, Max: 12}, next: Grade6, number: 5},
	Grade6:      {label: "Grade 6", level: LevelElementary, ages: AgeRange{Min: 10, Max: 13}, number: 6},
}

// Grades returns every grade code in progression order.
func Grades() []GradeCode {
	return []GradeCode{GradePreK, GradeKinder, Grade1, Grade2, Grade3, Grade4, Grade5, Grade6}
}

// Valid reports whether the code is a known grade.
func (g GradeCode) Valid() bool {
	_, ok := grades[g]
	return ok
}

// GradeLabel returns the display label for a grade, or the raw code when unknown.
func GradeLabel(g GradeCode) string {
	if info, ok := grades[g]; ok {
		return info.label
	}
	return string(g)
}

// AgeRangeFor returns the inclusive age bracket configured for the grade.
func AgeRangeFor(g GradeCode) (AgeRange, bool) {
	info, ok := grades[g]
	return info.ages, ok
}

// GradeNumber maps a grade to the numeric bucket used by grade items
// (0 for preschool, 1..6 for elementary).
func GradeNumber(g GradeCode) (int, bool) {
	info, ok := grades[g]
	return info.number, ok
}

// NextGrade returns the grade a student is promoted to. Grade 6 has no successor.
func NextGrade(g GradeCode) (GradeCode, bool) {
	info, ok := grades[g]
	if !ok || info.next == "" {
		return "", false
	}
	return info.next, true
}

// EducationLevelFor infers the education level bucket of a grade.
func EducationLevelFor(g GradeCode) (EducationLevel, bool) {
	info, ok := grades[g]
	if !ok {
		return "", false
	}
	return info.level, true
}

// ValidateGradeForLevel checks that a grade belongs to the selected education level.
func ValidateGradeForLevel(level EducationLevel, g GradeCode) Validation {
	actual, ok := EducationLevelFor(g)
	if !ok {
		return Invalid("Unknown grade level: " + string(g) + ".")
	}
	switch level {
	case LevelPreschool:
		if actual != LevelPreschool {
			return Invalid("For Preschool, grade must be Pre-Kinder or Kinder.")
		}
	case LevelElementary:
		if actual != LevelElementary {
			return Invalid("For Elementary, grade must be Grade 1-6.")
		}
	default:
		return Invalid("Unknown education level: " + string(level) + ".")
	}
	return Valid()
}
