package lifecycle

import "time"

// Gate describes what an operator may edit on a record.
type Gate struct {
	Expired              bool `json:"expired"`
	ReadOnly             bool `json:"read_only"`
	AcademicYearEditable bool `json:"academic_year_editable"`
}

// EditGate evaluates edit blocking. A record is read-only when it is expired
// or shown in view mode. The academic year remains editable on an expired
// record so the operator can move it forward and unlock the rest.
func EditGate(status Status, academicYear string, viewOnly bool, now time.Time, loc *time.Location) Gate {
	expired := IsEnrollmentExpired(academicYear, status, now, loc)
	return Gate{
		Expired:              expired,
		ReadOnly:             expired || viewOnly,
		AcademicYearEditable: !viewOnly,
	}
}
