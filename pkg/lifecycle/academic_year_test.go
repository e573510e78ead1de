package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAcademicYear(t *testing.T) {
	year, err := ParseAcademicYear("2024-2025")
	require.NoError(t, err)
	assert.Equal(t, AcademicYear{Start: 2024, End: 2025}, year)

	for _, raw := range []string{"", "garbage", "2024-2026", "2024/2025", "24-25", "2025-2024"} {
		_, err := ParseAcademicYear(raw)
		assert.ErrorIs(t, err, ErrInvalidAcademicYear, raw)
	}
}

func TestAcademicYearExpiry(t *testing.T) {
	expiry, ok := AcademicYearExpiry("2024-2025", time.UTC)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, time.March, 31, 23, 59, 59, 0, time.UTC), expiry)

	_, ok = AcademicYearExpiry("garbage", time.UTC)
	assert.False(t, ok)
}

func TestIsEnrollmentExpired(t *testing.T) {
	after := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	atExpiry := time.Date(2025, time.March, 31, 23, 59, 59, 0, time.UTC)

	assert.True(t, IsEnrollmentExpired("2024-2025", StatusActive, after, time.UTC))
	assert.True(t, IsEnrollmentExpired("2024-2025", StatusPending, after, time.UTC))
	assert.False(t, IsEnrollmentExpired("2024-2025", StatusActive, atExpiry, time.UTC))
	assert.False(t, IsEnrollmentExpired("garbage", StatusActive, after, time.UTC))

	far := time.Date(2040, time.January, 1, 0, 0, 0, 0, time.UTC)
	assert.False(t, IsEnrollmentExpired("2024-2025", StatusDropped, far, time.UTC))
	assert.False(t, IsEnrollmentExpired("2024-2025", StatusCompleted, far, time.UTC))
}

func TestAdvanceAcademicYear(t *testing.T) {
	march := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)
	june := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "2025-2026", AdvanceAcademicYear("2024-2025", march))
	assert.Equal(t, "2024-2025", AdvanceAcademicYear("garbage", march))
	assert.Equal(t, "2025-2026", AdvanceAcademicYear("garbage", june))
	assert.Equal(t, "2025-2026", AdvanceAcademicYear("2024-2026", june))
}

func TestCurrentAcademicYearSwitchesInJune(t *testing.T) {
	assert.Equal(t, "2024-2025", CurrentAcademicYear(time.Date(2025, time.May, 31, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025-2026", CurrentAcademicYear(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)))
}
