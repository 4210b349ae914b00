package timeparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday, November 19th 2025. All relative dates resolve against this.
var refNow = time.Date(2025, time.November, 19, 10, 30, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExtractDateAndTime(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantDate   time.Time
		wantTime   string
		wantConstr Constraint
	}{
		{
			name:     "next weekday with spoken hour",
			input:    "next thursday three pm",
			wantDate: date(2025, time.November, 27),
			wantTime: "15:00",
		},
		{
			name:       "bare weekday with numeric deadline",
			input:      "before friday 5pm",
			wantDate:   date(2025, time.November, 21),
			wantTime:   "17:00",
			wantConstr: ConstraintBefore,
		},
		{
			name:     "tomorrow with spoken hour and minutes",
			input:    "I need a haircut tomorrow at five thirty pm",
			wantDate: date(2025, time.November, 20),
			wantTime: "17:30",
		},
		{
			name:     "bare weekday spoken morning hour",
			input:    "friday at ten am",
			wantDate: date(2025, time.November, 21),
			wantTime: "10:00",
		},
		{
			name:     "o'clock without meridiem",
			input:    "next monday eleven o'clock",
			wantDate: date(2025, time.December, 1),
			wantTime: "11:00",
		},
		{
			name:       "by friday spoken hour",
			input:      "by friday five pm",
			wantDate:   date(2025, time.November, 21),
			wantTime:   "17:00",
			wantConstr: ConstraintBy,
		},
		{
			name:       "after bare weekday no time",
			input:      "after monday",
			wantDate:   date(2025, time.November, 24),
			wantConstr: ConstraintAfter,
		},
		{
			name:     "today",
			input:    "I need it today",
			wantDate: date(2025, time.November, 19),
		},
		{
			name:     "this weekend",
			input:    "maybe this weekend",
			wantDate: date(2025, time.November, 22),
		},
		{
			name:     "next weekend",
			input:    "next weekend works",
			wantDate: date(2025, time.November, 29),
		},
		{
			name:     "next week resolves to monday",
			input:    "sometime next week",
			wantDate: date(2025, time.November, 24),
		},
		{
			name:       "end of week",
			input:      "by end of week",
			wantDate:   date(2025, time.November, 21),
			wantConstr: ConstraintBy,
		},
		{
			name:     "noon",
			input:    "tomorrow at 12 pm",
			wantDate: date(2025, time.November, 20),
			wantTime: "12:00",
		},
		{
			name:     "midnight",
			input:    "friday 12 am",
			wantDate: date(2025, time.November, 21),
			wantTime: "00:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.input, refNow)
			require.NotNil(t, got.Date, "expected a date for %q", tt.input)
			assert.Equal(t, tt.wantDate, *got.Date)
			assert.Equal(t, tt.wantTime, got.TimeOfDay)
			assert.Equal(t, tt.wantConstr, got.Constraint)
		})
	}
}

func TestExtractLeavesNonTimeNumbersAlone(t *testing.T) {
	inputs := []string{
		"I need ten dollars",
		"around fifty dollars would be fine",
		"my phone number is five five five",
		"I have three kids",
	}
	for _, input := range inputs {
		got := Extract(input, refNow)
		assert.True(t, got.Empty(), "expected nothing extracted from %q, got %+v", input, got)
	}
}

func TestExtractBudgetAndTimeTogether(t *testing.T) {
	got := Extract("a haircut under fifty dollars next thursday three pm", refNow)
	require.NotNil(t, got.Date)
	assert.Equal(t, date(2025, time.November, 27), *got.Date)
	assert.Equal(t, "15:00", got.TimeOfDay)
	assert.Equal(t, ConstraintNone, got.Constraint)
}

func TestExtractBareTimeWithoutDate(t *testing.T) {
	got := Extract("3 pm would be great", refNow)
	assert.Nil(t, got.Date)
	assert.Equal(t, "15:00", got.TimeOfDay)
}

func TestExtractNeverErrorsOnGarbage(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"qwertyuiop",
		"99 pm",
		"o'clock",
		"before",
		"🎉🎉🎉",
	}
	for _, input := range inputs {
		got := Extract(input, refNow)
		assert.True(t, got.Empty(), "expected empty result for %q", input)
	}
}

func TestExtractIdempotentOnNormalizedOutput(t *testing.T) {
	spoken := Extract("next thursday three pm", refNow)
	numeric := Extract("next thursday 3 pm", refNow)

	require.NotNil(t, spoken.Date)
	require.NotNil(t, numeric.Date)
	assert.Equal(t, *numeric.Date, *spoken.Date)
	assert.Equal(t, numeric.TimeOfDay, spoken.TimeOfDay)
	assert.Equal(t, numeric.Constraint, spoken.Constraint)
}

func TestConstraintRequiresFollowingDateOrTime(t *testing.T) {
	got := Extract("I was here before", refNow)
	assert.Equal(t, ConstraintNone, got.Constraint)
	assert.True(t, got.Empty())
}
