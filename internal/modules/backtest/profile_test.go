package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyPosition(t *testing.T) {
	tests := []struct {
		name     string
		fraction float64
		holding  bool
		expected PositionStatus
	}{
		{"flat", 0.5, false, StatusFlat},
		{"winning at threshold", 0.10, true, StatusWinning},
		{"losing at threshold", -0.10, true, StatusLosing},
		{"small gain is neutral", 0.05, true, StatusNeutral},
		{"small loss is neutral", -0.09, true, StatusNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyPosition(tt.fraction, tt.holding))
		})
	}
}

func TestProfileController_Hysteresis(t *testing.T) {
	c := NewProfileController(true)
	assert.Equal(t, ProfileNone, c.Current())

	assert.False(t, c.Observe(StatusWinning))
	assert.False(t, c.Observe(StatusWinning))
	assert.Equal(t, 2, c.Counter())

	// one opposite day resets the count to one
	assert.False(t, c.Observe(StatusLosing))
	assert.Equal(t, 1, c.Counter())
	assert.False(t, c.Observe(StatusLosing))
	assert.Equal(t, ProfileNone, c.Current())

	assert.True(t, c.Observe(StatusLosing))
	assert.Equal(t, ProfileConservative, c.Current())
	assert.Equal(t, 0, c.Counter())
	assert.Equal(t, 1, c.Switches())

	// staying in the same regime does not switch again
	for i := 0; i < 5; i++ {
		assert.False(t, c.Observe(StatusLosing))
	}
	assert.Equal(t, 1, c.Switches())
}

func TestProfileController_NeutralNeverSwitches(t *testing.T) {
	c := NewProfileController(true)
	for i := 0; i < 10; i++ {
		assert.False(t, c.Observe(StatusNeutral))
		assert.False(t, c.Observe(StatusFlat))
	}
	assert.Equal(t, ProfileNone, c.Current())
}

func TestProfileController_InterruptedStreak(t *testing.T) {
	c := NewProfileController(true)
	sequence := []PositionStatus{
		StatusWinning, StatusWinning, StatusNeutral,
		StatusWinning, StatusWinning,
	}
	for _, s := range sequence {
		assert.False(t, c.Observe(s))
	}
	assert.True(t, c.Observe(StatusWinning))
	assert.Equal(t, ProfileAggressive, c.Current())
}

func TestProfileController_Disabled(t *testing.T) {
	c := NewProfileController(false)
	for i := 0; i < 5; i++ {
		assert.False(t, c.Observe(StatusLosing))
	}
	assert.Equal(t, ProfileNone, c.Current())
	assert.Equal(t, 0, c.Switches())
}
