package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinorUnits(t *testing.T) {
	assert.EqualValues(t, 150050, MinorUnits(1500.50))
	assert.EqualValues(t, 200, MinorUnits(2))
	assert.EqualValues(t, 1, MinorUnits(0.01))
	assert.EqualValues(t, 0, MinorUnits(0))
	// Half-up on sub-cent fractions, never truncation.
	assert.EqualValues(t, 101, MinorUnits(1.009))
}

func TestWholeUnits(t *testing.T) {
	assert.EqualValues(t, 1501, WholeUnits(1500.5))
	assert.EqualValues(t, 1500, WholeUnits(1500.49))
	assert.EqualValues(t, 100, WholeUnits(100))
}
