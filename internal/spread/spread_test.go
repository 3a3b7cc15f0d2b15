package spread

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDaysCardinality(t *testing.T) {
	for quota := 1; quota <= 7; quota++ {
		days := Days(quota)
		assert.Len(t, days, quota, "quota %d", quota)
		for d := range days {
			assert.GreaterOrEqual(t, d, 1)
			assert.LessOrEqual(t, d, 7)
		}
	}
}

func TestDaysDeterministic(t *testing.T) {
	for quota := 0; quota <= 7; quota++ {
		assert.Equal(t, Days(quota), Days(quota), "quota %d", quota)
	}
}

func TestDaysZeroQuota(t *testing.T) {
	assert.Empty(t, Days(0))
	assert.Empty(t, Days(-3))
}

func TestDaysFullWeek(t *testing.T) {
	days := Days(7)
	for d := 1; d <= 7; d++ {
		assert.True(t, days[d], "weekday %d missing", d)
	}
}

func TestDaysOverQuotaClamps(t *testing.T) {
	assert.Len(t, Days(12), 7)
}

func TestDaysKnownSpreads(t *testing.T) {
	// step = 7/quota starting from Monday (=2)
	assert.Equal(t, map[int]bool{2: true}, Days(1))
	assert.Equal(t, map[int]bool{2: true, 6: true}, Days(2))                 // Mon, Fri
	assert.Equal(t, map[int]bool{2: true, 4: true, 7: true}, Days(3))        // Mon, Wed, Sat
	assert.Equal(t, map[int]bool{2: true, 4: true, 6: true, 7: true}, Days(4)) // Mon, Wed, Fri, Sat
}
