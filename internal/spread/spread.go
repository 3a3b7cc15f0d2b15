// Package spread distributes a weekly quota of reminders evenly across the
// seven weekdays.
package spread

import "math"

// canonicalWeek is the Monday-first week ordering used for spreading.
// Weekday numbers follow the 1=Sunday ... 7=Saturday convention.
var canonicalWeek = [7]int{2, 3, 4, 5, 6, 7, 1}

// Days returns the set of weekday numbers a quota of N weekly occurrences
// should land on, spaced as evenly as possible starting from Monday. The
// result always holds min(quota, 7) distinct weekdays; rounding collisions
// fall forward to the next free slot in canonical week order.
func Days(quota int) map[int]bool {
	days := make(map[int]bool)
	if quota <= 0 {
		return days
	}
	if quota > len(canonicalWeek) {
		quota = len(canonicalWeek)
	}

	taken := [7]bool{}
	step := float64(len(canonicalWeek)) / float64(quota)
	for i := 0; i < quota; i++ {
		idx := int(math.Round(float64(i)*step)) % len(canonicalWeek)
		for taken[idx] {
			idx = (idx + 1) % len(canonicalWeek)
		}
		taken[idx] = true
		days[canonicalWeek[idx]] = true
	}
	return days
}
