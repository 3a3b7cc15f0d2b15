// Package catalog holds the habit definitions users can pick from.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"lockin-monolith/internal/core"
)

// Catalog is the loaded set of habits, indexed by ID
type Catalog struct {
	habits map[string]core.Habit
	order  []string
}

// Load reads habits from a YAML file at path, or returns the built-in set
// when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return fromHabits(builtinHabits()), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var doc struct {
		Habits []core.Habit `yaml:"habits"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}
	if len(doc.Habits) == 0 {
		return nil, fmt.Errorf("catalog file %s contains no habits", path)
	}

	for i, h := range doc.Habits {
		if h.ID == "" {
			return nil, fmt.Errorf("catalog habit at index %d has no id", i)
		}
	}

	return fromHabits(doc.Habits), nil
}

func fromHabits(habits []core.Habit) *Catalog {
	c := &Catalog{habits: make(map[string]core.Habit, len(habits))}
	for _, h := range habits {
		if _, ok := c.habits[h.ID]; ok {
			continue
		}
		c.habits[h.ID] = h
		c.order = append(c.order, h.ID)
	}
	return c
}

// Get returns the habit with the given ID
func (c *Catalog) Get(id string) (core.Habit, bool) {
	h, ok := c.habits[id]
	return h, ok
}

// All returns every habit in catalog order
func (c *Catalog) All() []core.Habit {
	habits := make([]core.Habit, 0, len(c.order))
	for _, id := range c.order {
		habits = append(habits, c.habits[id])
	}
	return habits
}

// AuraValue returns the points a completion of habitID earns. Unknown habits
// earn the flat default so a stale client can never zero out a completion.
func (c *Catalog) AuraValue(habitID string) int {
	if h, ok := c.habits[habitID]; ok {
		return h.AuraValue()
	}
	return core.DefaultAura
}

func builtinHabits() []core.Habit {
	return []core.Habit{
		{ID: "morning-meditation", Title: "Morning meditation", Category: core.CategoryMindfulness, Difficulty: 2, DayIndex: 1, IsActive: true},
		{ID: "daily-walk", Title: "30 minute walk", Category: core.CategoryFitness, Difficulty: 2, DayIndex: 2, IsActive: true},
		{ID: "strength-training", Title: "Strength training", Category: core.CategoryFitness, Difficulty: 4, DayIndex: 3, IsActive: true},
		{ID: "read-20-pages", Title: "Read 20 pages", Category: core.CategoryLearning, Difficulty: 2, DayIndex: 4, IsActive: true},
		{ID: "language-practice", Title: "Language practice", Category: core.CategoryLearning, Difficulty: 3, DayIndex: 5, IsActive: true},
		{ID: "sketch-something", Title: "Sketch something", Category: core.CategoryCreativity, Difficulty: 2, DayIndex: 6, IsActive: true},
		{ID: "call-a-friend", Title: "Call a friend", Category: core.CategorySocial, Difficulty: 2, DayIndex: 7, IsActive: true},
		{ID: "inbox-zero", Title: "Inbox zero", Category: core.CategoryProductivity, Difficulty: 3, DayIndex: 8, IsActive: true},
		{ID: "drink-water", Title: "Drink water", Category: core.CategoryWellness, Difficulty: 1, DayIndex: 9, IsActive: true},
		{ID: "gratitude-journal", Title: "Gratitude journal", Category: core.CategoryGratitude, Difficulty: 1, DayIndex: 10, IsActive: true},
	}
}
