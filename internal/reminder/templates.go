package reminder

import "lockin-monolith/internal/core"

// Template is the starting reminder setup for a habit category
type Template struct {
	Config      core.ReminderConfig
	WeeklyQuota *int
	AutoSpread  bool
}

func t(hour, minute int) *core.TimeOfDay {
	return &core.TimeOfDay{Hour: hour, Minute: minute}
}

func quota(n int) *int {
	return &n
}

var weekdaysOnly = []int{2, 3, 4, 5, 6}

// TemplateFor returns the category's default reminder template. Unknown
// categories get a plain daily reminder at the global default time.
func TemplateFor(category core.HabitCategory) Template {
	switch category {
	case core.CategoryFitness:
		return Template{
			Config: core.ReminderConfig{
				Mode:               core.ReminderSmart,
				Time:               t(7, 0),
				EveningAnchor:      t(18, 30),
				EnableEveningNudge: true,
			},
			WeeklyQuota: quota(5),
			AutoSpread:  true,
		}
	case core.CategoryMindfulness:
		return Template{
			Config: core.ReminderConfig{
				Mode:               core.ReminderDaily,
				Time:               t(8, 0),
				EveningAnchor:      t(21, 0),
				EnableEveningNudge: true,
			},
		}
	case core.CategoryLearning:
		return Template{
			Config: core.ReminderConfig{
				Mode:               core.ReminderSelectedDays,
				Time:               t(8, 30),
				SelectedWeekdays:   weekdaysOnly,
				EveningAnchor:      t(19, 0),
				EnableEveningNudge: true,
			},
			WeeklyQuota: quota(5),
		}
	case core.CategoryProductivity:
		return Template{
			Config: core.ReminderConfig{
				Mode:               core.ReminderSelectedDays,
				Time:               t(8, 30),
				SelectedWeekdays:   weekdaysOnly,
				EveningAnchor:      t(17, 0),
				EnableEveningNudge: true,
			},
			WeeklyQuota: quota(5),
		}
	case core.CategoryWellness:
		return Template{
			Config: core.ReminderConfig{
				Mode:               core.ReminderDaily,
				Time:               t(7, 30),
				EveningAnchor:      t(20, 0),
				EnableEveningNudge: true,
			},
		}
	case core.CategoryCreativity:
		return Template{
			Config: core.ReminderConfig{
				Mode:               core.ReminderDaily,
				Time:               t(19, 0),
				EveningAnchor:      t(21, 30),
				EnableEveningNudge: true,
			},
		}
	case core.CategorySocial:
		return Template{
			Config: core.ReminderConfig{
				Mode:               core.ReminderSelectedDays,
				Time:               t(18, 0),
				SelectedWeekdays:   []int{1, 6, 7},
				EveningAnchor:      t(20, 0),
				EnableEveningNudge: true,
			},
			WeeklyQuota: quota(3),
		}
	case core.CategoryGratitude:
		return Template{
			Config: core.ReminderConfig{
				Mode:               core.ReminderDaily,
				Time:               t(21, 0),
				EveningAnchor:      t(22, 0),
				EnableEveningNudge: true,
			},
		}
	default:
		return Template{
			Config: core.ReminderConfig{
				Mode:               core.ReminderDaily,
				EnableEveningNudge: true,
			},
		}
	}
}
