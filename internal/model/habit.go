package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxParticipants caps accepted (and accepted-or-pending) members of a habit, owner included.
const MaxParticipants = 6

// Palette is the fixed, ordered set of participant colors.
var Palette = []string{"gray", "silver", "gold", "emerald", "sapphire", "ruby"}

const DefaultColor = "gold"

// InPalette reports whether color is one of the palette colors.
func InPalette(color string) bool {
	for _, c := range Palette {
		if c == color {
			return true
		}
	}
	return false
}

// Habit is a trackable recurring activity owned by one user.
type Habit struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerID     uuid.UUID `gorm:"type:uuid;index;not null"`
	Name        string    `gorm:"not null"`
	Description string
	IsShared    bool   `gorm:"default:false"`
	Color       string `gorm:"size:20;default:gold"`
	// DaysOfWeek holds ISO weekdays (1=Mon..7=Sun) as a comma list, empty when WeeklyGoalDays is used.
	DaysOfWeek     string `gorm:"size:20"`
	WeeklyGoalDays *int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (h *Habit) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// Schedule returns the parsed schedule descriptor of the habit.
func (h Habit) Schedule() Schedule {
	s := Schedule{Weekdays: ParseWeekdays(h.DaysOfWeek)}
	if h.WeeklyGoalDays != nil && *h.WeeklyGoalDays > 0 {
		s.WeeklyGoal = *h.WeeklyGoalDays
	}
	return s
}

// SetSchedule stores s on the habit.
func (h *Habit) SetSchedule(s Schedule) {
	h.DaysOfWeek = FormatWeekdays(s.Weekdays)
	h.WeeklyGoalDays = nil
	if s.WeeklyGoal > 0 {
		goal := s.WeeklyGoal
		h.WeeklyGoalDays = &goal
	}
}

// Schedule is either an explicit weekday set or a weekly goal count.
type Schedule struct {
	Weekdays   []int
	WeeklyGoal int
}

// Validate checks that at most one mode is configured and values are in range.
func (s Schedule) Validate() error {
	if len(s.Weekdays) > 0 && s.WeeklyGoal > 0 {
		return fmt.Errorf("weekdays and weekly goal are mutually exclusive")
	}
	for _, d := range s.Weekdays {
		if d < 1 || d > 7 {
			return fmt.Errorf("weekday %d out of range 1..7", d)
		}
	}
	if s.WeeklyGoal < 0 || s.WeeklyGoal > 7 {
		return fmt.Errorf("weekly goal %d out of range 1..7", s.WeeklyGoal)
	}
	return nil
}

// HasWeekday reports whether the ISO weekday is part of the explicit set.
func (s Schedule) HasWeekday(isoDay int) bool {
	for _, d := range s.Weekdays {
		if d == isoDay {
			return true
		}
	}
	return false
}

// ParseWeekdays reads a comma list, dropping values outside 1..7 and duplicates.
func ParseWeekdays(raw string) []int {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	seen := make(map[int]bool)
	var days []int
	for _, part := range strings.Split(raw, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || d < 1 || d > 7 || seen[d] {
			continue
		}
		seen[d] = true
		days = append(days, d)
	}
	sort.Ints(days)
	return days
}

func FormatWeekdays(days []int) string {
	if len(days) == 0 {
		return ""
	}
	sorted := append([]int(nil), days...)
	sort.Ints(sorted)
	parts := make([]string, 0, len(sorted))
	for i, d := range sorted {
		if i > 0 && sorted[i-1] == d {
			continue
		}
		parts = append(parts, strconv.Itoa(d))
	}
	return strings.Join(parts, ",")
}
