package database

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Plan statuses
const (
	StatusPlanning = "planning"
	StatusComplete = "complete"
	StatusArchived = "archived"
)

// ValidStatuses enumerates the allowed plan statuses.
var ValidStatuses = []string{StatusPlanning, StatusComplete, StatusArchived}

// Days of week. Assignments are keyed by these; the generator only
// populates monday..friday but all seven are valid keys.
const (
	Monday    = "monday"
	Tuesday   = "tuesday"
	Wednesday = "wednesday"
	Thursday  = "thursday"
	Friday    = "friday"
	Saturday  = "saturday"
	Sunday    = "sunday"
)

// Weekdays lists the days the weekly generator fills, in order.
var Weekdays = []string{Monday, Tuesday, Wednesday, Thursday, Friday}

// AllDays lists every valid assignment day, in week order.
var AllDays = []string{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// IsValidDay reports whether day is one of the seven day keys.
func IsValidDay(day string) bool {
	for _, d := range AllDays {
		if d == day {
			return true
		}
	}
	return false
}

// IsValidStatus reports whether status is an allowed plan status.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// WeeklyMealPlan is the top-level container for one owner's one week.
// Plans are never hard-deleted, only archived.
type WeeklyMealPlan struct {
	gorm.Model
	Owner     string    `gorm:"uniqueIndex:idx_plans_owner_week;not null"`
	WeekStart time.Time `gorm:"uniqueIndex:idx_plans_owner_week;not null"`
	Status    string    `gorm:"default:planning;not null"`
}

// IngredientEntry is one row of the per-plan ingredient ledger.
// Remaining quantity is always computed as total - allocated, never stored.
// Version increments on every debit/credit so concurrent writers cannot
// silently overwrite each other.
type IngredientEntry struct {
	gorm.Model
	PlanID            uint    `gorm:"uniqueIndex:idx_entries_plan_name;not null"`
	Name              string  `gorm:"uniqueIndex:idx_entries_plan_name;not null"`
	TotalQuantity     float64 `gorm:"not null"`
	AllocatedQuantity float64 `gorm:"default:0;not null"`
	Unit              string
	Version           int64 `gorm:"default:0;not null"`
}

// Remaining returns the grantable quantity for this entry.
func (e IngredientEntry) Remaining() float64 {
	return e.TotalQuantity - e.AllocatedQuantity
}

// MealAssignment binds one meal to one day of a plan. MealData and
// AllocatedIngredients are JSON-encoded; meal content is opaque to the
// engine and produced externally.
type MealAssignment struct {
	gorm.Model
	PlanID               uint   `gorm:"uniqueIndex:idx_assignments_plan_day;not null"`
	Day                  string `gorm:"uniqueIndex:idx_assignments_plan_day;not null"`
	MealData             string `gorm:"type:text"`
	AllocatedIngredients string `gorm:"type:text"`
	Status               string `gorm:"default:assigned;not null"`
}

// Meal decodes the assignment's opaque meal content.
func (a MealAssignment) Meal() (MealData, error) {
	var meal MealData
	if a.MealData == "" {
		return meal, nil
	}
	err := json.Unmarshal([]byte(a.MealData), &meal)
	return meal, err
}

// Ingredients decodes the ordered list of quantities deducted for this
// assignment.
func (a MealAssignment) Ingredients() ([]AllocatedIngredient, error) {
	if a.AllocatedIngredients == "" {
		return nil, nil
	}
	var items []AllocatedIngredient
	err := json.Unmarshal([]byte(a.AllocatedIngredients), &items)
	return items, err
}

// SeedItem is one harvested cart line used to seed the ingredient pool.
type SeedItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// IngredientRequest is one line of an allocation request.
type IngredientRequest struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// AllocatedIngredient records a quantity deducted from the pool for an
// assignment, in request order.
type AllocatedIngredient struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// MealData is the externally produced meal content attached to an
// assignment. The engine stores it verbatim.
type MealData struct {
	Title       string   `json:"title"`
	Protein     string   `json:"protein"`
	Steps       []string `json:"steps,omitempty"`
	Ingredients []string `json:"ingredients,omitempty"`
}
