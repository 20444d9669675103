package interfaces

import (
	"context"
	"time"

	"github.com/sundaybox/weekplanner/internal/database"
	apperrors "github.com/sundaybox/weekplanner/internal/errors"
	"github.com/sundaybox/weekplanner/internal/services"
)

// PoolServiceInterface defines the contract for the ingredient ledger
type PoolServiceInterface interface {
	Seed(ctx context.Context, planID uint, items []database.SeedItem, policy services.SeedPolicy) error
	Snapshot(ctx context.Context, planID uint) (map[string]services.PoolEntry, error)
	Debit(ctx context.Context, planID uint, name string, quantity float64) error
	Credit(ctx context.Context, planID uint, name string, quantity float64) error
}

// AllocatorServiceInterface defines the contract for transactional allocation
type AllocatorServiceInterface interface {
	Check(ctx context.Context, planID uint, requested []database.IngredientRequest) ([]apperrors.Conflict, error)
	Allocate(ctx context.Context, planID uint, requested []database.IngredientRequest) error
	Release(ctx context.Context, planID uint, requested []database.IngredientRequest) error
}

// AssignmentServiceInterface defines the contract for day-slot assignments
type AssignmentServiceInterface interface {
	Assign(ctx context.Context, planID uint, day string, meal database.MealData, ingredients []database.IngredientRequest) (*database.MealAssignment, error)
	Get(ctx context.Context, planID uint, day string) (*database.MealAssignment, error)
	Remove(ctx context.Context, planID uint, day string) error
	List(ctx context.Context, planID uint) (map[string]database.MealAssignment, error)
}

// PlanServiceInterface defines the contract for plan lifecycle operations
type PlanServiceInterface interface {
	Create(ctx context.Context, owner string, weekStart time.Time, seedItems []database.SeedItem) (*database.WeeklyMealPlan, error)
	Get(ctx context.Context, owner string, weekStart time.Time) (*services.PlanView, error)
	GetByID(ctx context.Context, planID uint) (*services.PlanView, error)
	SetStatus(ctx context.Context, planID uint, status string) error
}

// MealSuggesterInterface defines the contract for the external meal suggester
type MealSuggesterInterface interface {
	SuggestWeek(ctx context.Context, pool map[string]services.PoolEntry, days []string) (map[string]services.MealSuggestion, error)
}

// CartHarvesterInterface defines the contract for the external cart harvester
type CartHarvesterInterface interface {
	FetchCart(ctx context.Context, url string) ([]database.SeedItem, error)
}
