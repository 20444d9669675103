package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sundaybox/weekplanner/internal/database"
	apperrors "github.com/sundaybox/weekplanner/internal/errors"
	"github.com/sundaybox/weekplanner/internal/utils"
	"gorm.io/gorm"
)

// AssignmentView is the per-day slice of the merged read model.
type AssignmentView struct {
	MealData             database.MealData              `json:"meal_data"`
	AllocatedIngredients []database.AllocatedIngredient `json:"allocated_ingredients"`
	Status               string                         `json:"status"`
}

// PlanView is the downstream read model: the plan row merged with its
// assignments and the current pool snapshot.
type PlanView struct {
	ID             uint                      `json:"id"`
	Owner          string                    `json:"owner"`
	WeekStart      time.Time                 `json:"week_start"`
	Status         string                    `json:"status"`
	Assignments    map[string]AssignmentView `json:"assignments"`
	IngredientPool map[string]PoolEntry      `json:"ingredient_pool"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}

// PlanService owns the plan lifecycle. Plans are keyed by
// (owner, week start) and are archived rather than deleted.
type PlanService struct {
	db          *gorm.DB
	pool        *PoolService
	assignments *AssignmentService
	seedPolicy  SeedPolicy
}

func NewPlanService(db *gorm.DB, pool *PoolService, assignments *AssignmentService, seedPolicy SeedPolicy) *PlanService {
	return &PlanService{db: db, pool: pool, assignments: assignments, seedPolicy: seedPolicy}
}

// Create opens a new plan for the owner's week and seeds its ingredient pool
// from the harvested cart in one transaction. A second plan for the same
// (owner, week) is refused.
func (s *PlanService) Create(ctx context.Context, owner string, weekStart time.Time, seedItems []database.SeedItem) (*database.WeeklyMealPlan, error) {
	if owner == "" {
		return nil, apperrors.NewValidationError("owner must not be empty")
	}
	week := utils.WeekStart(weekStart)

	plan := database.WeeklyMealPlan{
		Owner:     owner,
		WeekStart: week,
		Status:    database.StatusPlanning,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing database.WeeklyMealPlan
		err := tx.Where("owner = ? AND week_start = ?", owner, week).First(&existing).Error
		if err == nil {
			return apperrors.ErrPlanExists
		}
		if err != gorm.ErrRecordNotFound {
			return apperrors.NewDatabaseError(err)
		}

		if err := tx.Create(&plan).Error; err != nil {
			return apperrors.NewDatabaseError(err)
		}
		return s.pool.seedTx(tx, plan.ID, seedItems, s.seedPolicy)
	})
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// Get merges the plan row with its assignments and pool snapshot.
func (s *PlanService) Get(ctx context.Context, owner string, weekStart time.Time) (*PlanView, error) {
	week := utils.WeekStart(weekStart)

	var plan database.WeeklyMealPlan
	err := s.db.WithContext(ctx).Where("owner = ? AND week_start = ?", owner, week).First(&plan).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperrors.ErrPlanNotFound
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return s.buildView(ctx, plan)
}

// GetByID resolves a plan by primary key, for callers arriving via session.
func (s *PlanService) GetByID(ctx context.Context, planID uint) (*PlanView, error) {
	var plan database.WeeklyMealPlan
	err := s.db.WithContext(ctx).First(&plan, planID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperrors.ErrPlanNotFound
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return s.buildView(ctx, plan)
}

func (s *PlanService) buildView(ctx context.Context, plan database.WeeklyMealPlan) (*PlanView, error) {
	assignments, err := s.assignments.List(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.pool.Snapshot(ctx, plan.ID)
	if err != nil {
		return nil, err
	}

	views := make(map[string]AssignmentView, len(assignments))
	for day, a := range assignments {
		meal, err := a.Meal()
		if err != nil {
			return nil, fmt.Errorf("failed to decode meal for %s: %w", day, err)
		}
		allocated, err := a.Ingredients()
		if err != nil {
			return nil, fmt.Errorf("failed to decode allocation for %s: %w", day, err)
		}
		views[day] = AssignmentView{
			MealData:             meal,
			AllocatedIngredients: allocated,
			Status:               a.Status,
		}
	}

	return &PlanView{
		ID:             plan.ID,
		Owner:          plan.Owner,
		WeekStart:      plan.WeekStart,
		Status:         plan.Status,
		Assignments:    views,
		IngredientPool: snapshot,
		CreatedAt:      plan.CreatedAt,
		UpdatedAt:      plan.UpdatedAt,
	}, nil
}

// SetStatus moves the plan through planning -> complete -> archived. An
// unknown status leaves the row, including updated_at, untouched.
func (s *PlanService) SetStatus(ctx context.Context, planID uint, status string) error {
	if !database.IsValidStatus(status) {
		return apperrors.NewValidationError(fmt.Sprintf("invalid plan status %q", status))
	}

	result := s.db.WithContext(ctx).Model(&database.WeeklyMealPlan{}).
		Where("id = ?", planID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return apperrors.NewDatabaseError(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrPlanNotFound
	}
	return nil
}
