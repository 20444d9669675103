package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sundaybox/weekplanner/internal/database"
	apperrors "github.com/sundaybox/weekplanner/internal/errors"
	"gorm.io/gorm"
)

// AssignmentService keeps at most one meal assignment per (plan, day) and
// owns the transactional coupling between assignment rows and the pool.
//
// Assign does not release-then-allocate: it computes the net per-ingredient
// delta between the old and new requests and applies it as one atomic
// operation. A refused reassignment therefore leaves the old meal and its
// allocation fully intact instead of stranding the day empty.
type AssignmentService struct {
	db        *gorm.DB
	allocator *AllocatorService
}

func NewAssignmentService(db *gorm.DB, allocator *AllocatorService) *AssignmentService {
	return &AssignmentService{db: db, allocator: allocator}
}

// Assign upserts the meal for (planID, day), debiting the pool for the new
// request and crediting back whatever the replaced assignment held.
func (s *AssignmentService) Assign(ctx context.Context, planID uint, day string, meal database.MealData, ingredients []database.IngredientRequest) (*database.MealAssignment, error) {
	if !database.IsValidDay(day) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid day %q", day))
	}

	mealJSON, err := json.Marshal(meal)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("meal data is not serializable: %v", err))
	}
	allocated := make([]database.AllocatedIngredient, 0, len(ingredients))
	for _, req := range ingredients {
		allocated = append(allocated, database.AllocatedIngredient(req))
	}
	allocatedJSON, err := json.Marshal(allocated)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("ingredient list is not serializable: %v", err))
	}

	var saved database.MealAssignment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var plan database.WeeklyMealPlan
		if err := tx.First(&plan, planID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.ErrPlanNotFound
			}
			return apperrors.NewDatabaseError(err)
		}

		var existing database.MealAssignment
		var old []database.AllocatedIngredient
		hasExisting := true
		if err := tx.Where("plan_id = ? AND day = ?", planID, day).First(&existing).Error; err != nil {
			if err != gorm.ErrRecordNotFound {
				return apperrors.NewDatabaseError(err)
			}
			hasExisting = false
		} else {
			old, err = existing.Ingredients()
			if err != nil {
				return fmt.Errorf("failed to decode existing allocation for %s: %w", day, err)
			}
		}

		held := make(map[string]float64, len(old))
		for _, item := range old {
			held[item.Name] += item.Quantity
		}

		// The old allocation counts as available, so a same-ingredient swap
		// is never spuriously refused.
		conflicts, err := s.allocator.checkTx(tx, planID, ingredients, held)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &apperrors.ConflictError{PlanID: planID, Conflicts: conflicts}
		}

		if err := s.applyDelta(tx, planID, held, ingredients); err != nil {
			return err
		}

		if hasExisting {
			updates := map[string]interface{}{
				"meal_data":             string(mealJSON),
				"allocated_ingredients": string(allocatedJSON),
				"status":                "assigned",
			}
			if err := tx.Model(&existing).Updates(updates).Error; err != nil {
				return apperrors.NewDatabaseError(err)
			}
			saved = existing
			saved.MealData = string(mealJSON)
			saved.AllocatedIngredients = string(allocatedJSON)
			saved.Status = "assigned"
		} else {
			saved = database.MealAssignment{
				PlanID:               planID,
				Day:                  day,
				MealData:             string(mealJSON),
				AllocatedIngredients: string(allocatedJSON),
				Status:               "assigned",
			}
			if err := tx.Create(&saved).Error; err != nil {
				return apperrors.NewDatabaseError(err)
			}
		}

		return touchPlan(tx, planID)
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// applyDelta debits where the new request exceeds the held allocation and
// credits where it shrank. Conflicts were already ruled out against the same
// transaction, so a failing debit here means a racing writer and aborts.
func (s *AssignmentService) applyDelta(tx *gorm.DB, planID uint, held map[string]float64, ingredients []database.IngredientRequest) error {
	requested := make(map[string]float64, len(ingredients))
	var order []string
	for _, req := range ingredients {
		if _, seen := requested[req.Name]; !seen {
			order = append(order, req.Name)
		}
		requested[req.Name] += req.Quantity
	}
	for name := range held {
		if _, seen := requested[name]; !seen {
			order = append(order, name)
		}
	}

	for _, name := range order {
		delta := requested[name] - held[name]
		switch {
		case delta > 0:
			if err := s.allocator.pool.debitTx(tx, planID, name, delta); err != nil {
				return err
			}
		case delta < 0:
			if err := s.allocator.pool.creditTx(tx, planID, name, -delta); err != nil {
				if apperrors.IsNotFound(err) {
					continue
				}
				return err
			}
		}
	}
	return nil
}

// Get returns the assignment for (planID, day), or not-found.
func (s *AssignmentService) Get(ctx context.Context, planID uint, day string) (*database.MealAssignment, error) {
	if !database.IsValidDay(day) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid day %q", day))
	}

	var assignment database.MealAssignment
	err := s.db.WithContext(ctx).Where("plan_id = ? AND day = ?", planID, day).First(&assignment).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperrors.ErrAssignmentNotFound
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return &assignment, nil
}

// Remove releases the assignment's ingredients back to the pool and deletes
// the row. Removing an empty day is a no-op.
func (s *AssignmentService) Remove(ctx context.Context, planID uint, day string) error {
	if !database.IsValidDay(day) {
		return apperrors.NewValidationError(fmt.Sprintf("invalid day %q", day))
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var assignment database.MealAssignment
		err := tx.Where("plan_id = ? AND day = ?", planID, day).First(&assignment).Error
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		if err != nil {
			return apperrors.NewDatabaseError(err)
		}

		allocated, err := assignment.Ingredients()
		if err != nil {
			return fmt.Errorf("failed to decode allocation for %s: %w", day, err)
		}
		requests := make([]database.IngredientRequest, 0, len(allocated))
		for _, item := range allocated {
			requests = append(requests, database.IngredientRequest(item))
		}
		if err := s.allocator.releaseTx(tx, planID, requests); err != nil {
			return err
		}

		// Hard delete so the (plan_id, day) unique index stays free for the
		// next assignment.
		if err := tx.Unscoped().Delete(&assignment).Error; err != nil {
			return apperrors.NewDatabaseError(err)
		}

		return touchPlan(tx, planID)
	})
}

// List returns every assignment of the plan keyed by day.
func (s *AssignmentService) List(ctx context.Context, planID uint) (map[string]database.MealAssignment, error) {
	var assignments []database.MealAssignment
	if err := s.db.WithContext(ctx).Where("plan_id = ?", planID).Find(&assignments).Error; err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	byDay := make(map[string]database.MealAssignment, len(assignments))
	for _, a := range assignments {
		byDay[a.Day] = a
	}
	return byDay, nil
}

func touchPlan(tx *gorm.DB, planID uint) error {
	if err := tx.Model(&database.WeeklyMealPlan{}).Where("id = ?", planID).
		Update("updated_at", time.Now()).Error; err != nil {
		return apperrors.NewDatabaseError(err)
	}
	return nil
}
