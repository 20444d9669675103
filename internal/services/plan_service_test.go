package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sundaybox/weekplanner/internal/database"
	apperrors "github.com/sundaybox/weekplanner/internal/errors"
)

func TestPlanCreate(t *testing.T) {
	ctx := context.Background()
	_, _, _, _, plans := newTestServices(t)

	seed := []database.SeedItem{
		{Name: "Carrots", Quantity: 2, Unit: "lb"},
		{Name: "Eggs", Quantity: 6, Unit: "ct"},
	}
	wednesday := time.Date(2026, time.August, 26, 14, 30, 0, 0, time.UTC)

	plan, err := plans.Create(ctx, "alice", wednesday, seed)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if plan.Status != database.StatusPlanning {
		t.Errorf("Expected status planning, got %q", plan.Status)
	}

	monday := time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)
	if !plan.WeekStart.Equal(monday) {
		t.Errorf("Expected week start %v, got %v", monday, plan.WeekStart)
	}

	t.Run("SameWeekRefused", func(t *testing.T) {
		// A different weekday of the same week normalizes to the same plan key.
		friday := time.Date(2026, time.August, 28, 9, 0, 0, 0, time.UTC)
		_, err := plans.Create(ctx, "alice", friday, seed)
		if !errors.Is(err, apperrors.ErrPlanExists) {
			t.Fatalf("Expected plan-exists error, got %v", err)
		}
	})

	t.Run("OtherOwnerSameWeekAllowed", func(t *testing.T) {
		if _, err := plans.Create(ctx, "bob", wednesday, seed); err != nil {
			t.Fatalf("Create for other owner failed: %v", err)
		}
	})
}

func TestPlanGetMergesReadView(t *testing.T) {
	ctx := context.Background()
	_, _, _, assignments, plans := newTestServices(t)

	week := time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)
	plan, err := plans.Create(ctx, "alice", week, []database.SeedItem{
		{Name: "Eggs", Quantity: 6, Unit: "ct"},
		{Name: "Spinach", Quantity: 1, Unit: "bunch"},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	meal := database.MealData{Title: "Frittata", Protein: "eggs"}
	if _, err := assignments.Assign(ctx, plan.ID, database.Monday, meal, []database.IngredientRequest{
		{Name: "Eggs", Quantity: 4, Unit: "ct"},
	}); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	view, err := plans.Get(ctx, "alice", week)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if view.ID != plan.ID || view.Owner != "alice" || view.Status != database.StatusPlanning {
		t.Errorf("Unexpected plan head: %+v", view)
	}

	monday, ok := view.Assignments[database.Monday]
	if !ok {
		t.Fatalf("Expected monday assignment in view")
	}
	if monday.MealData.Title != "Frittata" || monday.Status != "assigned" {
		t.Errorf("Unexpected assignment view: %+v", monday)
	}
	if len(monday.AllocatedIngredients) != 1 || monday.AllocatedIngredients[0].Quantity != 4 {
		t.Errorf("Unexpected allocation view: %+v", monday.AllocatedIngredients)
	}

	eggs := view.IngredientPool["Eggs"]
	if eggs.Total != 6 || eggs.Allocated != 4 || eggs.Remaining != 2 {
		t.Errorf("Unexpected pool view: %+v", eggs)
	}
	spinach := view.IngredientPool["Spinach"]
	if spinach.Allocated != 0 || spinach.Remaining != 1 {
		t.Errorf("Unexpected pool view: %+v", spinach)
	}

	t.Run("UnknownPlanNotFound", func(t *testing.T) {
		_, err := plans.Get(ctx, "nobody", week)
		if !apperrors.IsNotFound(err) {
			t.Fatalf("Expected not-found, got %v", err)
		}
	})
}

func TestPlanSetStatus(t *testing.T) {
	ctx := context.Background()
	db, _, _, _, plans := newTestServices(t)

	week := time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)
	plan, err := plans.Create(ctx, "alice", week, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("InvalidStatusRejected", func(t *testing.T) {
		var before database.WeeklyMealPlan
		if err := db.First(&before, plan.ID).Error; err != nil {
			t.Fatalf("Failed to read plan: %v", err)
		}

		err := plans.SetStatus(ctx, plan.ID, "bogus")
		if !apperrors.IsValidation(err) {
			t.Fatalf("Expected validation error, got %v", err)
		}

		var after database.WeeklyMealPlan
		if err := db.First(&after, plan.ID).Error; err != nil {
			t.Fatalf("Failed to read plan: %v", err)
		}
		if after.Status != before.Status {
			t.Errorf("Status must be unchanged, got %q", after.Status)
		}
		if !after.UpdatedAt.Equal(before.UpdatedAt) {
			t.Errorf("updated_at must be unchanged on rejected status")
		}
	})

	t.Run("ValidTransition", func(t *testing.T) {
		if err := plans.SetStatus(ctx, plan.ID, database.StatusComplete); err != nil {
			t.Fatalf("SetStatus failed: %v", err)
		}
		var after database.WeeklyMealPlan
		if err := db.First(&after, plan.ID).Error; err != nil {
			t.Fatalf("Failed to read plan: %v", err)
		}
		if after.Status != database.StatusComplete {
			t.Errorf("Expected status complete, got %q", after.Status)
		}
	})

	t.Run("UnknownPlan", func(t *testing.T) {
		err := plans.SetStatus(ctx, 9999, database.StatusArchived)
		if !errors.Is(err, apperrors.ErrPlanNotFound) {
			t.Fatalf("Expected plan not-found, got %v", err)
		}
	})
}
