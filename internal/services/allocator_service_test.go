package services

import (
	"context"
	"testing"

	"github.com/sundaybox/weekplanner/internal/database"
	apperrors "github.com/sundaybox/weekplanner/internal/errors"
)

func TestAllocatorCheck(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	pool := NewPoolService(db)
	allocator := NewAllocatorService(db, pool)
	planID := seedPlan(t, db, pool, []database.SeedItem{
		{Name: "Carrots", Quantity: 2, Unit: "lb"},
	})

	t.Run("Grantable", func(t *testing.T) {
		conflicts, err := allocator.Check(ctx, planID, []database.IngredientRequest{
			{Name: "Carrots", Quantity: 2, Unit: "lb"},
		})
		if err != nil {
			t.Fatalf("Check failed: %v", err)
		}
		if len(conflicts) != 0 {
			t.Errorf("Expected no conflicts, got %v", conflicts)
		}
	})

	t.Run("Insufficient", func(t *testing.T) {
		conflicts, err := allocator.Check(ctx, planID, []database.IngredientRequest{
			{Name: "Carrots", Quantity: 3, Unit: "lb"},
		})
		if err != nil {
			t.Fatalf("Check failed: %v", err)
		}
		if len(conflicts) != 1 {
			t.Fatalf("Expected exactly 1 conflict, got %d", len(conflicts))
		}
		c := conflicts[0]
		if c.Ingredient != "Carrots" || c.Requested != 3 || c.Available != 2 || c.Unit != "lb" || c.Issue != apperrors.IssueInsufficient {
			t.Errorf("Unexpected conflict: %+v", c)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		conflicts, err := allocator.Check(ctx, planID, []database.IngredientRequest{
			{Name: "Kale", Quantity: 1, Unit: "bunch"},
		})
		if err != nil {
			t.Fatalf("Check failed: %v", err)
		}
		if len(conflicts) != 1 {
			t.Fatalf("Expected exactly 1 conflict, got %d", len(conflicts))
		}
		c := conflicts[0]
		if c.Ingredient != "Kale" || c.Available != 0 || c.Issue != apperrors.IssueUnknown {
			t.Errorf("Unexpected conflict: %+v", c)
		}
	})

	t.Run("RepeatedNamesCheckedCumulatively", func(t *testing.T) {
		conflicts, err := allocator.Check(ctx, planID, []database.IngredientRequest{
			{Name: "Carrots", Quantity: 1.5, Unit: "lb"},
			{Name: "Carrots", Quantity: 1, Unit: "lb"},
		})
		if err != nil {
			t.Fatalf("Check failed: %v", err)
		}
		if len(conflicts) != 1 {
			t.Fatalf("Expected the second line to conflict, got %v", conflicts)
		}
		if conflicts[0].Available != 0.5 {
			t.Errorf("Expected available 0.5 after first line, got %v", conflicts[0].Available)
		}
	})

	t.Run("CheckDoesNotMutate", func(t *testing.T) {
		entry := fetchEntry(t, db, planID, "Carrots")
		if entry.AllocatedQuantity != 0 {
			t.Errorf("Check must not mutate the pool, allocated=%v", entry.AllocatedQuantity)
		}
	})
}

func TestAllocatorAllocate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	pool := NewPoolService(db)
	allocator := NewAllocatorService(db, pool)
	planID := seedPlan(t, db, pool, []database.SeedItem{
		{Name: "Carrots", Quantity: 2, Unit: "lb"},
		{Name: "Eggs", Quantity: 6, Unit: "ct"},
	})

	t.Run("ConflictAppliesNothing", func(t *testing.T) {
		err := allocator.Allocate(ctx, planID, []database.IngredientRequest{
			{Name: "Eggs", Quantity: 2, Unit: "ct"},
			{Name: "Carrots", Quantity: 3, Unit: "lb"},
		})
		conflict, ok := apperrors.AsConflict(err)
		if !ok {
			t.Fatalf("Expected ConflictError, got %v", err)
		}
		if len(conflict.Conflicts) != 1 || conflict.Conflicts[0].Ingredient != "Carrots" {
			t.Errorf("Unexpected conflicts: %+v", conflict.Conflicts)
		}

		// No partial debit: the grantable Eggs line stays untouched too.
		if entry := fetchEntry(t, db, planID, "Eggs"); entry.AllocatedQuantity != 0 {
			t.Errorf("Expected Eggs allocated 0, got %v", entry.AllocatedQuantity)
		}
		if entry := fetchEntry(t, db, planID, "Carrots"); entry.AllocatedQuantity != 0 {
			t.Errorf("Expected Carrots allocated 0, got %v", entry.AllocatedQuantity)
		}
	})

	t.Run("SuccessDebitsEveryLine", func(t *testing.T) {
		err := allocator.Allocate(ctx, planID, []database.IngredientRequest{
			{Name: "Eggs", Quantity: 4, Unit: "ct"},
			{Name: "Carrots", Quantity: 1, Unit: "lb"},
		})
		if err != nil {
			t.Fatalf("Allocate failed: %v", err)
		}
		if entry := fetchEntry(t, db, planID, "Eggs"); entry.AllocatedQuantity != 4 {
			t.Errorf("Expected Eggs allocated 4, got %v", entry.AllocatedQuantity)
		}
		if entry := fetchEntry(t, db, planID, "Carrots"); entry.AllocatedQuantity != 1 {
			t.Errorf("Expected Carrots allocated 1, got %v", entry.AllocatedQuantity)
		}
		assertLedgerInvariant(t, db, planID)
	})
}

func TestAllocatorRelease(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	pool := NewPoolService(db)
	allocator := NewAllocatorService(db, pool)
	planID := seedPlan(t, db, pool, []database.SeedItem{
		{Name: "Eggs", Quantity: 6, Unit: "ct"},
	})

	request := []database.IngredientRequest{{Name: "Eggs", Quantity: 4, Unit: "ct"}}
	if err := allocator.Allocate(ctx, planID, request); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	t.Run("ReleaseReturnsAllocation", func(t *testing.T) {
		if err := allocator.Release(ctx, planID, request); err != nil {
			t.Fatalf("Release failed: %v", err)
		}
		if entry := fetchEntry(t, db, planID, "Eggs"); entry.AllocatedQuantity != 0 {
			t.Errorf("Expected allocated 0, got %v", entry.AllocatedQuantity)
		}
	})

	t.Run("SecondReleaseIsNoOp", func(t *testing.T) {
		if err := allocator.Release(ctx, planID, request); err != nil {
			t.Fatalf("Repeated release must not fail: %v", err)
		}
		if entry := fetchEntry(t, db, planID, "Eggs"); entry.AllocatedQuantity != 0 {
			t.Errorf("Expected allocated still 0, got %v", entry.AllocatedQuantity)
		}
		assertLedgerInvariant(t, db, planID)
	})

	t.Run("UnknownNamesSkipped", func(t *testing.T) {
		err := allocator.Release(ctx, planID, []database.IngredientRequest{
			{Name: "Kale", Quantity: 1, Unit: "bunch"},
		})
		if err != nil {
			t.Fatalf("Release must always succeed, got %v", err)
		}
	})
}
