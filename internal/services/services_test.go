package services

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/sundaybox/weekplanner/internal/database"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens an in-memory database with the engine schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// newTestServices wires the service stack over one test database.
func newTestServices(t *testing.T) (*gorm.DB, *PoolService, *AllocatorService, *AssignmentService, *PlanService) {
	t.Helper()

	db := newTestDB(t)
	pool := NewPoolService(db)
	allocator := NewAllocatorService(db, pool)
	assignments := NewAssignmentService(db, allocator)
	plans := NewPlanService(db, pool, assignments, SeedPolicySum)
	return db, pool, allocator, assignments, plans
}

// seedPlan creates a bare plan row and seeds its pool.
func seedPlan(t *testing.T, db *gorm.DB, pool *PoolService, items []database.SeedItem) uint {
	t.Helper()

	plan := database.WeeklyMealPlan{Owner: "tester", Status: database.StatusPlanning}
	if err := db.Create(&plan).Error; err != nil {
		t.Fatalf("Failed to create plan: %v", err)
	}
	if err := pool.Seed(context.Background(), plan.ID, items, SeedPolicySum); err != nil {
		t.Fatalf("Failed to seed pool: %v", err)
	}
	return plan.ID
}

// fetchEntry reads one ledger row directly.
func fetchEntry(t *testing.T, db *gorm.DB, planID uint, name string) database.IngredientEntry {
	t.Helper()

	var entry database.IngredientEntry
	if err := db.Where("plan_id = ? AND name = ?", planID, name).First(&entry).Error; err != nil {
		t.Fatalf("Failed to fetch entry %q: %v", name, err)
	}
	return entry
}

// assertLedgerInvariant checks 0 <= allocated <= total and the remaining
// arithmetic for every entry of the plan.
func assertLedgerInvariant(t *testing.T, db *gorm.DB, planID uint) {
	t.Helper()

	var entries []database.IngredientEntry
	if err := db.Where("plan_id = ?", planID).Find(&entries).Error; err != nil {
		t.Fatalf("Failed to load entries: %v", err)
	}
	for _, e := range entries {
		if e.AllocatedQuantity < 0 || e.AllocatedQuantity > e.TotalQuantity {
			t.Errorf("Entry %q violates ledger invariant: allocated=%v total=%v", e.Name, e.AllocatedQuantity, e.TotalQuantity)
		}
		if e.Remaining() != e.TotalQuantity-e.AllocatedQuantity {
			t.Errorf("Entry %q remaining mismatch: %v", e.Name, e.Remaining())
		}
	}
}
