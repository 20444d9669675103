package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/sundaybox/weekplanner/internal/database"
	apperrors "github.com/sundaybox/weekplanner/internal/errors"
	"gorm.io/gorm"
)

// SeedPolicy resolves duplicate ingredient names in harvested cart data.
type SeedPolicy string

const (
	// SeedPolicySum adds the quantities of duplicate names together.
	SeedPolicySum SeedPolicy = "sum"
	// SeedPolicyOverwrite keeps only the last occurrence of a name.
	SeedPolicyOverwrite SeedPolicy = "overwrite"
)

// ParseSeedPolicy converts a config string into a SeedPolicy.
func ParseSeedPolicy(raw string) (SeedPolicy, error) {
	switch SeedPolicy(raw) {
	case SeedPolicySum, SeedPolicyOverwrite:
		return SeedPolicy(raw), nil
	default:
		return "", apperrors.NewValidationError(fmt.Sprintf("invalid seed policy %q", raw))
	}
}

// PoolEntry is one line of a read-only pool snapshot.
type PoolEntry struct {
	Total     float64 `json:"total"`
	Allocated float64 `json:"allocated"`
	Remaining float64 `json:"remaining"`
	Unit      string  `json:"unit"`
}

// PoolService maintains the per-plan ingredient ledger. Every mutation is a
// single guarded UPDATE whose condition re-checks the invariant
// 0 <= allocated <= total inside the statement, so concurrent writers
// serialize on the row and can never overdraw it.
type PoolService struct {
	db *gorm.DB
}

func NewPoolService(db *gorm.DB) *PoolService {
	return &PoolService{db: db}
}

// Seed creates one ledger entry per unique ingredient name with
// allocated = 0. Duplicate names are resolved by policy.
func (s *PoolService) Seed(ctx context.Context, planID uint, items []database.SeedItem, policy SeedPolicy) error {
	return s.seedTx(s.db.WithContext(ctx), planID, items, policy)
}

func (s *PoolService) seedTx(tx *gorm.DB, planID uint, items []database.SeedItem, policy SeedPolicy) error {
	for _, item := range items {
		if item.Name == "" {
			return apperrors.NewValidationError("seed item has empty ingredient name")
		}
		if item.Quantity < 0 {
			return apperrors.NewValidationError(fmt.Sprintf("seed item %q has negative quantity", item.Name))
		}
	}

	merged := make(map[string]database.SeedItem)
	var order []string
	for _, item := range items {
		existing, seen := merged[item.Name]
		if !seen {
			merged[item.Name] = item
			order = append(order, item.Name)
			continue
		}
		switch policy {
		case SeedPolicySum:
			existing.Quantity += item.Quantity
			existing.Unit = item.Unit
			merged[item.Name] = existing
		case SeedPolicyOverwrite:
			merged[item.Name] = item
		default:
			return apperrors.NewValidationError(fmt.Sprintf("invalid seed policy %q", policy))
		}
	}

	entries := make([]database.IngredientEntry, 0, len(merged))
	for _, name := range order {
		item := merged[name]
		entries = append(entries, database.IngredientEntry{
			PlanID:        planID,
			Name:          item.Name,
			TotalQuantity: item.Quantity,
			Unit:          item.Unit,
		})
	}

	if len(entries) == 0 {
		return nil
	}
	if err := tx.Create(&entries).Error; err != nil {
		return fmt.Errorf("failed to seed ingredient pool: %w", err)
	}
	return nil
}

// Snapshot returns a read-only view of the pool, name -> quantities.
func (s *PoolService) Snapshot(ctx context.Context, planID uint) (map[string]PoolEntry, error) {
	return s.snapshotTx(s.db.WithContext(ctx), planID)
}

func (s *PoolService) snapshotTx(tx *gorm.DB, planID uint) (map[string]PoolEntry, error) {
	var entries []database.IngredientEntry
	if err := tx.Where("plan_id = ?", planID).Order("name ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load ingredient pool: %w", err)
	}

	snapshot := make(map[string]PoolEntry, len(entries))
	for _, e := range entries {
		snapshot[e.Name] = PoolEntry{
			Total:     e.TotalQuantity,
			Allocated: e.AllocatedQuantity,
			Remaining: e.Remaining(),
			Unit:      e.Unit,
		}
	}
	return snapshot, nil
}

// Debit atomically moves quantity from remaining to allocated. The WHERE
// clause guard means two racing debits cannot both pass the remaining check.
func (s *PoolService) Debit(ctx context.Context, planID uint, name string, quantity float64) error {
	return s.debitTx(s.db.WithContext(ctx), planID, name, quantity)
}

func (s *PoolService) debitTx(tx *gorm.DB, planID uint, name string, quantity float64) error {
	if quantity < 0 {
		return apperrors.NewValidationError(fmt.Sprintf("cannot debit negative quantity of %q", name))
	}
	if quantity == 0 {
		return nil
	}

	result := tx.Model(&database.IngredientEntry{}).
		Where("plan_id = ? AND name = ? AND total_quantity - allocated_quantity >= ?", planID, name, quantity).
		Updates(map[string]interface{}{
			"allocated_quantity": gorm.Expr("allocated_quantity + ?", quantity),
			"version":            gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return apperrors.NewDatabaseError(result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// Guard rejected the update: tell unknown apart from insufficient.
	var entry database.IngredientEntry
	err := tx.Where("plan_id = ? AND name = ?", planID, name).First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return apperrors.NewUnknownIngredientError(name)
	}
	if err != nil {
		return apperrors.NewDatabaseError(err)
	}
	return apperrors.NewInsufficientError(name, quantity, entry.Remaining())
}

// Credit is the inverse of Debit, floored at zero: crediting more than was
// ever allocated clamps instead of failing, so a repeated release of the
// same assignment can never error out.
func (s *PoolService) Credit(ctx context.Context, planID uint, name string, quantity float64) error {
	return s.creditTx(s.db.WithContext(ctx), planID, name, quantity)
}

func (s *PoolService) creditTx(tx *gorm.DB, planID uint, name string, quantity float64) error {
	if quantity < 0 {
		return apperrors.NewValidationError(fmt.Sprintf("cannot credit negative quantity of %q", name))
	}
	if quantity == 0 {
		return nil
	}

	result := tx.Model(&database.IngredientEntry{}).
		Where("plan_id = ? AND name = ?", planID, name).
		Updates(map[string]interface{}{
			"allocated_quantity": gorm.Expr("CASE WHEN allocated_quantity <= ? THEN 0 ELSE allocated_quantity - ? END", quantity, quantity),
			"version":            gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return apperrors.NewDatabaseError(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewUnknownIngredientError(name)
	}
	return nil
}

// SortedNames returns the snapshot's ingredient names in stable order.
func SortedNames(snapshot map[string]PoolEntry) []string {
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
