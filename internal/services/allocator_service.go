package services

import (
	"context"
	"fmt"

	"github.com/sundaybox/weekplanner/internal/database"
	apperrors "github.com/sundaybox/weekplanner/internal/errors"
	"gorm.io/gorm"
)

// AllocatorService grants or refuses sets of ingredient quantities against a
// plan's pool. A request is all-or-nothing: either every line is debited
// inside one transaction or the pool is left untouched and the caller gets a
// ConflictError listing every refused line.
type AllocatorService struct {
	db   *gorm.DB
	pool *PoolService
}

func NewAllocatorService(db *gorm.DB, pool *PoolService) *AllocatorService {
	return &AllocatorService{db: db, pool: pool}
}

// Check is a pure dry run. An empty result means the request is grantable.
// Repeated names in one request are checked cumulatively.
func (s *AllocatorService) Check(ctx context.Context, planID uint, requested []database.IngredientRequest) ([]apperrors.Conflict, error) {
	return s.checkTx(s.db.WithContext(ctx), planID, requested, nil)
}

// checkTx evaluates the request against the pool. held holds quantities the
// caller already has allocated (the assignment being replaced); those count
// as available so swapping an ingredient for itself is not refused.
func (s *AllocatorService) checkTx(tx *gorm.DB, planID uint, requested []database.IngredientRequest, held map[string]float64) ([]apperrors.Conflict, error) {
	names := make([]string, 0, len(requested))
	for _, req := range requested {
		names = append(names, req.Name)
	}

	var entries []database.IngredientEntry
	if len(names) > 0 {
		if err := tx.Where("plan_id = ? AND name IN ?", planID, names).Find(&entries).Error; err != nil {
			return nil, fmt.Errorf("failed to load pool entries: %w", err)
		}
	}
	byName := make(map[string]database.IngredientEntry, len(entries))
	for _, e := range entries {
		byName[e.Name] = e
	}

	var conflicts []apperrors.Conflict
	pending := make(map[string]float64)
	for _, req := range requested {
		if req.Quantity < 0 {
			return nil, apperrors.NewValidationError(fmt.Sprintf("requested negative quantity of %q", req.Name))
		}

		entry, ok := byName[req.Name]
		if !ok {
			conflicts = append(conflicts, apperrors.Conflict{
				Ingredient: req.Name,
				Requested:  req.Quantity,
				Available:  0,
				Unit:       req.Unit,
				Issue:      apperrors.IssueUnknown,
			})
			continue
		}

		available := entry.Remaining() + held[req.Name] - pending[req.Name]
		if req.Quantity > available {
			conflicts = append(conflicts, apperrors.Conflict{
				Ingredient: req.Name,
				Requested:  req.Quantity,
				Available:  available,
				Unit:       entry.Unit,
				Issue:      apperrors.IssueInsufficient,
			})
			continue
		}
		pending[req.Name] += req.Quantity
	}
	return conflicts, nil
}

// Allocate debits every requested ingredient, or nothing. Conflicts are the
// only expected failure and carry the full refused list.
func (s *AllocatorService) Allocate(ctx context.Context, planID uint, requested []database.IngredientRequest) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.allocateTx(tx, planID, requested)
	})
}

func (s *AllocatorService) allocateTx(tx *gorm.DB, planID uint, requested []database.IngredientRequest) error {
	conflicts, err := s.checkTx(tx, planID, requested, nil)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &apperrors.ConflictError{PlanID: planID, Conflicts: conflicts}
	}

	for _, req := range requested {
		if err := s.pool.debitTx(tx, planID, req.Name, req.Quantity); err != nil {
			// A racing writer got between check and debit; the rollback
			// discards any debits already applied.
			if conflicts, cerr := s.checkTx(tx, planID, requested, nil); cerr == nil && len(conflicts) > 0 {
				return &apperrors.ConflictError{PlanID: planID, Conflicts: conflicts}
			}
			return err
		}
	}
	return nil
}

// Release credits every listed ingredient back to the pool. It always
// succeeds: credits clamp at zero and names no longer in the pool are
// skipped, so releasing twice is a no-op beyond the first.
func (s *AllocatorService) Release(ctx context.Context, planID uint, requested []database.IngredientRequest) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.releaseTx(tx, planID, requested)
	})
}

func (s *AllocatorService) releaseTx(tx *gorm.DB, planID uint, requested []database.IngredientRequest) error {
	for _, req := range requested {
		if err := s.pool.creditTx(tx, planID, req.Name, req.Quantity); err != nil {
			if apperrors.IsNotFound(err) {
				continue
			}
			return err
		}
	}
	return nil
}
