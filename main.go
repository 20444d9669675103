package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sundaybox/weekplanner/internal/config"
	"github.com/sundaybox/weekplanner/internal/database"
	apperrors "github.com/sundaybox/weekplanner/internal/errors"
	"github.com/sundaybox/weekplanner/internal/harvester"
	"github.com/sundaybox/weekplanner/internal/interfaces"
	"github.com/sundaybox/weekplanner/internal/logger"
	"github.com/sundaybox/weekplanner/internal/services"
	"github.com/sundaybox/weekplanner/internal/session"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting weekly box planner...")

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.InitWithConfig(logger.Config{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	}); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	if cfg.CartURL == "" {
		log.Fatalf("CART_URL is required")
	}
	if cfg.GeminiAPIKey == "" {
		log.Fatalf("GEMINI_API_KEY is required")
	}

	db, err := database.NewPostgresDB(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Info("Database connection established and migrations completed")

	seedPolicy, err := services.ParseSeedPolicy(cfg.Seed.DuplicatePolicy)
	if err != nil {
		log.Fatalf("Invalid seed policy: %v", err)
	}

	// Initialize services
	poolService := services.NewPoolService(db)
	allocatorService := services.NewAllocatorService(db, poolService)
	assignmentService := services.NewAssignmentService(db, allocatorService)
	planService := services.NewPlanService(db, poolService, assignmentService, seedPolicy)
	suggesterService := services.NewSuggesterService(cfg.GeminiAPIKey)
	cartHarvester := harvester.New()
	logger.Info("Services initialized successfully")

	// Session registry: Redis when configured, in-memory otherwise
	var sessions session.Registry
	if cfg.Redis.Enabled() {
		sessions, err = session.NewRedisManager(cfg.Redis.Host, cfg.Redis.Port, cfg.Session.TTL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		logger.Info("Using Redis session registry")
	} else {
		sessions = session.NewManager(cfg.Session.TTL)
		logger.Info("Using in-memory session registry")
	}
	defer sessions.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session.StartSweeper(ctx, sessions, cfg.Session.SweepInterval)

	if err := planWeek(ctx, cfg, planService, assignmentService, suggesterService, cartHarvester, sessions); err != nil {
		errHandler := apperrors.NewHandler(logger.GetLogger())
		errHandler.Handle(ctx, err)
		os.Exit(1)
	}
}

// planWeek runs the weekly pipeline: harvest the cart, open the plan, ask
// the suggester for meals and assign the weekdays that are still empty.
func planWeek(
	ctx context.Context,
	cfg *config.Config,
	plans interfaces.PlanServiceInterface,
	assignments interfaces.AssignmentServiceInterface,
	suggester interfaces.MealSuggesterInterface,
	cart interfaces.CartHarvesterInterface,
	sessions session.Registry,
) error {
	items, err := cart.FetchCart(ctx, cfg.CartURL)
	if err != nil {
		return err
	}
	logger.Info("Harvested cart", "items", len(items))

	now := time.Now()
	if _, err := plans.Create(ctx, cfg.Owner, now, items); err != nil {
		if !errors.Is(err, apperrors.ErrPlanExists) {
			return err
		}
		logger.Info("Plan already exists for this week, resuming")
	}

	view, err := plans.Get(ctx, cfg.Owner, now)
	if err != nil {
		return err
	}

	sess, err := sessions.Create(ctx, cfg.Owner, "pipeline")
	if err != nil {
		return err
	}
	if err := sessions.AttachPlan(ctx, sess.Token, view.ID); err != nil {
		return err
	}
	logger.Info("Session issued", "token", sess.Token, "expires_at", sess.ExpiresAt)

	var missing []string
	for _, day := range database.Weekdays {
		if _, ok := view.Assignments[day]; !ok {
			missing = append(missing, day)
		}
	}

	if len(missing) > 0 {
		suggestions, err := suggester.SuggestWeek(ctx, view.IngredientPool, missing)
		if err != nil {
			return err
		}

		for _, day := range missing {
			suggestion, ok := suggestions[day]
			if !ok {
				logger.Warn("Suggester returned no meal", "day", day)
				continue
			}
			if _, err := assignments.Assign(ctx, view.ID, day, suggestion.Meal, suggestion.Ingredients); err != nil {
				if conflict, ok := apperrors.AsConflict(err); ok {
					logger.Warn("Skipping day, allocation refused",
						"day", day, "conflicts", len(conflict.Conflicts))
					continue
				}
				return err
			}
			logger.Info("Assigned meal", "day", day, "title", suggestion.Meal.Title)
		}
	}

	view, err = plans.Get(ctx, cfg.Owner, now)
	if err != nil {
		return err
	}
	if len(view.Assignments) >= len(database.Weekdays) {
		if err := plans.SetStatus(ctx, view.ID, database.StatusComplete); err != nil {
			return err
		}
		view.Status = database.StatusComplete
	}

	// The read view is what SMS/PDF rendering consumes downstream.
	encoded, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))

	return nil
}
