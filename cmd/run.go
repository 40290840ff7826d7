package cmd

import (
	"context"
	"fmt"
	"time"

	"crateclash/config"
	"crateclash/database"
	"crateclash/engine"
	"crateclash/events"
	"crateclash/repository"
	"crateclash/service"

	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the resolution engine
func Run(ctx context.Context) error {
	log.Info("Starting crateclash resolution engine...")

	// Load configuration
	cfg := config.Get()

	// Load the house game tables
	tables, err := loadTables(cfg)
	if err != nil {
		return err
	}

	// Initialize database connection
	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize event bus and unit of work factory
	eventBus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	// The game and user services are the embedding surface; this process
	// runs the settlement side of the engine.
	settlementService := service.NewSettlementService(uowFactory, tables)

	// XP accrual listens for stakes and never blocks them
	xpListener := service.NewXPListener(uowFactory, cfg.XPRateBps)
	xpListener.Register(eventBus)

	// Settlement worker: picks up locked games and resumes stuck ones
	go runSettlementWorker(ctx, settlementService, cfg)

	log.WithField("environment", cfg.Environment).Info("Resolution engine is running")
	<-ctx.Done()

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db.Close()

	select {
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout exceeded")
	case <-time.After(1 * time.Second):
		log.Info("Shutdown completed")
	}

	return nil
}

func loadTables(cfg *config.Config) (*engine.Config, error) {
	if cfg.GameTablesPath == "" {
		log.Warn("No game tables configured, using zero fees and empty crate catalog")
		return config.DefaultGameTables(), nil
	}
	tables, err := config.LoadGameTables(cfg.GameTablesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load game tables: %w", err)
	}
	log.WithField("path", cfg.GameTablesPath).Info("Game tables loaded")
	return tables, nil
}

// runSettlementWorker drives the settlement pipeline: a fast ticker settles
// freshly locked games, a slower one sweeps games stuck in resolving after a
// crash.
func runSettlementWorker(ctx context.Context, settlements service.SettlementService, cfg *config.Config) {
	settleTicker := time.NewTicker(cfg.SettleInterval)
	defer settleTicker.Stop()
	sweepTicker := time.NewTicker(cfg.SweepInterval)
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-settleTicker.C:
			if err := settlements.SettleLocked(ctx); err != nil {
				log.WithError(err).Error("Settlement pass failed")
			}
		case <-sweepTicker.C:
			if err := settlements.SweepStuck(ctx, cfg.ResolvingTimeout); err != nil {
				log.WithError(err).Error("Stuck settlement sweep failed")
			}
		}
	}
}
