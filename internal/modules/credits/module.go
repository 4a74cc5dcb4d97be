// Package credits wires the ledger domain: store selection, services and handlers.
package credits

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/core/audit"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/core/export"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/handlers"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/models"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/repositories"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/services"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/shared/config"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/shared/database"
)

// OpenStore opens the backend named by cfg.StoreDriver
func OpenStore(cfg *config.Config) (repositories.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := database.NewDB(cfg.DatabaseURL, cfg.Env)
		if err != nil {
			return nil, err
		}
		return repositories.NewGormStore(db.GORM), nil
	case config.DriverSQLite:
		store, err := repositories.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("✅ SQLite store opened")
		return store, nil
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER %q (use postgres or sqlite)", cfg.StoreDriver)
}

// Module holds every service built on one store
type Module struct {
	Store        repositories.Store
	Credits      *services.CreditService
	Referrals    *services.ReferralService
	Gamification *services.GamificationService
	Missions     *services.MissionService
	Signup       *services.SignupService
	Usage        *services.UsageService
	ResetJob     *services.ResetJob
	Audit        *audit.Service
}

// NewModule builds the services from cfg
func NewModule(store repositories.Store, cfg *config.Config, opts ...services.Option) *Module {
	opts = append([]services.Option{services.WithMaxRetries(cfg.TxMaxRetries)}, opts...)

	credits := services.NewCreditService(store, services.CreditConfig{
		StartingBonus: map[models.Tier]int64{
			models.TierFree:       cfg.BonusFree,
			models.TierBeta:       cfg.BonusBeta,
			models.TierSubscriber: cfg.BonusSubscriber,
		},
		BetaDuration: time.Duration(cfg.BetaDays) * 24 * time.Hour,
	}, opts...)
	referrals := services.NewReferralService(store, credits, services.ReferralConfig{
		SignupBonus:        cfg.ReferralSignupBonus,
		FirstPurchaseBonus: cfg.ReferralFirstPurchaseBonus,
		PublicBaseURL:      cfg.PublicBaseURL,
	}, opts...)
	gamification := services.NewGamificationService(store, credits, services.DefaultGamificationConfig(), opts...)
	missions := services.NewMissionService(store, credits, opts...)

	return &Module{
		Store:        store,
		Credits:      credits,
		Referrals:    referrals,
		Gamification: gamification,
		Missions:     missions,
		Signup:       services.NewSignupService(credits, referrals),
		Usage:        services.NewUsageService(store, credits, gamification, missions, opts...),
		ResetJob:     services.NewResetJob(store, cfg.ResetMaxAttempts, opts...),
		Audit:        audit.NewService(store),
	}
}

// Handlers builds the HTTP handlers for the module
func (m *Module) Handlers(driver string) handlers.Handlers {
	return handlers.Handlers{
		Health:       handlers.NewHealthHandler(m.Store, driver),
		Accounts:     handlers.NewAccountHandler(m.Credits, m.Signup, export.NewService()),
		Tools:        handlers.NewToolHandler(m.Usage),
		Referrals:    handlers.NewReferralHandler(m.Referrals),
		Gamification: handlers.NewGamificationHandler(m.Gamification, m.Missions),
		Admin:        handlers.NewAdminHandler(m.Credits, m.ResetJob, m.Audit),
	}
}
