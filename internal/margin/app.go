// Package margin wires the application's services together.
package margin

import (
	"github.com/colonyops/margin/internal/core/config"
	"github.com/colonyops/margin/internal/core/session"
	"github.com/colonyops/margin/internal/data/db"
	"github.com/colonyops/margin/internal/data/stores"
	"github.com/colonyops/margin/internal/optimizer"
)

// App is the central entry point for all margin operations. Commands and
// TUI consume App instead of cherry-picking raw dependencies.
type App struct {
	Config   *config.Config
	DB       *db.DB
	Sessions session.Store
	Feedback *stores.FeedbackStore

	// Optimizer is nil when no backend URL is configured.
	Optimizer *optimizer.Client

	Build string
}

// NewApp constructs an App from explicit dependencies.
func NewApp(cfg *config.Config, database *db.DB, client *optimizer.Client, build string) *App {
	return &App{
		Config:    cfg,
		DB:        database,
		Sessions:  stores.NewSessionStore(database),
		Feedback:  stores.NewFeedbackStore(database),
		Optimizer: client,
		Build:     build,
	}
}

// Online reports whether a backend client is configured.
func (a *App) Online() bool {
	return a.Optimizer != nil
}
