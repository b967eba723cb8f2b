package cli

import (
	"github.com/medfolio/medfolio/internal/entitlement/application"
)

// App holds the CLI application dependencies.
type App struct {
	Entitlements *application.Service

	// CurrentUserID is the signed-in account the CLI operates on.
	CurrentUserID string
}

// NewApp creates a CLI app with the given entitlement service.
func NewApp(entitlements *application.Service) *App {
	return &App{Entitlements: entitlements}
}

// SetCurrentUserID sets the account the CLI operates on.
func (a *App) SetCurrentUserID(userID string) {
	a.CurrentUserID = userID
}

var app *App

// SetApp sets the global CLI app instance used by subcommands.
func SetApp(a *App) {
	app = a
}

// GetApp returns the CLI app instance.
func GetApp() *App {
	return app
}
