package main

import (
	"context"
	"encoding/gob"
	"net/http"

	"github.com/myrjola/whodunit/internal/game"
	"github.com/myrjola/whodunit/internal/models"
)

const gameStateSessionKey = "gameState"

func init() {
	gob.Register(game.State{})
	gob.Register(models.Character{})
	gob.Register(models.Message{})
}

// loadGame rebuilds the game session stored in the HTTP session, if any.
func (app *application) loadGame(r *http.Request) (*game.Session, bool) {
	value := app.sessionManager.Get(r.Context(), gameStateSessionKey)
	state, ok := value.(game.State)
	if !ok {
		return nil, false
	}
	return game.RestoreSession(r.Context(), app.logger, app.generator, app.intros, app.index, state), true
}

func (app *application) saveGame(ctx context.Context, session *game.Session) {
	app.sessionManager.Put(ctx, gameStateSessionKey, session.Snapshot())
}

func (app *application) clearGame(ctx context.Context) {
	app.sessionManager.Remove(ctx, gameStateSessionKey)
}
