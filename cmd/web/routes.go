package main

import (
	"net/http"

	"github.com/justinas/alice"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	session := alice.New(app.sessionManager.LoadAndSave)

	mux.Handle("GET /api/healthy", http.HandlerFunc(app.healthy))
	mux.Handle("GET /api/cache-stats", http.HandlerFunc(app.cacheStats))
	mux.Handle("GET /api/cases", http.HandlerFunc(app.listCases))

	mux.Handle("POST /api/game", session.ThenFunc(app.startGame))
	mux.Handle("GET /api/game", session.ThenFunc(app.showGame))
	mux.Handle("POST /api/select", session.ThenFunc(app.selectCharacter))
	mux.Handle("POST /api/suggest", session.ThenFunc(app.suggestQuestion))
	mux.Handle("POST /api/question", session.ThenFunc(app.askQuestion))
	mux.Handle("POST /api/leave", session.ThenFunc(app.leaveConversation))
	mux.Handle("POST /api/accuse", session.ThenFunc(app.accuse))

	// SSE needs manual session loading to avoid buffering the response.
	mux.Handle("GET /api/stream", app.serverSentEventMiddleware(http.HandlerFunc(app.streamAnswer)))

	return app.recoverPanic(app.logRequest(secureHeaders(mux)))
}
