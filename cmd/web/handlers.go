package main

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/myrjola/whodunit/internal/errors"
	"github.com/myrjola/whodunit/internal/game"
	"github.com/myrjola/whodunit/internal/models"
)

// healthy responds with a JSON object indicating that the server is healthy.
func (app *application) healthy(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

type characterView struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Victim  bool   `json:"victim"`
	Visited bool   `json:"visited"`
}

// gameView is the player-facing projection of the session. Character roles
// stay hidden until the session is over; the killer is only revealed in a
// terminal phase.
type gameView struct {
	ID           string           `json:"id"`
	Phase        game.Phase       `json:"phase"`
	Narration    string           `json:"narration,omitempty"`
	Characters   []characterView  `json:"characters"`
	GuessesLeft  int              `json:"guesses_left"`
	TotalActions int              `json:"total_actions"`
	ActionLimit  int              `json:"action_limit,omitempty"`
	Killer       string           `json:"killer,omitempty"`
	Log          []models.Message `json:"log"`
}

func newGameView(session *game.Session) gameView {
	visited := session.Visited()
	var characters []characterView
	for i, character := range session.Cast() {
		characters = append(characters, characterView{
			Index:   i,
			Name:    character.Name,
			Victim:  character.Role == models.RoleVictim,
			Visited: visited[i],
		})
	}
	view := gameView{
		ID:           session.ID(),
		Phase:        session.Phase(),
		Narration:    session.Narration(),
		Characters:   characters,
		GuessesLeft:  session.GuessesLeft(),
		TotalActions: session.TotalActions(),
		ActionLimit:  session.ActionLimit(),
		Killer:       "",
		Log:          session.Log(),
	}
	if session.Phase().Terminal() {
		if killer, ok := session.Killer(); ok {
			view.Killer = killer.Name
		}
	}
	return view
}

type startGameRequest struct {
	Environment string `json:"environment"`
	CastSize    int    `json:"cast_size"`
	Guesses     int    `json:"guesses"`
	ActionLimit int    `json:"action_limit"`
	MaxTurns    int    `json:"max_turns"`
}

func (app *application) startGame(w http.ResponseWriter, r *http.Request) {
	var request startGameRequest
	if !app.readJSON(w, r, &request) {
		return
	}
	if strings.TrimSpace(request.Environment) == "" {
		app.clientError(w, r, http.StatusBadRequest, "environment is required")
		return
	}
	if request.CastSize == 0 {
		request.CastSize = 5
	}
	if request.CastSize < 3 {
		app.clientError(w, r, http.StatusBadRequest, "cast_size must be at least 3")
		return
	}
	if request.Guesses == 0 {
		request.Guesses = 3
	}
	if request.Guesses < 1 {
		app.clientError(w, r, http.StatusBadRequest, "guesses must be at least 1")
		return
	}
	if request.ActionLimit < 0 {
		app.clientError(w, r, http.StatusBadRequest, "action_limit must not be negative")
		return
	}
	if request.MaxTurns < 0 {
		app.clientError(w, r, http.StatusBadRequest, "max_turns must not be negative")
		return
	}

	session := game.NewSession(app.logger, app.generator, app.intros, app.index, game.Config{
		Environment: request.Environment,
		CastSize:    request.CastSize,
		Guesses:     request.Guesses,
		ActionLimit: request.ActionLimit,
		MaxTurns:    request.MaxTurns,
	})
	if err := session.Begin(r.Context()); err != nil {
		app.serverError(w, r, err)
		return
	}

	app.saveGame(r.Context(), session)
	app.writeJSON(w, r, http.StatusCreated, newGameView(session))
}

func (app *application) showGame(w http.ResponseWriter, r *http.Request) {
	session, ok := app.loadGame(r)
	if !ok {
		app.clientError(w, r, http.StatusNotFound, "no game in progress")
		return
	}
	app.writeJSON(w, r, http.StatusOK, newGameView(session))
}

type selectRequest struct {
	Index int `json:"index"`
}

type selectResponse struct {
	Character    string `json:"character"`
	Introduction string `json:"introduction"`
}

func (app *application) selectCharacter(w http.ResponseWriter, r *http.Request) {
	session, ok := app.loadGame(r)
	if !ok {
		app.clientError(w, r, http.StatusNotFound, "no game in progress")
		return
	}
	var request selectRequest
	if !app.readJSON(w, r, &request) {
		return
	}

	if err := session.Select(request.Index); err != nil {
		switch {
		case errors.Is(err, game.ErrInvalidSelection):
			app.clientError(w, r, http.StatusBadRequest, "character cannot be interviewed")
		case errors.Is(err, game.ErrWrongPhase):
			app.saveGame(r.Context(), session)
			app.clientError(w, r, http.StatusConflict, "selection is not open")
		default:
			app.serverError(w, r, err)
		}
		return
	}

	introduction, err := session.Conversation().Introduce(r.Context())
	if err != nil {
		session.EndConversation()
		app.saveGame(r.Context(), session)
		app.serverError(w, r, err)
		return
	}

	app.saveGame(r.Context(), session)
	app.writeJSON(w, r, http.StatusOK, selectResponse{
		Character:    session.Conversation().Character().Name,
		Introduction: introduction,
	})
}

type suggestResponse struct {
	Question string `json:"question"`
}

func (app *application) suggestQuestion(w http.ResponseWriter, r *http.Request) {
	session, ok := app.loadGame(r)
	if !ok {
		app.clientError(w, r, http.StatusNotFound, "no game in progress")
		return
	}
	conversation := session.Conversation()
	if conversation == nil {
		app.clientError(w, r, http.StatusConflict, "no conversation in progress")
		return
	}

	question, err := conversation.SuggestQuestion(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, suggestResponse{Question: question})
}

type questionRequest struct {
	Text string `json:"text"`
}

type questionResponse struct {
	Answer       string `json:"answer"`
	Ended        bool   `json:"ended"`
	TurnCount    int    `json:"turn_count"`
	TotalActions int    `json:"total_actions"`
}

func (app *application) askQuestion(w http.ResponseWriter, r *http.Request) {
	session, ok := app.loadGame(r)
	if !ok {
		app.clientError(w, r, http.StatusNotFound, "no game in progress")
		return
	}
	conversation := session.Conversation()
	if conversation == nil {
		app.clientError(w, r, http.StatusConflict, "no conversation in progress")
		return
	}
	var request questionRequest
	if !app.readJSON(w, r, &request) {
		return
	}

	// Publish the delta stream so an SSE consumer can render the answer as it
	// is generated. Sends do not block; when nobody is listening the deltas
	// are dropped and the complete answer is still returned below.
	deltas := make(chan string, 64)
	app.answers.Publish(session.ID(), deltas)
	conversation.OnAnswerDelta = func(delta string) {
		select {
		case deltas <- delta:
		default:
		}
	}
	defer func() {
		close(deltas)
		app.answers.Unpublish(session.ID())
	}()

	answer, ended, err := conversation.Ask(r.Context(), request.Text)
	if err != nil {
		switch {
		case errors.Is(err, game.ErrEmptyQuestion):
			app.clientError(w, r, http.StatusBadRequest, "question must not be blank")
		case errors.Is(err, game.ErrConversationEnded):
			app.clientError(w, r, http.StatusConflict, "conversation has ended")
		default:
			app.serverError(w, r, err)
		}
		return
	}

	turnCount := conversation.TurnCount()
	if ended {
		session.EndConversation()
	}
	app.saveGame(r.Context(), session)
	app.writeJSON(w, r, http.StatusOK, questionResponse{
		Answer:       answer,
		Ended:        ended,
		TurnCount:    turnCount,
		TotalActions: session.TotalActions(),
	})
}

func (app *application) leaveConversation(w http.ResponseWriter, r *http.Request) {
	session, ok := app.loadGame(r)
	if !ok {
		app.clientError(w, r, http.StatusNotFound, "no game in progress")
		return
	}

	session.EndConversation()
	app.saveGame(r.Context(), session)
	app.writeJSON(w, r, http.StatusOK, newGameView(session))
}

type accuseRequest struct {
	Name string `json:"name"`
}

type accuseResponse struct {
	Correct     bool       `json:"correct"`
	Phase       game.Phase `json:"phase"`
	GuessesLeft int        `json:"guesses_left"`
	Killer      string     `json:"killer,omitempty"`
}

func (app *application) accuse(w http.ResponseWriter, r *http.Request) {
	session, ok := app.loadGame(r)
	if !ok {
		app.clientError(w, r, http.StatusNotFound, "no game in progress")
		return
	}
	var request accuseRequest
	if !app.readJSON(w, r, &request) {
		return
	}

	if session.Phase() == game.PhaseSelecting {
		if err := session.ProceedToAccusation(); err != nil {
			app.clientError(w, r, http.StatusConflict, "accusation is not open")
			return
		}
	}

	correct, err := session.Accuse(request.Name)
	if err != nil {
		switch {
		case errors.Is(err, game.ErrInvalidAccusation):
			app.clientError(w, r, http.StatusBadRequest, "accused is not a suspect")
		case errors.Is(err, game.ErrWrongPhase):
			app.clientError(w, r, http.StatusConflict, "accusation is not open")
		default:
			app.serverError(w, r, err)
		}
		return
	}

	response := accuseResponse{
		Correct:     correct,
		Phase:       session.Phase(),
		GuessesLeft: session.GuessesLeft(),
		Killer:      "",
	}
	if session.Phase().Terminal() {
		if killer, killerFound := session.Killer(); killerFound {
			response.Killer = killer.Name
		}
		app.archiveGame(r, session)
		app.clearGame(r.Context())
	} else {
		app.saveGame(r.Context(), session)
	}
	app.writeJSON(w, r, http.StatusOK, response)
}

func (app *application) archiveGame(r *http.Request, session *game.Session) {
	outcome := models.OutcomeUnsolved
	if session.Phase() == game.PhaseWon {
		outcome = models.OutcomeSolved
	}
	killerName := ""
	if killer, ok := session.Killer(); ok {
		killerName = killer.Name
	}
	closedCase := models.ClosedCase{
		ID:          session.ID(),
		Environment: session.Environment(),
		Outcome:     outcome,
		Killer:      killerName,
		Actions:     session.TotalActions(),
		GuessesLeft: session.GuessesLeft(),
		Transcript:  formatTranscript(session.Log()),
		ClosedAt:    time.Now().UTC(),
	}
	if err := app.caseFiles.Archive(r.Context(), closedCase); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelError, "archive failed", errors.SlogError(err))
	}
}

func formatTranscript(log []models.Message) string {
	var b strings.Builder
	for _, message := range log {
		b.WriteString(string(message.Speaker))
		b.WriteString(": ")
		b.WriteString(message.Text)
		b.WriteString("\n")
	}
	return b.String()
}

type cacheStatsResponse struct {
	Introductions any `json:"introductions"`
	Index         any `json:"index"`
}

func (app *application) cacheStats(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusOK, cacheStatsResponse{
		Introductions: app.intros.Stats(),
		Index:         app.index.Stats(),
	})
}

func (app *application) listCases(w http.ResponseWriter, r *http.Request) {
	cases, err := app.caseFiles.List(r.Context(), 50)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	if cases == nil {
		cases = []models.ClosedCase{}
	}
	app.writeJSON(w, r, http.StatusOK, cases)
}

// streamAnswer forwards the in-flight answer's deltas over SSE. When no
// answer is being generated, the stream closes immediately and the client
// should fall back to the conversation log.
func (app *application) streamAnswer(w http.ResponseWriter, r *http.Request) {
	session, ok := app.loadGame(r)
	if !ok {
		app.clientError(w, r, http.StatusNotFound, "no game in progress")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		app.serverError(w, r, errors.New("response writer does not support flushing"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	deltas, ok := <-app.answers.Subscribe(session.ID())
	if !ok {
		_, _ = w.Write([]byte("event: done\ndata: \n\n"))
		flusher.Flush()
		return
	}
	for delta := range deltas {
		for _, line := range strings.Split(delta, "\n") {
			_, _ = w.Write([]byte("data: " + line + "\n"))
		}
		_, _ = w.Write([]byte("\n"))
		flusher.Flush()
	}
	_, _ = w.Write([]byte("event: done\ndata: \n\n"))
	flusher.Flush()
}
