package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/myrjola/whodunit/internal/broker"
	"github.com/myrjola/whodunit/internal/cache"
	"github.com/myrjola/whodunit/internal/db"
	"github.com/myrjola/whodunit/internal/game"
	"github.com/myrjola/whodunit/internal/models"
	"github.com/myrjola/whodunit/internal/repositories"
	"github.com/myrjola/whodunit/internal/retrieval"
	"github.com/myrjola/whodunit/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct{}

func (stubGenerator) Cast(_ context.Context, _ string, _ int) ([]models.Character, error) {
	return []models.Character{
		{Role: models.RoleVictim, Name: "Elias Thorn", Backstory: "Owned the fish market."},
		{Role: models.RoleKiller, Name: "Marta Voss", Backstory: "Runs the harbor tavern and owed Elias money."},
		{Role: models.RoleSuspect, Name: "Old Tom", Backstory: "Mends nets by the pier."},
	}, nil
}

func (stubGenerator) Scenario(_ context.Context, _ string, _ []models.Character) (models.Scenario, error) {
	return models.Scenario{
		VictimName:    "Elias Thorn",
		TimeOfDeath:   "midnight",
		LocationFound: "the pier",
		MurderWeapon:  "a boat hook",
		CauseOfDeath:  "blunt trauma",
	}, nil
}

func (stubGenerator) Narration(_ context.Context, _ models.Scenario) (string, error) {
	return "Elias Thorn lies dead at the pier.", nil
}

func (stubGenerator) Introduction(_ context.Context, character models.Character, _ models.Scenario) (string, error) {
	return "I am " + character.Name + ".", nil
}

func (stubGenerator) Question(_ context.Context, _ models.Character, _ models.Scenario, _ []models.Message) (string, error) {
	return "Where were you at midnight?", nil
}

func (stubGenerator) Answer(_ context.Context, _ models.Character, _ string, _ models.Scenario, _ []models.Message) (string, error) {
	return "I was at the tavern.", nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()
	logger := testhelpers.NewLogger(io.Discard)

	dbs, err := db.NewDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbs.Close() })

	answers := broker.NewAnswerBroker()
	go answers.Start()
	t.Cleanup(answers.Stop)

	app := application{
		logger:         logger,
		sessionManager: scs.New(),
		generator:      stubGenerator{},
		intros:         cache.New[string](cache.DefaultMaxSize, cache.DefaultTTL),
		index:          retrieval.NewIndex(logger, stubEmbedder{}, retrieval.IndexOptions{}),
		caseFiles:      repositories.NewCaseFileRepository(dbs, logger),
		answers:        answers,
	}

	server := httptest.NewServer(app.routes())
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := server.Client()
	client.Jar = jar
	return server, client
}

func postJSON(t *testing.T, client *http.Client, url string, body string) *http.Response {
	t.Helper()
	response, err := client.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	return response
}

func decodeJSON[T any](t *testing.T, response *http.Response) T {
	t.Helper()
	defer func() { _ = response.Body.Close() }()
	var v T
	require.NoError(t, json.NewDecoder(response.Body).Decode(&v))
	return v
}

func TestAPIFullInvestigation(t *testing.T) {
	server, client := newTestServer(t)

	// No game yet.
	response, err := client.Get(server.URL + "/api/game")
	require.NoError(t, err)
	_ = response.Body.Close()
	require.Equal(t, http.StatusNotFound, response.StatusCode)

	// Start a game.
	response = postJSON(t, client, server.URL+"/api/game", `{"environment":"harbor town"}`)
	require.Equal(t, http.StatusCreated, response.StatusCode)
	created := decodeJSON[gameView](t, response)
	assert.Equal(t, game.PhaseSelecting, created.Phase)
	assert.Equal(t, "Elias Thorn lies dead at the pier.", created.Narration)
	require.Len(t, created.Characters, 3)
	assert.True(t, created.Characters[0].Victim)

	// Selecting the victim is rejected.
	response = postJSON(t, client, server.URL+"/api/select", `{"index":0}`)
	_ = response.Body.Close()
	require.Equal(t, http.StatusBadRequest, response.StatusCode)

	// Interview the tavern keeper.
	response = postJSON(t, client, server.URL+"/api/select", `{"index":1}`)
	require.Equal(t, http.StatusOK, response.StatusCode)
	selected := decodeJSON[selectResponse](t, response)
	assert.Equal(t, "Marta Voss", selected.Character)
	assert.Contains(t, selected.Introduction, "Marta Voss")

	response = postJSON(t, client, server.URL+"/api/question", `{"text":"Where were you?"}`)
	require.Equal(t, http.StatusOK, response.StatusCode)
	answered := decodeJSON[questionResponse](t, response)
	assert.Equal(t, "I was at the tavern.", answered.Answer)
	assert.False(t, answered.Ended)
	assert.Equal(t, 1, answered.TurnCount)

	// Blank questions are rejected without costing a turn.
	response = postJSON(t, client, server.URL+"/api/question", `{"text":"  "}`)
	_ = response.Body.Close()
	require.Equal(t, http.StatusBadRequest, response.StatusCode)

	// The exit token ends the conversation and folds it into the session.
	response = postJSON(t, client, server.URL+"/api/question", `{"text":"Thank you, exit."}`)
	require.Equal(t, http.StatusOK, response.StatusCode)
	ended := decodeJSON[questionResponse](t, response)
	assert.True(t, ended.Ended)
	assert.Equal(t, 2, ended.TotalActions)

	// Wrong accusation consumes a guess and reopens selection.
	response = postJSON(t, client, server.URL+"/api/accuse", `{"name":"Old Tom"}`)
	require.Equal(t, http.StatusOK, response.StatusCode)
	wrong := decodeJSON[accuseResponse](t, response)
	assert.False(t, wrong.Correct)
	assert.Equal(t, game.PhaseSelecting, wrong.Phase)
	assert.Equal(t, 2, wrong.GuessesLeft)
	assert.Empty(t, wrong.Killer)

	// Correct accusation wins and reveals the killer.
	response = postJSON(t, client, server.URL+"/api/accuse", `{"name":"Marta Voss"}`)
	require.Equal(t, http.StatusOK, response.StatusCode)
	correct := decodeJSON[accuseResponse](t, response)
	assert.True(t, correct.Correct)
	assert.Equal(t, game.PhaseWon, correct.Phase)
	assert.Equal(t, "Marta Voss", correct.Killer)

	// The finished game is archived and cleared from the session.
	response, err = client.Get(server.URL + "/api/game")
	require.NoError(t, err)
	_ = response.Body.Close()
	require.Equal(t, http.StatusNotFound, response.StatusCode)

	response, err = client.Get(server.URL + "/api/cases")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, response.StatusCode)
	cases := decodeJSON[[]models.ClosedCase](t, response)
	require.Len(t, cases, 1)
	assert.Equal(t, models.OutcomeSolved, cases[0].Outcome)
	assert.Equal(t, "harbor town", cases[0].Environment)
	assert.Contains(t, cases[0].Transcript, "Where were you?")
}

func TestAPIStartGameValidation(t *testing.T) {
	server, client := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing environment", body: `{}`},
		{name: "cast too small", body: `{"environment":"harbor town","cast_size":2}`},
		{name: "negative guesses", body: `{"environment":"harbor town","guesses":-1}`},
		{name: "negative action limit", body: `{"environment":"harbor town","action_limit":-5}`},
		{name: "negative turn cap", body: `{"environment":"harbor town","max_turns":-1}`},
		{name: "malformed body", body: `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response := postJSON(t, client, server.URL+"/api/game", tt.body)
			_ = response.Body.Close()
			assert.Equal(t, http.StatusBadRequest, response.StatusCode)
		})
	}
}

func TestAPIHealthyAndCacheStats(t *testing.T) {
	server, client := newTestServer(t)

	response, err := client.Get(server.URL + "/api/healthy")
	require.NoError(t, err)
	body, err := io.ReadAll(response.Body)
	_ = response.Body.Close()
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	response, err = client.Get(server.URL + "/api/cache-stats")
	require.NoError(t, err)
	stats := decodeJSON[map[string]any](t, response)
	assert.Contains(t, stats, "introductions")
	assert.Contains(t, stats, "index")
}

func TestAPISecureHeaders(t *testing.T) {
	server, client := newTestServer(t)

	response, err := client.Get(server.URL + "/api/healthy")
	require.NoError(t, err)
	_ = response.Body.Close()
	assert.Equal(t, "nosniff", response.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "deny", response.Header.Get("X-Frame-Options"))
}

func TestAPIStreamWithoutProducerClosesImmediately(t *testing.T) {
	server, client := newTestServer(t)

	response := postJSON(t, client, server.URL+"/api/game", `{"environment":"harbor town"}`)
	_ = response.Body.Close()
	require.Equal(t, http.StatusCreated, response.StatusCode)

	response, err := client.Get(server.URL + "/api/stream")
	require.NoError(t, err)
	body, err := io.ReadAll(response.Body)
	_ = response.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "text/event-stream", response.Header.Get("Content-Type"))
	assert.True(t, strings.Contains(string(body), "event: done"), fmt.Sprintf("body: %q", body))
}
