package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/myrjola/whodunit/internal/game"
	"github.com/myrjola/whodunit/internal/models"
)

// terminalPrompter runs the interactive session on a terminal. Questions
// starting with "?" are composed by the detective's assistant instead of
// typed out in full.
type terminalPrompter struct {
	reader *bufio.Reader
	out    io.Writer
}

func (p *terminalPrompter) readLine(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.reader.ReadString('\n')
	if err != nil && strings.TrimSpace(line) == "" {
		// Closed stdin means the player is gone. The caller unwinds so
		// deferred cleanup and case archiving still run.
		fmt.Fprintln(p.out, "\nGoodbye.")
		return "", game.ErrAborted
	}
	return strings.TrimSpace(line), nil
}

func (p *terminalPrompter) ShowNarration(text string) {
	fmt.Fprintf(p.out, "\n--- The scene ---\n%s\n", text)
}

func (p *terminalPrompter) ShowIntroduction(character models.Character, text string) {
	fmt.Fprintf(p.out, "\n%s:\n%s\n", character.Name, text)
}

func (p *terminalPrompter) ShowQuestion(character models.Character, text string) {
	fmt.Fprintf(p.out, "\nYou ask %s:\n%s\n", character.Name, text)
}

func (p *terminalPrompter) ShowAnswer(character models.Character, text string) {
	fmt.Fprintf(p.out, "\n%s:\n%s\n", character.Name, text)
}

func (p *terminalPrompter) ShowAccusationResult(correct bool, guessesLeft int) {
	if correct {
		fmt.Fprintln(p.out, "\nThe accused breaks down and confesses.")
		return
	}
	fmt.Fprintf(p.out, "\nThe accused has an alibi. Guesses left: %d\n", guessesLeft)
}

func (p *terminalPrompter) ShowResult(won bool, killerName string) {
	if won {
		fmt.Fprintf(p.out, "\nCase closed. %s is behind bars.\n", killerName)
		return
	}
	fmt.Fprintf(p.out, "\nThe trail has gone cold. The killer was %s.\n", killerName)
}

func (p *terminalPrompter) SelectCharacter(cast []models.Character, visited map[int]bool) (int, bool, error) {
	fmt.Fprintln(p.out, "\nWho do you want to interview?")
	for i, character := range cast {
		marker := " "
		if visited[i] {
			marker = "*"
		}
		if character.Role == models.RoleVictim {
			fmt.Fprintf(p.out, "  %d. %s (the victim)\n", i+1, character.Name)
			continue
		}
		fmt.Fprintf(p.out, "%s %d. %s\n", marker, i+1, character.Name)
	}
	for {
		line, err := p.readLine("Enter a number, or \"accuse\" to name the killer: ")
		if err != nil {
			return 0, false, err
		}
		if strings.EqualFold(line, "accuse") {
			return 0, true, nil
		}
		number, atoiErr := strconv.Atoi(line)
		if atoiErr != nil {
			fmt.Fprintln(p.out, "That is not a number.")
			continue
		}
		return number - 1, false, nil
	}
}

func (p *terminalPrompter) AskQuestion(character models.Character) (game.Question, error) {
	line, err := p.readLine(fmt.Sprintf("\nYour question for %s (\"?\" for a suggestion, \"exit\" to leave): ", character.Name))
	if err != nil {
		return game.Question{Text: "", UseAI: false}, err
	}
	if line == "?" {
		return game.Question{Text: "", UseAI: true}, nil
	}
	return game.Question{Text: line, UseAI: false}, nil
}

func (p *terminalPrompter) Accuse(suspects []models.Character, guessesLeft int) (string, error) {
	fmt.Fprintf(p.out, "\nTime to name the killer. Guesses left: %d\n", guessesLeft)
	for _, suspect := range suspects {
		fmt.Fprintf(p.out, "  - %s\n", suspect.Name)
	}
	return p.readLine("Who did it? ")
}
