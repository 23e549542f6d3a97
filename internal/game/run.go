package game

import (
	"context"
	"log/slog"

	"github.com/myrjola/whodunit/internal/errors"
)

// Run drives the session to a terminal phase using prompter for all player
// interaction. Recoverable player mistakes re-prompt; generation failures
// during setup abort the run, while mid-visit failures only end the visit.
func (s *Session) Run(ctx context.Context, prompter Prompter) error {
	if s.state.Phase == PhaseCreating {
		if err := s.Begin(ctx); err != nil {
			return err
		}
		prompter.ShowNarration(s.state.Narration)
	}

	for !s.state.Phase.Terminal() {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "session interrupted", slog.String("id", s.state.ID))
		}

		switch s.state.Phase {
		case PhaseSelecting:
			if s.ActionsExhausted() {
				s.state.Phase = PhaseAccusing
				continue
			}
			index, accuse, err := prompter.SelectCharacter(s.Cast(), s.Visited())
			if err != nil {
				return s.stopRun(ctx, err)
			}
			if accuse {
				s.state.Phase = PhaseAccusing
				continue
			}
			if err := s.Select(index); err != nil {
				if errors.Is(err, ErrInvalidSelection) || errors.Is(err, ErrWrongPhase) {
					continue
				}
				return err
			}

		case PhaseConversing:
			if err := s.runVisit(ctx, prompter); err != nil {
				return s.stopRun(ctx, err)
			}

		case PhaseAccusing:
			name, err := prompter.Accuse(s.Suspects(), s.GuessesLeft())
			if err != nil {
				return s.stopRun(ctx, err)
			}
			won, err := s.Accuse(name)
			if err != nil {
				if errors.Is(err, ErrInvalidAccusation) {
					continue
				}
				return err
			}
			prompter.ShowAccusationResult(won, s.GuessesLeft())

		case PhaseCreating, PhaseNarrating, PhaseWon, PhaseLost:
			return errors.Wrap(ErrWrongPhase, "run loop", slog.String("phase", string(s.state.Phase)))
		}
	}

	killer, _ := s.Killer()
	prompter.ShowResult(s.state.Phase == PhaseWon, killer.Name)
	return nil
}

// stopRun translates a prompter failure into the run result. An abandoned
// investigation stops the run cleanly so the caller can still archive it.
func (s *Session) stopRun(ctx context.Context, err error) error {
	if errors.Is(err, ErrAborted) {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "investigation abandoned", slog.String("id", s.state.ID))
		return nil
	}
	return err
}

// runVisit drives one conversation and returns any prompter failure. The
// deferred fold guarantees that turns taken before any abort still count
// against the action limit.
func (s *Session) runVisit(ctx context.Context, prompter Prompter) error {
	conv := s.conv
	defer s.EndConversation()

	intro, err := conv.Introduce(ctx)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "introduction failed, ending visit", errors.SlogError(err))
		return nil
	}
	prompter.ShowIntroduction(conv.Character(), intro)

	for !conv.Ended() {
		if s.state.ActionLimit > 0 && s.state.TotalActions+conv.TurnCount() >= s.state.ActionLimit {
			return nil
		}

		question, promptErr := prompter.AskQuestion(conv.Character())
		if promptErr != nil {
			return promptErr
		}
		text := question.Text
		if question.UseAI {
			text, err = conv.SuggestQuestion(ctx)
			if err != nil {
				s.logger.LogAttrs(ctx, slog.LevelWarn, "question suggestion failed", errors.SlogError(err))
				continue
			}
			prompter.ShowQuestion(conv.Character(), text)
		}

		answer, _, err := conv.Ask(ctx, text)
		if err != nil {
			if errors.Is(err, ErrEmptyQuestion) {
				continue
			}
			if errors.Is(err, ErrConversationEnded) {
				return nil
			}
			s.logger.LogAttrs(ctx, slog.LevelWarn, "answer failed, ending visit", errors.SlogError(err))
			return nil
		}
		if answer != "" {
			prompter.ShowAnswer(conv.Character(), answer)
		}
	}
	return nil
}
