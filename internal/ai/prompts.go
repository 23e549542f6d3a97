package ai

import (
	"fmt"
	"strings"

	"github.com/myrjola/whodunit/internal/models"
)

const castPrompt = `You are a character designer for a murder mystery. Create a cast of exactly %d characters that fits the following environment and makes for an engaging investigation.

Environment:
%s

Requirements:
- Exactly one character has the role "Killer".
- Exactly one character has the role "Victim".
- All remaining characters have the role "Suspect".
- Roles and occupations must fit the environment.
- Each backstory covers the character's concerns, motives, relationships, and what they know about the others. Make backstories detailed; they are the only source of truth during interviews.

Respond with a JSON object of the form:
{"characters": [{"role": "...", "name": "...", "backstory": "..."}]}`

const scenarioPrompt = `You are crafting the central murder mystery. Using the environment and cast below, create a murder scenario with specific details about the crime while keeping the killer's identity hidden.

Environment:
%s

Cast:
%s

Guidelines:
- Describe where and how the body was found, the approximate time of death, the cause of death, and the weapon.
- Include physical evidence, witness statements, and suspicious circumstances.
- Mix true clues that lead to the killer with red herrings.
- The cast brief summarizes the characters and their relationships without revealing the killer.
- Never reveal or hint at the killer's identity.
- Make the mystery solvable from the clues.

Respond with a JSON object of the form:
{"victim_name": "...", "time_of_death": "...", "location_found": "...", "murder_weapon": "...", "cause_of_death": "...", "crime_scene_details": "...", "witnesses": "...", "initial_clues": "...", "cast_brief": "..."}`

const narrationPrompt = `You are the trusted assistant of a legendary detective who has just arrived at the scene of a murder. Using the details below, give the detective a brief, engaging introduction to the crime scene in 100 words or less. Address the detective directly in a conversational tone.

Crime scene details:
%s`

const introductionPrompt = `You are playing a character with the following persona:
%s
You are about to be interviewed by a detective about this crime:
- Victim: %s
- Time of death: %s
- Location: %s

Greet and introduce yourself to the detective in a conversational tone. Do not reveal your role or incriminate yourself.`

const questionPrompt = `You are a renowned detective interviewing %s about the murder of %s. The murder occurred around %s at %s. The weapon was %s and the cause of death was %s.

Crime scene description: %s
Initial clues: %s

Conversation so far:
%s

Formulate one insightful, relevant question to ask %s that advances the investigation. Respond with the question only.`

const answerPrompt = `You are playing a character with the following persona:
%s
A detective is interviewing you about this crime:
%s
What you remember relevant to the question:
%s
The cast and their relationships:
%s

Answer the detective's latest question as the character would, based on your personality, your knowledge of the crime, your relationships, and your motives or alibis.

Important:
- Stay in character.
- Only reveal information this character would know.
- Stay consistent with the story details.
- You may lie if your character has a reason to.`

func castUserPrompt(environment string, size int) string {
	return fmt.Sprintf(castPrompt, size, environment)
}

func scenarioUserPrompt(environment string, cast []models.Character) string {
	var personas strings.Builder
	for _, character := range cast {
		personas.WriteString(character.Persona())
		personas.WriteString("\n")
	}
	return fmt.Sprintf(scenarioPrompt, environment, personas.String())
}

func narrationUserPrompt(scenario models.Scenario) string {
	return fmt.Sprintf(narrationPrompt, crimeSceneBrief(scenario))
}

func introductionUserPrompt(character models.Character, scenario models.Scenario) string {
	return fmt.Sprintf(introductionPrompt,
		character.Persona(), scenario.VictimName, scenario.TimeOfDeath, scenario.LocationFound)
}

func questionUserPrompt(character models.Character, scenario models.Scenario, history []models.Message) string {
	return fmt.Sprintf(questionPrompt,
		character.Name, scenario.VictimName, scenario.TimeOfDeath, scenario.LocationFound,
		scenario.MurderWeapon, scenario.CauseOfDeath,
		scenario.CrimeSceneDetails, scenario.InitialClues,
		transcript(history), character.Name)
}

func answerSystemPrompt(character models.Character, background string, scenario models.Scenario) string {
	return fmt.Sprintf(answerPrompt,
		character.Persona(), crimeSceneBrief(scenario), background, scenario.CastBrief)
}

// crimeSceneBrief renders the scenario fields shared by the narration and
// answer prompts.
func crimeSceneBrief(scenario models.Scenario) string {
	return fmt.Sprintf(`Victim: %s
Time: %s
Location: %s
Weapon: %s
Cause of death: %s

Scene description:
%s

Witnesses:
%s`,
		scenario.VictimName, scenario.TimeOfDeath, scenario.LocationFound,
		scenario.MurderWeapon, scenario.CauseOfDeath,
		scenario.CrimeSceneDetails, scenario.Witnesses)
}

// transcript renders a message history for inclusion in a prompt.
func transcript(history []models.Message) string {
	var b strings.Builder
	for _, message := range history {
		switch message.Speaker {
		case models.SpeakerDetective:
			b.WriteString("Detective: ")
		case models.SpeakerCharacter:
			b.WriteString("Character: ")
		case models.SpeakerNarrator:
			b.WriteString("Narrator: ")
		}
		b.WriteString(message.Text)
		b.WriteString("\n")
	}
	return b.String()
}
