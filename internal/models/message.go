package models

type Speaker string

const (
	SpeakerNarrator  Speaker = "narrator"
	SpeakerDetective Speaker = "detective"
	SpeakerCharacter Speaker = "character"
)

// Message is one entry in a conversation or session log.
type Message struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}
