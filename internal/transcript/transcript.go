// Package transcript renders voice-agent dialogue turns into the labelled text
// blob stored on a consultation and fed to the summarizer.
package transcript

import "strings"

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerPatient Speaker = "patient"
	SpeakerAgent   Speaker = "agent"
)

const (
	patientLabel = "Paciente"
	agentLabel   = "Assistente"
)

// Turn is one utterance in the conversation.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Valid reports whether s is a known speaker.
func (s Speaker) Valid() bool {
	return s == SpeakerPatient || s == SpeakerAgent
}

// ParseSpeaker maps the roles reported by the voice agent onto a Speaker.
func ParseSpeaker(raw string) (Speaker, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "patient", "user":
		return SpeakerPatient, true
	case "agent", "assistant":
		return SpeakerAgent, true
	default:
		return "", false
	}
}

func (s Speaker) label() string {
	if s == SpeakerPatient {
		return patientLabel
	}
	return agentLabel
}

// Format renders turns as "<Label>: <text>" lines joined by newlines.
// Embedded newlines in a turn are kept as-is.
func Format(turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	for i, turn := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(turn.Speaker.label())
		b.WriteString(": ")
		b.WriteString(turn.Text)
	}
	return b.String()
}

// Parse splits a formatted transcript back into turns. Lines without a known
// label continue the previous turn; leading unlabelled text is attributed to
// the agent.
func Parse(text string) []Turn {
	if text == "" {
		return nil
	}
	var turns []Turn
	for _, line := range strings.Split(text, "\n") {
		if speaker, rest, ok := splitLabel(line); ok {
			turns = append(turns, Turn{Speaker: speaker, Text: rest})
			continue
		}
		if len(turns) == 0 {
			turns = append(turns, Turn{Speaker: SpeakerAgent, Text: line})
			continue
		}
		last := &turns[len(turns)-1]
		last.Text += "\n" + line
	}
	return turns
}

func splitLabel(line string) (Speaker, string, bool) {
	if rest, ok := strings.CutPrefix(line, patientLabel+": "); ok {
		return SpeakerPatient, rest, true
	}
	if rest, ok := strings.CutPrefix(line, agentLabel+": "); ok {
		return SpeakerAgent, rest, true
	}
	return "", "", false
}
