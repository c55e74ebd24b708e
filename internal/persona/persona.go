// Package persona loads leadership persona definitions and renders them into
// system prompts.
package persona

import (
	"fmt"
	"strings"
)

// Defaults applied once at load time.
const (
	DefaultAccentColor = "#F26522"
	DefaultEmoji       = "🎙️"
)

// Personality holds the free-text traits used only for prompt construction.
type Personality struct {
	ThinkingStyle        string   `yaml:"thinking_style" json:"thinking_style"`
	EmotionalBaseline    string   `yaml:"emotional_baseline" json:"emotional_baseline"`
	CommunicationStyle   string   `yaml:"communication_style" json:"communication_style"`
	RiskAppetite         string   `yaml:"risk_appetite" json:"risk_appetite"`
	LeadershipPhilosophy string   `yaml:"leadership_philosophy" json:"leadership_philosophy"`
	DecisionFramework    string   `yaml:"decision_framework" json:"decision_framework"`
	ConflictHandling     string   `yaml:"conflict_handling" json:"conflict_handling"`
	CoreValues           []string `yaml:"core_values" json:"core_values"`
	MotivationalDrivers  []string `yaml:"motivational_drivers" json:"motivational_drivers"`
}

// Persona is an immutable leader definition. One YAML file per persona.
type Persona struct {
	ID              string      `yaml:"id" json:"id"`
	Name            string      `yaml:"name" json:"name"`
	Role            string      `yaml:"role" json:"role"`
	Personality     Personality `yaml:"personality" json:"personality"`
	SpeechPatterns  []string    `yaml:"speech_patterns" json:"speech_patterns,omitempty"`
	ForbiddenTopics []string    `yaml:"forbidden_topics" json:"forbidden_topics,omitempty"`

	// VoiceID is a free-tier neural voice name for the configured free provider.
	VoiceID string `yaml:"voice_id" json:"voice_id,omitempty"`
	// VoiceSample is a local audio clip used to clone the voice on first use.
	VoiceSample string `yaml:"voice_sample" json:"-"`
	// ElevenVoiceID is a pre-provisioned cloned voice; it bypasses cloning.
	ElevenVoiceID string `yaml:"eleven_voice_id" json:"-"`

	AvatarImage string `yaml:"avatar_image" json:"avatar_image,omitempty"`
	AccentColor string `yaml:"accent_color" json:"accent_color"`
	Emoji       string `yaml:"emoji" json:"emoji"`
}

// ValidationError reports a persona file that does not satisfy the schema.
type ValidationError struct {
	File  string
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("persona %s: %s", e.File, e.Msg)
	}
	return fmt.Sprintf("persona %s: field %q %s", e.File, e.Field, e.Msg)
}

// Validate checks required fields. file is only used for error messages.
func (p *Persona) Validate(file string) error {
	required := []struct {
		field string
		value string
	}{
		{"id", p.ID},
		{"name", p.Name},
		{"role", p.Role},
		{"personality.thinking_style", p.Personality.ThinkingStyle},
		{"personality.emotional_baseline", p.Personality.EmotionalBaseline},
		{"personality.communication_style", p.Personality.CommunicationStyle},
		{"personality.risk_appetite", p.Personality.RiskAppetite},
		{"personality.leadership_philosophy", p.Personality.LeadershipPhilosophy},
		{"personality.decision_framework", p.Personality.DecisionFramework},
		{"personality.conflict_handling", p.Personality.ConflictHandling},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{File: file, Field: r.field, Msg: "is required"}
		}
	}
	if len(p.Personality.CoreValues) == 0 {
		return &ValidationError{File: file, Field: "personality.core_values", Msg: "must list at least one value"}
	}
	if len(p.Personality.MotivationalDrivers) == 0 {
		return &ValidationError{File: file, Field: "personality.motivational_drivers", Msg: "must list at least one driver"}
	}
	if strings.ContainsAny(p.ID, "/\\ ") {
		return &ValidationError{File: file, Field: "id", Msg: "must not contain spaces or path separators"}
	}
	return nil
}

func (p *Persona) applyDefaults() {
	if p.AccentColor == "" {
		p.AccentColor = DefaultAccentColor
	}
	if p.Emoji == "" {
		p.Emoji = DefaultEmoji
	}
}

// Summary is the short card text shown in leader pickers.
func Summary(p *Persona) string {
	return fmt.Sprintf("%s — %s\nStyle: %s\nPhilosophy: %s",
		p.Name, p.Role, p.Personality.CommunicationStyle, p.Personality.LeadershipPhilosophy)
}
