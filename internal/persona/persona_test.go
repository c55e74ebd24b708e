package persona

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `id: %s
name: Test Leader
role: Chief Testing Officer
personality:
  thinking_style: analytical
  emotional_baseline: calm
  communication_style: direct
  risk_appetite: moderate
  leadership_philosophy: servant leadership
  decision_framework: data first
  conflict_handling: collaborative
  core_values: [honesty, curiosity]
  motivational_drivers: [growth]
speech_patterns: ["Let's dig in."]
forbidden_topics: [politics, salaries]
voice_id: en-US-Chirp3-HD-Kore
`

func writeLeader(t *testing.T, dir, file, id string) {
	t.Helper()
	body := strings.Replace(validYAML, "%s", id, 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(body), 0o644))
}

func TestLoadDirOrderAndDefaults(t *testing.T) {
	dir := t.TempDir()
	writeLeader(t, dir, "b.yaml", "bravo")
	writeLeader(t, dir, "a.yml", "alpha")
	writeLeader(t, dir, "c.yaml", "charlie")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	reg, err := LoadDir(dir)
	require.NoError(t, err)

	assert.Equal(t, 3, reg.Len())
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, reg.IDs())

	p, ok := reg.Get("bravo")
	require.True(t, ok)
	assert.Equal(t, DefaultAccentColor, p.AccentColor)
	assert.Equal(t, DefaultEmoji, p.Emoji)
	assert.Equal(t, []string{"honesty", "curiosity"}, p.Personality.CoreValues)
	assert.True(t, reg.Has("charlie"))
	assert.False(t, reg.Has("delta"))
}

func TestLoadDirMissing(t *testing.T) {
	reg, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Zero(t, reg.Len())
	assert.Empty(t, reg.All())
}

func TestLoadDirRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	writeLeader(t, dir, "a.yaml", "same")
	writeLeader(t, dir, "b.yaml", "same")

	_, err := LoadDir(dir)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "b.yaml", ve.File)
	assert.Equal(t, "id", ve.Field)
}

func TestLoadDirRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name  string
		strip string
		field string
	}{
		{"name", "name: Test Leader\n", "name"},
		{"role", "role: Chief Testing Officer\n", "role"},
		{"thinking style", "  thinking_style: analytical\n", "personality.thinking_style"},
		{"conflict", "  conflict_handling: collaborative\n", "personality.conflict_handling"},
		{"core values", "  core_values: [honesty, curiosity]\n", "personality.core_values"},
		{"drivers", "  motivational_drivers: [growth]\n", "personality.motivational_drivers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			body := strings.Replace(validYAML, "%s", "x", 1)
			body = strings.Replace(body, tt.strip, "", 1)
			require.NoError(t, os.WriteFile(filepath.Join(dir, "x.yaml"), []byte(body), 0o644))

			_, err := LoadDir(dir)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	body := strings.Replace(validYAML, "%s", "x", 1) + "favourite_colour: teal\n"
	path := filepath.Join(dir, "x.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestSampleLeadersLoad(t *testing.T) {
	reg, err := LoadDir(filepath.Join("..", "..", "config", "leaders"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ceo", "cto", "chro"}, reg.IDs())
}

func TestBuildSystemPromptStructure(t *testing.T) {
	reg, err := NewRegistry(Persona{
		ID:   "ceo",
		Name: "Aria Chen",
		Role: "CEO",
		Personality: Personality{
			ThinkingStyle:        "systems",
			EmotionalBaseline:    "calm",
			CommunicationStyle:   "story-driven",
			RiskAppetite:         "bold",
			LeadershipPhilosophy: "make people braver",
			DecisionFramework:    "one-way doors",
			ConflictHandling:     "name it early",
			CoreValues:           []string{"integrity", "clients"},
			MotivationalDrivers:  []string{"institutions"},
		},
		SpeechPatterns:  []string{"Here's the question..."},
		ForbiddenTopics: []string{"politics", "earnings"},
	})
	require.NoError(t, err)
	p, _ := reg.Get("ceo")

	prompt := BuildSystemPrompt(p, Venue{})

	sections := []string{
		"You are Aria Chen, CEO at EXL Service.",
		"## YOUR PERSONALITY",
		"## YOUR CORE VALUES",
		"## YOUR MOTIVATIONAL DRIVERS",
		"## HOW YOU SPEAK",
		"## STRICT RULES",
		"## CONVERSATION CONTEXT",
	}
	last := -1
	for _, s := range sections {
		idx := strings.Index(prompt, s)
		require.GreaterOrEqual(t, idx, 0, "missing %q", s)
		require.Greater(t, idx, last, "%q out of order", s)
		last = idx
	}
	assert.Contains(t, prompt, "- integrity\n- clients\n")
	assert.Contains(t, prompt, "NEVER discuss: politics, earnings")
	assert.Contains(t, prompt, "at the EXL AI Summit.")

	custom := BuildSystemPrompt(p, Venue{Organization: "Acme", Event: "Acme Leadership Day"})
	assert.Contains(t, custom, "CEO at Acme.")
	assert.Contains(t, custom, "Acme Leadership Day")
}

func TestSummary(t *testing.T) {
	p := &Persona{Name: "Aria", Role: "CEO", Personality: Personality{CommunicationStyle: "direct", LeadershipPhilosophy: "serve"}}
	assert.Equal(t, "Aria — CEO\nStyle: direct\nPhilosophy: serve", Summary(p))
}

func TestNewRegistryDoesNotAliasInput(t *testing.T) {
	src := Persona{ID: "a", Name: "A", Role: "R", Personality: Personality{
		ThinkingStyle: "t", EmotionalBaseline: "e", CommunicationStyle: "c", RiskAppetite: "r",
		LeadershipPhilosophy: "l", DecisionFramework: "d", ConflictHandling: "h",
		CoreValues: []string{"v"}, MotivationalDrivers: []string{"m"},
	}}
	reg, err := NewRegistry(src)
	require.NoError(t, err)
	assert.Empty(t, src.AccentColor)
	p, _ := reg.Get("a")
	assert.Equal(t, DefaultAccentColor, p.AccentColor)
}
