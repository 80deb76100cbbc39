package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/thematic/internal/model"
)

func newTestViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	require.NoError(t, registerDefaults(v, model.DefaultConfig()))
	v.SetEnvPrefix("THEMATIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(newTestViper(t))
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConfig(), cfg)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: ollama
  model: llama3
persona:
  facet_kinds: [job_function, tool]
synthesis:
  dedup_threshold: 0.9
`), 0o600))
	t.Setenv("THEMATIC_LLM_MODEL", "mistral")
	t.Setenv("THEMATIC_EMBEDDING_API_KEY", "sk-test")

	v := newTestViper(t)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "mistral", cfg.LLM.Model, "env overrides file")
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
	assert.Equal(t, []string{"job_function", "tool"}, cfg.Persona.FacetKinds)
	assert.InDelta(t, 0.9, cfg.Synthesis.DedupThreshold, 1e-9)
	assert.InDelta(t, 0.4, cfg.Synthesis.LinkThreshold, 1e-9, "unset keys keep defaults")
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("THEMATIC_PERSONA_DEDUP", "fuzzy")
	_, err := loadConfig(newTestViper(t))
	assert.ErrorContains(t, err, "invalid config")
}

func TestMaskSecrets(t *testing.T) {
	cfg := *model.DefaultConfig()
	cfg.LLM.APIKey = "sk-secret"

	masked := maskSecrets(cfg)
	assert.Equal(t, redacted, masked.LLM.APIKey)
	assert.Empty(t, masked.Embedding.APIKey, "empty keys stay empty")
	assert.Equal(t, "sk-secret", cfg.LLM.APIKey, "input is not modified")
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, writeDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# Thematic Configuration File"))

	var cfg model.Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, model.DefaultConfig().Synthesis, cfg.Synthesis)

	err = writeDefaultConfig(path)
	assert.ErrorContains(t, err, "already exists")
}

func TestReadProjectList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.txt")
	require.NoError(t, os.WriteFile(path, []byte("onboarding\n\n# churn study\nbilling \nonboarding\n"), 0o600))

	projects, err := readProjectList(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"onboarding", "billing"}, projects)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("# nothing\n"), 0o600))
	_, err = readProjectList(empty)
	assert.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"onboarding", "onboarding"},
		{"q3 churn/study", "q3-churn_study"},
		{"a:b*c?", "a_b_c_"},
		{"..", "project"},
		{"  ", "project"},
		{strings.Repeat("x", 150), strings.Repeat("x", 100)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in), tt.in)
	}
}

func TestRunTimeout(t *testing.T) {
	orig := timeout
	t.Cleanup(func() { timeout = orig })

	timeout = 0
	assert.Equal(t, defaultRunTimeout, runTimeout())
	timeout = defaultRunTimeout * 2
	assert.Equal(t, defaultRunTimeout*2, runTimeout())
}

func TestSynthesizeCmd_RequiresProject(t *testing.T) {
	for _, name := range []string{"account", "project"} {
		flag := synthesizeCmd.Flags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, []string{"true"}, flag.Annotations[cobra.BashCompOneRequiredFlag], name)
	}
	for _, line := range strings.Split(synthesizeCmd.Long, "\n") {
		if strings.Contains(line, "thematic themes synthesize") {
			assert.Contains(t, line, "--project", line)
		}
	}
}
