package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/thematic/internal/logger"
	"github.com/ppiankov/thematic/internal/model"
	"github.com/ppiankov/thematic/internal/pipeline"
)

const defaultRunTimeout = 5 * time.Minute

// Version is set at build time with -ldflags.
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "thematic",
	Short: "Thematic - evidence-to-theme synthesis for customer research",
	Long: `Thematic turns atomic research evidence (interview quotes, survey answers)
into a deduplicated set of themes, each linked to the evidence that supports it.

Themes proposed by a language model are matched against existing themes by
exact name, then by embedding similarity, before anything new is created, so
repeated runs converge instead of piling up near-duplicates.

Personas are derived the same way from people who share facets.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("thematic %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.thematic/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides store.path)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("db"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if err := registerDefaults(viper.GetViper(), model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering defaults: %v\n", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".thematic"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// THEMATIC_LLM_PROVIDER maps to llm.provider
	viper.SetEnvPrefix("THEMATIC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// registerDefaults makes every config key known to v so that environment
// variables can override keys absent from the file.
func registerDefaults(v *viper.Viper, cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}
	setDefaults(v, "", tree)

	// omitted from the YAML when empty
	for _, key := range []string{"llm.api_key", "llm.base_url", "embedding.api_key", "embedding.base_url"} {
		v.SetDefault(key, "")
	}
	return nil
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// loadConfig decodes the merged defaults, file, env and flags into a Config.
// Defaults must already be registered on v.
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := &model.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// runTimeout returns the --timeout flag shared by the run commands, falling
// back to defaultRunTimeout when unset.
func runTimeout() time.Duration {
	if timeout <= 0 {
		return defaultRunTimeout
	}
	return timeout
}

func newLogger(cfg *model.Config) (*logger.Logger, error) {
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	return logger.New(cfg.Log.Mode, level)
}

// openPipeline loads configuration and opens the pipeline. The returned
// cleanup closes the store and flushes the logger.
func openPipeline() (*pipeline.Pipeline, func(), error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	p, err := pipeline.NewPipeline(cfg, log)
	if err != nil {
		log.Sync()
		return nil, nil, err
	}
	cleanup := func() {
		if err := p.Close(); err != nil {
			log.Warn("close store", "error", err)
		}
		log.Sync()
	}
	return p, cleanup, nil
}
