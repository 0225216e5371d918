package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Config is the CLI configuration, a set of named server profiles.
type Config struct {
	DefaultProfile string             `json:"default_profile" yaml:"default_profile"`
	Profiles       map[string]Profile `json:"profiles"        yaml:"profiles"`
}

// Profile holds connection settings for one environment.
type Profile struct {
	Name      string `json:"name"       yaml:"name"`
	ServerURL string `json:"server_url" yaml:"server_url"`
	Token     string `json:"token"      yaml:"token"`
}

func validateConfigPath(path string) error {
	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("invalid config path: path traversal not allowed")
	}
	if !filepath.IsAbs(cleanPath) {
		return fmt.Errorf("invalid config path: must be absolute path")
	}
	return nil
}

// LoadConfig loads the CLI configuration, returning an empty config when
// no file exists yet.
func LoadConfig() (*Config, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}

	config := &Config{Profiles: make(map[string]Profile)}

	if validateErr := validateConfigPath(configPath); validateErr != nil {
		return nil, fmt.Errorf("config path validation failed: %w", validateErr)
	}

	if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
		return config, nil
	}

	data, err := os.ReadFile(configPath) //nolint:gosec // Path is validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig writes the CLI configuration. The file holds API tokens, so
// it is created user-readable only.
func SaveConfig(config *Config) error {
	configPath, err := getConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	if validateErr := validateConfigPath(configPath); validateErr != nil {
		return fmt.Errorf("config path validation failed: %w", validateErr)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// currentProfile resolves the active profile: --profile flag first, then
// the configured default.
func currentProfile(cmd *cobra.Command, config *Config) (*Profile, error) {
	name, _ := cmd.Flags().GetString("profile")
	if name == "" {
		name = config.DefaultProfile
	}
	if name == "" {
		return nil, fmt.Errorf("no profile selected: run '%s profile add' first", applicationName)
	}
	profile, ok := config.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile %q not found", name)
	}
	return &profile, nil
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage server profiles",
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or update a server profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := LoadConfig()
		if err != nil {
			return err
		}

		serverURL, _ := cmd.Flags().GetString("server")
		token, _ := cmd.Flags().GetString("token")
		if serverURL == "" {
			return fmt.Errorf("--server is required")
		}

		name := args[0]
		config.Profiles[name] = Profile{Name: name, ServerURL: serverURL, Token: token}
		if config.DefaultProfile == "" {
			config.DefaultProfile = name
		}

		if err := SaveConfig(config); err != nil {
			return err
		}
		fmt.Printf("Profile %q saved\n", name)
		return nil
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the default profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		config, err := LoadConfig()
		if err != nil {
			return err
		}
		if _, ok := config.Profiles[args[0]]; !ok {
			return fmt.Errorf("profile %q not found", args[0])
		}
		config.DefaultProfile = args[0]
		if err := SaveConfig(config); err != nil {
			return err
		}
		fmt.Printf("Default profile set to %q\n", args[0])
		return nil
	},
}

func init() {
	profileAddCmd.Flags().String("server", "", "server base URL")
	profileAddCmd.Flags().String("token", "", "bearer token")

	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileUseCmd)
	rootCmd.AddCommand(profileCmd)
}
