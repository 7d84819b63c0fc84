package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	yaml "go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/gantry/internal/config"
	"github.com/ShayCichocki/gantry/internal/store"
	"github.com/ShayCichocki/gantry/pkg/models"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a Gantry project",
	Long: `Initialize a directory for use with Gantry.

This command sets up everything needed to manage tasks:
  - Creates the .gantry directory structure
  - Seeds an empty tasks file
  - Writes a commented .gantry.yaml configuration template
  - Adds Gantry's transient files to .gitignore

The directory argument is optional and defaults to the current directory.

Examples:
  gantry init              # Initialize current directory
  gantry init ./myproject  # Initialize specific directory
  gantry init --force      # Reinitialize even if already set up`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := projectRoot()
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing Gantry in %s...\n\n", absPath)

	gantryDir := filepath.Join(absPath, ".gantry")
	if _, err := os.Stat(gantryDir); err == nil && !initForce {
		fmt.Printf("Directory already initialized. Use --force to reinitialize.\n")
		return nil
	}

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		printStatus("⚠", "ANTHROPIC_API_KEY not set (AI commands need it, you can set it later)", color.FgYellow)
	} else {
		printStatus("✓", "ANTHROPIC_API_KEY is set", color.FgGreen)
	}

	if err := os.MkdirAll(gantryDir, 0755); err != nil {
		return fmt.Errorf("creating .gantry directory: %w", err)
	}
	logsDir := filepath.Join(gantryDir, "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating .gantry/logs directory: %w", err)
	}
	printStatus("✓", "Created .gantry directory structure", color.FgGreen)

	created, err := seedTasksFile(absPath)
	if err != nil {
		return fmt.Errorf("seeding tasks file: %w", err)
	}
	if created {
		printStatus("✓", "Created empty tasks file", color.FgGreen)
	} else {
		printStatus("✓", "Tasks file already exists, kept", color.FgGreen)
	}

	wrote, err := createProjectConfig(absPath)
	if err != nil {
		return fmt.Errorf("creating project config: %w", err)
	}
	if wrote {
		printStatus("✓", "Created .gantry.yaml template", color.FgGreen)
	} else {
		printStatus("✓", ".gantry.yaml already exists, kept", color.FgGreen)
	}

	if _, err := os.Stat(filepath.Join(absPath, ".git")); err == nil {
		if err := updateGitignore(absPath); err != nil {
			return fmt.Errorf("updating .gitignore: %w", err)
		}
		printStatus("✓", "Updated .gitignore with Gantry entries", color.FgGreen)
	}

	fmt.Printf("\n%s Gantry initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	if apiKey == "" {
		fmt.Println("  1. Set your API key (needed for AI commands):")
		fmt.Println("     export ANTHROPIC_API_KEY=your-key-here")
		fmt.Println()
	}
	fmt.Println("  2. Create your first task:")
	fmt.Println("     gantry add --title \"Set up the project\"")
	fmt.Println()
	fmt.Println("  3. See what to work on:")
	fmt.Println("     gantry next")
	fmt.Println()
	fmt.Println("  4. Learn more:")
	fmt.Println("     gantry --help")

	return nil
}

// seedTasksFile writes an empty collection at the configured store
// path so later commands find a loadable file. Reports whether a new
// file was written.
func seedTasksFile(root string) (bool, error) {
	cfg, err := loadConfig()
	if err != nil {
		cfg = config.Default()
	}
	path := cfg.Store.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	st, err := store.NewFileStore(path)
	if err != nil {
		return false, err
	}
	defer st.Close()

	if err := st.Save(context.Background(), models.NewCollection()); err != nil {
		return false, err
	}
	return true, nil
}

// configTemplate mirrors the .gantry.yaml schema for the commented
// template. Defaults come from config.Default so the template never
// drifts from the real fallbacks.
type configTemplate struct {
	Anthropic struct {
		APIKey     string `yaml:"api_key"`
		UseBedrock bool   `yaml:"use_bedrock"`
	} `yaml:"anthropic"`
	OpenAI struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"openai"`
	Roles struct {
		Main     roleTemplate `yaml:"main"`
		Research roleTemplate `yaml:"research"`
		Fallback roleTemplate `yaml:"fallback"`
	} `yaml:"roles"`
	Retry struct {
		MaxAttempts         int    `yaml:"max_attempts"`
		BaseBackoff         string `yaml:"base_backoff"`
		FallbackMaxAttempts int    `yaml:"fallback_max_attempts"`
	} `yaml:"retry"`
	Limits struct {
		BatchWorkers int    `yaml:"batch_workers"`
		CallTimeout  string `yaml:"call_timeout"`
	} `yaml:"limits"`
	Analyze struct {
		Threshold int `yaml:"threshold"`
	} `yaml:"analyze"`
	Store struct {
		File string `yaml:"file"`
	} `yaml:"store"`
	Telemetry struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"telemetry"`
	Debug struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"debug"`
}

type roleTemplate struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	MaxTokens   int64   `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// createProjectConfig writes the .gantry.yaml template with every line
// commented out, so the file documents the schema without overriding
// anything. Reports whether a new file was written.
func createProjectConfig(root string) (bool, error) {
	path := filepath.Join(root, ".gantry.yaml")
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	defaults := config.Default()

	var doc configTemplate
	doc.Anthropic.APIKey = "${ANTHROPIC_API_KEY}"
	doc.OpenAI.APIKey = "${OPENAI_API_KEY}"
	doc.Roles.Main = roleFromConfig(defaults.Roles.Main)
	doc.Roles.Research = roleFromConfig(defaults.Roles.Research)
	doc.Roles.Fallback = roleFromConfig(defaults.Roles.Fallback)
	doc.Retry.MaxAttempts = defaults.Retry.MaxAttempts
	doc.Retry.BaseBackoff = defaults.Retry.BaseBackoff.String()
	doc.Retry.FallbackMaxAttempts = defaults.Retry.FallbackMaxAttempts
	doc.Limits.BatchWorkers = defaults.Limits.BatchWorkers
	doc.Limits.CallTimeout = defaults.Limits.CallTimeout.String()
	doc.Analyze.Threshold = defaults.Analyze.Threshold
	doc.Store.File = defaults.Store.File
	doc.Telemetry.Enabled = defaults.Telemetry.Enabled
	doc.Debug.Enabled = defaults.Debug.Enabled

	body, err := yaml.Marshal(&doc)
	if err != nil {
		return false, fmt.Errorf("marshaling template: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("# Gantry Project Configuration\n")
	buf.WriteString("# This file overrides defaults from ~/.config/gantry/config.yaml\n")
	buf.WriteString("# Uncomment the settings you want to change. Values shown are the defaults.\n")
	buf.WriteString("\n")
	for _, line := range strings.Split(strings.TrimRight(string(body), "\n"), "\n") {
		buf.WriteString("# " + line + "\n")
	}

	if err := os.WriteFile(path, []byte(buf.String()), 0644); err != nil {
		return false, err
	}
	return true, nil
}

func roleFromConfig(rc config.RoleConfig) roleTemplate {
	return roleTemplate{
		Provider:    rc.Provider,
		Model:       rc.Model,
		MaxTokens:   rc.MaxTokens,
		Temperature: rc.Temperature,
	}
}

// updateGitignore adds Gantry's transient files to .gitignore if not
// already present.
func updateGitignore(repoPath string) error {
	gitignorePath := filepath.Join(repoPath, ".gitignore")

	var existingContent string
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existingContent = string(data)
	}

	gantryEntries := []string{
		".gantry/logs/",
		".gantry/telemetry.db*",
		".gantry/history.db*",
		".gantry/*.bak",
		".gantry/*.lock",
		".gantry/*.sha256",
	}

	needsUpdate := false
	for _, entry := range gantryEntries {
		if !strings.Contains(existingContent, entry) {
			needsUpdate = true
			break
		}
	}
	if !needsUpdate {
		return nil
	}

	var newContent strings.Builder
	newContent.WriteString(existingContent)
	if len(existingContent) > 0 && !strings.HasSuffix(existingContent, "\n") {
		newContent.WriteString("\n")
	}
	newContent.WriteString("\n# Gantry\n")
	for _, entry := range gantryEntries {
		if !strings.Contains(existingContent, entry) {
			newContent.WriteString(entry + "\n")
		}
	}

	return os.WriteFile(gitignorePath, []byte(newContent.String()), 0644)
}
