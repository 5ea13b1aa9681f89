package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/fulfiller/internal/config"
)

var (
	initForce       bool
	initWithConfigs bool
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a fulfiller project",
	Long: `Initialize a directory for use with fulfiller.

This command sets up everything needed to process orders:
  - Creates the .fulfiller directory (database, logs, outbox)
  - Applies the database schema
  - Checks that provider credentials are available
  - Optionally writes a .fulfiller.yaml and an example agent fleet

The directory argument is optional and defaults to the current directory.

Examples:
  fulfiller init                 # Initialize current directory
  fulfiller init ./ops           # Initialize specific directory
  fulfiller init --with-configs  # Also write example config files`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
	initCmd.Flags().BoolVar(&initWithConfigs, "with-configs", false, "Create .fulfiller.yaml and agents.example.yaml")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
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

	fmt.Printf("Initializing fulfiller in %s...\n\n", absPath)

	projectDir := filepath.Join(absPath, projectDirName)
	if _, err := os.Stat(projectDir); err == nil && !initForce {
		fmt.Printf("Directory already initialized. Use --force to reinitialize.\n")
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	switch config.GetAPIKeySource(cfg) {
	case config.KeySourceEnv:
		printStatus("✓", "ANTHROPIC_API_KEY is set", color.FgGreen)
	case config.KeySourceConfig:
		printStatus("✓", "API key found in config file", color.FgGreen)
	case config.KeySourceBedrock:
		printStatus("✓", "Using AWS Bedrock credentials", color.FgGreen)
	default:
		printStatus("⚠", "ANTHROPIC_API_KEY not set (you can set it later)", color.FgYellow)
	}

	for _, dir := range []string{
		projectDir,
		filepath.Join(projectDir, "logs"),
		outboxDirFor(cfg, absPath),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	printStatus("✓", "Created .fulfiller directory structure", color.FgGreen)

	db, err := openStore(cfg, absPath)
	if err != nil {
		printStatus("✗", "Database setup failed", color.FgRed)
		return err
	}
	path := db.Path()
	db.Close()
	printStatus("✓", fmt.Sprintf("Database ready at %s", path), color.FgGreen)

	if initWithConfigs {
		if err := createProjectConfig(absPath); err != nil {
			return fmt.Errorf("creating project config: %w", err)
		}
		printStatus("✓", "Created .fulfiller.yaml template", color.FgGreen)

		if err := createExampleFleet(absPath); err != nil {
			return fmt.Errorf("creating example fleet: %w", err)
		}
		printStatus("✓", "Created agents.example.yaml", color.FgGreen)
	}

	fmt.Printf("\n%s fulfiller initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	fmt.Println("  fulfiller agents load agents.example.yaml")
	fmt.Println("  fulfiller submit --client <id> --category WEBSITE --requirements req.json")
	fmt.Println("  fulfiller serve")
	return nil
}

// createProjectConfig writes a commented .fulfiller.yaml template.
// An existing file is left alone.
func createProjectConfig(root string) error {
	configPath := filepath.Join(root, config.ProjectConfigName)
	if _, err := os.Stat(configPath); err == nil {
		return nil
	}

	template := `# fulfiller project configuration
# This file overrides defaults from ~/.config/fulfiller/config.yaml

# anthropic:
#   model: claude-sonnet-4-20250514
#   use_bedrock: false

# store:
#   driver: sqlite      # or sqlite3 (cgo)

# executor:
#   max_retries: 3
#   backoff_base: 1s
#   backoff_max: 30s
#   provider_timeout: 2m

# pool:
#   workers: 4
#   poll_interval: 5s

# notifications:
#   record: true

# instructions:
#   path: instructions.yaml
`
	return os.WriteFile(configPath, []byte(template), 0644)
}

// createExampleFleet writes one agent per category type.
func createExampleFleet(root string) error {
	path := filepath.Join(root, "agents.example.yaml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	fleet := `agents:
  - id: web-1
    name: Website Builder
    type: WEBSITE_BUILDER
    max_load: 3
    active: true
  - id: chat-1
    name: Chatbot Creator
    type: CHATBOT_CREATOR
    max_load: 2
    active: true
  - id: phone-1
    name: Phone Assistant
    type: PHONE_AI
    max_load: 2
    active: true
  - id: tax-1
    name: Tax Specialist
    type: TAX_SPECIALIST
    max_load: 1
    active: true
  - id: general-1
    name: Generalist
    type: GENERAL
    max_load: 2
    active: true
`
	return os.WriteFile(path, []byte(fleet), 0644)
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
