package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	initForce       bool
	initWithCatalog bool
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize an Usher project",
	Long: `Initialize a directory for use with Usher.

This command sets up everything needed to run Usher against a project:
  - Creates the .usher directory structure (state, logs, task registry)
  - Creates a .usher.yaml configuration template
  - Adds .usher entries to .gitignore when a git repository exists
  - Optionally creates an example signal catalog

The directory argument is optional and defaults to the current directory.

Examples:
  usher init                  # Initialize current directory
  usher init ./myproject      # Initialize specific directory
  usher init --force          # Reinitialize even if already set up
  usher init --with-catalog   # Create an example catalog file`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
	initCmd.Flags().BoolVar(&initWithCatalog, "with-catalog", false, "Create an example catalog file")
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

	fmt.Printf("Initializing Usher in %s...\n\n", absPath)

	usherDir := filepath.Join(absPath, ".usher")
	if _, err := os.Stat(usherDir); err == nil && !initForce {
		fmt.Printf("Directory already initialized. Use --force to reinitialize.\n")
		return nil
	}

	logsDir := filepath.Join(usherDir, "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating .usher/logs directory: %w", err)
	}
	printStatus("✓", "Created .usher directory structure", color.FgGreen)

	if _, err := os.Stat(filepath.Join(absPath, ".git")); err == nil {
		if err := updateGitignore(absPath); err != nil {
			return fmt.Errorf("updating .gitignore: %w", err)
		}
		printStatus("✓", "Updated .gitignore with Usher entries", color.FgGreen)
	}

	if err := createProjectConfig(absPath); err != nil {
		return fmt.Errorf("creating project config: %w", err)
	}
	printStatus("✓", "Created .usher.yaml template", color.FgGreen)

	if initWithCatalog {
		if err := createExampleCatalog(usherDir); err != nil {
			return fmt.Errorf("creating example catalog: %w", err)
		}
		printStatus("✓", "Created example catalog in .usher/catalog.yaml", color.FgGreen)
	}

	fmt.Printf("\n%s Usher initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	fmt.Println("  1. Classify a prompt:")
	fmt.Println("     usher classify \"Fix the login API endpoint\"")
	fmt.Println()
	fmt.Println("  2. Check session state:")
	fmt.Println("     usher status")
	fmt.Println()
	fmt.Println("  3. Learn more:")
	fmt.Println("     usher --help")

	return nil
}

// updateGitignore adds Usher entries to .gitignore if not present
func updateGitignore(repoPath string) error {
	gitignorePath := filepath.Join(repoPath, ".gitignore")

	var existingContent string
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existingContent = string(data)
	}

	usherEntries := []string{
		".usher/logs/",
		".usher/tasks.db*",
	}

	needsUpdate := false
	for _, entry := range usherEntries {
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

	newContent.WriteString("\n# Usher\n")
	for _, entry := range usherEntries {
		if !strings.Contains(existingContent, entry) {
			newContent.WriteString(entry + "\n")
		}
	}

	return os.WriteFile(gitignorePath, []byte(newContent.String()), 0644)
}

// createProjectConfig creates .usher.yaml template
func createProjectConfig(repoPath string) error {
	configPath := filepath.Join(repoPath, ".usher.yaml")

	// Check if already exists
	if _, err := os.Stat(configPath); err == nil {
		return nil // Already exists, don't overwrite
	}

	template := `# Usher Project Configuration
# This file overrides defaults from ~/.config/usher/config.yaml

# state_dir: .usher/sessions
# data_dir: .usher
# catalog_path: .usher/catalog.yaml

# retry:
#   max_retries: 3
#   base_delay_ms: 1000

# logging:
#   debug_log: .usher/logs/usher-debug.log
`

	return os.WriteFile(configPath, []byte(template), 0644)
}

// createExampleCatalog writes a catalog file demonstrating the extension
// format: entries replace same-named built-ins, new names are appended.
func createExampleCatalog(usherDir string) error {
	catalogPath := filepath.Join(usherDir, "catalog.yaml")

	if _, err := os.Stat(catalogPath); err == nil {
		return nil
	}

	template := `# Usher Signal Catalog
# Agents and skills listed here replace built-in entries with the same
# name; new names extend the index. Pipelines extend the trigger table.

agents:
  - name: data-engineer
    category: data
    keywords: [etl, warehouse, airflow, spark]
    phrases: ["data pipeline", "batch job"]
    fallbacks: [backend-system-architect, general-purpose]

skills:
  - name: graphql-schema-design
    category: api
    keywords: [graphql, resolver, mutation]
    phrases: ["graphql schema"]

pipelines:
  - type: data-migration
    triggers: ["migrate the data", "data migration"]
    steps:
      - agent: backend-system-architect
        template: "Design migration plan for: {prompt}"
      - agent: test-generator
        template: "Write verification checks for: {prompt}"
`

	return os.WriteFile(catalogPath, []byte(template), 0644)
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
