package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to the given path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to gridaudit! Let's configure your workspace.")
	fmt.Println()

	cfg := DefaultConfig()

	baseURLPrompt := promptui.Prompt{
		Label:   "Grid API base URL",
		Default: "https://api.grid.example/v1",
	}
	baseURL, err := baseURLPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}
	cfg.API.BaseURL = baseURL

	includePrompt := promptui.Prompt{
		Label:   "Sheet name patterns to audit (comma-separated globs)",
		Default: "*",
	}
	includeStr, err := includePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("include patterns: %w", err)
	}
	cfg.Sheets.Include = splitAndTrim(includeStr)

	auditSheetPrompt := promptui.Prompt{
		Label: "Audit sink sheet ID (blank to run disabled)",
		Validate: func(input string) error {
			if input == "" {
				return nil
			}
			_, parseErr := strconv.ParseInt(input, 10, 64)
			return parseErr
		},
	}
	auditSheetStr, err := auditSheetPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("audit sheet: %w", err)
	}
	if auditSheetStr != "" {
		cfg.Sheets.AuditSheetID, _ = strconv.ParseInt(auditSheetStr, 10, 64)
	}

	referencePrompt := promptui.Prompt{
		Label:   "Reference date column",
		Default: cfg.Period.ReferenceColumn,
	}
	reference, err := referencePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("reference column: %w", err)
	}
	cfg.Period.ReferenceColumn = reference

	boundaryPrompt := promptui.Select{
		Label: "Weekday the reporting period closes on",
		Items: []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"},
	}
	_, boundary, err := boundaryPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("boundary weekday: %w", err)
	}
	cfg.Period.BoundaryWeekday = boundary

	mirrorPrompt := promptui.Prompt{
		Label:   "Local mirror database path (blank to disable)",
		Default: "",
	}
	mirror, err := mirrorPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("mirror path: %w", err)
	}
	cfg.MirrorPath = mirror

	if err := cfg.Save(path); err != nil {
		return nil, err
	}
	fmt.Printf("\nConfiguration written to %s\n", path)
	fmt.Println("Set GRIDAUDIT_API_TOKEN in the environment before running.")
	return cfg, nil
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
