package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"docpipe/internal/classify"
	"docpipe/internal/config"
	"docpipe/internal/logger"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [text-file]",
	Short: "Classify a text file against a set of categories",
	Long: `Ask the configured OpenAI model which category a document belongs to.

Categories come from repeated --category flags ("Name" or "Name=FolderID") or
from the subfolders of a Drive folder given with --root-folder. The answer is
printed as JSON.

Required environment variables:
  OPENAI_API_KEY - OpenAI API key`,
	Example: `  # Classify against two inline categories
  docpipe classify extracted.txt --category Invoices --category Receipts

  # Classify against the category folders in Drive
  docpipe classify extracted.txt --root-folder 1AbCdEf`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

var classifyRequirements = []config.Requirement{
	{Name: "OPENAI_API_KEY", Required: true},
	{Name: "OPENAI_MODEL"},
	{Name: "OPENAI_TEMPERATURE"},
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().StringArrayP("category", "c", nil, `Candidate category as "Name" or "Name=FolderID"`)
	classifyCmd.Flags().String("root-folder", "", "Drive folder whose subfolders are the categories")
}

func runClassify(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("classify")

	values, err := config.Resolve(config.Env{}, classifyRequirements)
	if err != nil {
		return err
	}

	text, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	flags, _ := cmd.Flags().GetStringArray("category")
	categories, err := parseCategories(flags)
	if err != nil {
		return err
	}
	if rootID, _ := cmd.Flags().GetString("root-folder"); rootID != "" {
		d, err := newDriveService(ctx)
		if err != nil {
			return err
		}
		folders, err := d.ListCategories(ctx, rootID)
		if err != nil {
			return err
		}
		categories = append(categories, folders...)
	}

	serviceConfig := classify.ServiceConfig{Model: values["OPENAI_MODEL"], Temperature: 0.1}
	if raw := values["OPENAI_TEMPERATURE"]; raw != "" {
		t, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return fmt.Errorf("invalid OPENAI_TEMPERATURE: %w", err)
		}
		serviceConfig.Temperature = float32(t)
	}

	service, err := classify.NewService(values["OPENAI_API_KEY"], serviceConfig)
	if err != nil {
		return err
	}

	log.Info().
		Str("file", args[0]).
		Int("categories", len(categories)).
		Msg("Classifying document")

	result, err := service.Classify(ctx, string(text), categories)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// parseCategories reads "Name" or "Name=FolderID" values. A bare name uses
// the name as its ID.
func parseCategories(values []string) ([]classify.Category, error) {
	categories := make([]classify.Category, 0, len(values))
	for _, v := range values {
		name, id, found := strings.Cut(v, "=")
		name = strings.TrimSpace(name)
		id = strings.TrimSpace(id)
		if name == "" || (found && id == "") {
			return nil, fmt.Errorf("invalid category %q, expected Name or Name=FolderID", v)
		}
		if !found {
			id = name
		}
		categories = append(categories, classify.Category{ID: id, Name: name})
	}
	return categories, nil
}
