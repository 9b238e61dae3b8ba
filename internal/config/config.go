package config

import (
	"fmt"
	"strconv"

	"docpipe/internal/errs"
	"docpipe/internal/logger"
)

// Config holds everything a docpipe process needs to build its stages.
type Config struct {
	// Google Cloud Configuration
	ProjectID           string
	RawBucket           string
	ResultsBucket       string
	PreparationTopic    string
	FirestoreCollection string

	// Drive Configuration
	DriveFolderID         string
	CategoryRootFolderID  string
	UncategorizedFolderID string

	// OCR Configuration
	OCREngine             string
	DocumentAIProcessorID string
	DocumentAILocation    string

	// OpenAI Configuration
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAITemperature float32

	// Optional review ledger
	ReviewSheetURL string

	// HTTP
	Port string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Requirements lists the environment variables read by Load.
var Requirements = []Requirement{
	{Name: "RAW_BUCKET", Required: true},
	{Name: "RESULTS_BUCKET", Required: true},
	{Name: "PREPARATION_TOPIC", Required: true},
	{Name: "FIRESTORE_COLLECTION"},
	{Name: "DRIVE_FOLDER_ID"},
	{Name: "CATEGORY_ROOT_FOLDER_ID"},
	{Name: "UNCATEGORIZED_FOLDER_ID"},
	{Name: "OCR_ENGINE"},
	{Name: "DOCUMENT_AI_PROCESSOR_ID"},
	{Name: "DOCUMENT_AI_LOCATION"},
	{Name: "OPENAI_API_KEY"},
	{Name: "OPENAI_MODEL"},
	{Name: "OPENAI_TEMPERATURE"},
	{Name: "REVIEW_SHEET_URL"},
	{Name: "PORT"},
	{Name: "LOG_LEVEL"},
	{Name: "LOG_FORMAT"},
	{Name: "LOG_TIME_FORMAT"},
	{Name: "LOG_OUTPUT"},
}

// Load resolves the configuration from p.
func Load(p Provider) (*Config, error) {
	projectID, err := ResolveProjectID(p)
	if err != nil {
		return nil, err
	}

	values, err := Resolve(p, Requirements)
	if err != nil {
		return nil, err
	}

	config := &Config{
		ProjectID:             projectID,
		RawBucket:             values["RAW_BUCKET"],
		ResultsBucket:         values["RESULTS_BUCKET"],
		PreparationTopic:      values["PREPARATION_TOPIC"],
		FirestoreCollection:   getValue(values, "FIRESTORE_COLLECTION", "documents"),
		DriveFolderID:         values["DRIVE_FOLDER_ID"],
		CategoryRootFolderID:  values["CATEGORY_ROOT_FOLDER_ID"],
		UncategorizedFolderID: values["UNCATEGORIZED_FOLDER_ID"],
		OCREngine:             getValue(values, "OCR_ENGINE", "vision"),
		DocumentAIProcessorID: values["DOCUMENT_AI_PROCESSOR_ID"],
		DocumentAILocation:    getValue(values, "DOCUMENT_AI_LOCATION", "us"),
		OpenAIAPIKey:          values["OPENAI_API_KEY"],
		OpenAIModel:           getValue(values, "OPENAI_MODEL", "gpt-4o-mini"),
		ReviewSheetURL:        values["REVIEW_SHEET_URL"],
		Port:                  getValue(values, "PORT", "8080"),
		LogLevel:              getValue(values, "LOG_LEVEL", "info"),
		LogFormat:             getValue(values, "LOG_FORMAT", "json"),
		LogTimeFormat:         getValue(values, "LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:             getValue(values, "LOG_OUTPUT", "stdout"),
	}

	temperature, err := strconv.ParseFloat(getValue(values, "OPENAI_TEMPERATURE", "0.1"), 32)
	if err != nil {
		return nil, errs.NewValidationError("OPENAI_TEMPERATURE", fmt.Sprintf("OPENAI_TEMPERATURE must be a number, got %q", values["OPENAI_TEMPERATURE"]))
	}
	config.OpenAITemperature = float32(temperature)

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.OCREngine {
	case "vision":
	case "documentai":
		if c.DocumentAIProcessorID == "" {
			return errs.NewValidationError("DOCUMENT_AI_PROCESSOR_ID", "DOCUMENT_AI_PROCESSOR_ID is required when OCR_ENGINE=documentai")
		}
	default:
		return errs.NewValidationError("OCR_ENGINE", fmt.Sprintf("OCR_ENGINE must be vision or documentai, got %q", c.OCREngine))
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getValue(values map[string]string, key, defaultValue string) string {
	if value := values[key]; value != "" {
		return value
	}
	return defaultValue
}

// LoggerConfigFromEnv reads only the LOG_* variables from p.
func LoggerConfigFromEnv(p Provider) logger.LogConfig {
	values, _ := Resolve(p, []Requirement{
		{Name: "LOG_LEVEL"},
		{Name: "LOG_FORMAT"},
		{Name: "LOG_TIME_FORMAT"},
		{Name: "LOG_OUTPUT"},
	})
	defaults := logger.DefaultConfig()
	return logger.LogConfig{
		Level:      getValue(values, "LOG_LEVEL", defaults.Level),
		Format:     getValue(values, "LOG_FORMAT", defaults.Format),
		TimeFormat: getValue(values, "LOG_TIME_FORMAT", defaults.TimeFormat),
		Output:     getValue(values, "LOG_OUTPUT", defaults.Output),
	}
}
