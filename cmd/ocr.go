package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"docpipe/internal/config"
	"docpipe/internal/logger"
	"docpipe/internal/ocr"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr [file]",
	Short: "Extract text from a local document",
	Long: `Extract the text of a local PDF, TIFF, GIF or image file with the same
extractors the extraction stage uses. Text files are read directly.

Cloud Vision (default) processes up to 5 pages and 20MB synchronously.
Document AI needs an OCR processor (--processor or DOCUMENT_AI_PROCESSOR_ID).

Credentials:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string
  GOOGLE_CLOUD_PROJECT - Your Google Cloud project ID (Document AI only)`,
	Example: `  # Extract text from invoice.pdf to stdout
  docpipe ocr invoice.pdf

  # Save extracted text to file
  docpipe ocr invoice.pdf -o extracted.txt

  # Include metadata and output as JSON
  docpipe ocr scan.png --metadata --json -o result.json

  # Use a Document AI processor
  docpipe ocr invoice.pdf --engine documentai --processor abc123 --location eu`,
	Args: cobra.ExactArgs(1),
	RunE: runOCR,
}

// OCROutput represents the JSON output structure when --json flag is used
type OCROutput struct {
	Text               string     `json:"text"`
	Pages              []ocr.Page `json:"pages,omitempty"`
	PageCount          int        `json:"page_count,omitempty"`
	Confidence         float32    `json:"confidence,omitempty"`
	LanguageCodes      []string   `json:"language_codes,omitempty"`
	Extractor          string     `json:"extractor"`
	ProcessedAt        time.Time  `json:"processed_at,omitempty"`
	ProcessingDuration string     `json:"processing_duration,omitempty"`
	FileName           string     `json:"file_name"`
	FileSize           int64      `json:"file_size"`
}

func init() {
	rootCmd.AddCommand(ocrCmd)

	ocrCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	ocrCmd.Flags().BoolP("metadata", "m", false, "Include metadata in output")
	ocrCmd.Flags().Bool("json", false, "Output as JSON")
	ocrCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
	ocrCmd.Flags().String("engine", "", "OCR engine: vision or documentai (default: $OCR_ENGINE or vision)")
	ocrCmd.Flags().String("processor", "", "Document AI processor ID (default: $DOCUMENT_AI_PROCESSOR_ID)")
	ocrCmd.Flags().String("location", "", "Document AI location (default: $DOCUMENT_AI_LOCATION or us)")
}

func runOCR(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ocr")

	outputPath, _ := cmd.Flags().GetString("output")
	includeMetadata, _ := cmd.Flags().GetBool("metadata")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	filePath := args[0]

	log.Info().
		Str("file", filePath).
		Str("output", outputPath).
		Bool("metadata", includeMetadata).
		Bool("json", jsonOutput).
		Int("timeout", timeoutSecs).
		Msg("Starting OCR processing")

	fileInfo, err := validateFile(filePath, log)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, time.Duration(timeoutSecs)*time.Second)
	defer cancelTimeout()

	extractor, closeExtractor, err := createExtractor(ctx, cmd, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeExtractor(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close OCR client")
		}
	}()

	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(filePath)))
	if mimeType == "" {
		mimeType = "application/pdf"
		log.Warn().Str("file", filePath).Msg("Unknown extension, assuming PDF")
	}

	log.Info().
		Str("file", filePath).
		Str("mime_type", mimeType).
		Int64("size", fileInfo.Size()).
		Msg("Processing document")

	result, err := extractor.Extract(ctx, content, mimeType)
	if err != nil {
		return handleOCRError(err, log)
	}

	log.Info().
		Int("page_count", result.PageCount).
		Float32("confidence", result.Confidence).
		Dur("duration", result.ProcessingDuration).
		Int("text_length", len(result.Text)).
		Msg("OCR processing completed successfully")

	return outputResults(result, fileInfo, outputPath, jsonOutput, includeMetadata, log)
}

// validateFile checks that the file exists, is a regular file and fits the
// synchronous size limit.
func validateFile(path string, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", path).Msg("File not found")
			return nil, fmt.Errorf("file not found: %s", path)
		}
		if os.IsPermission(err) {
			log.Error().Str("file", path).Msg("Permission denied accessing file")
			return nil, fmt.Errorf("permission denied accessing file: %s", path)
		}
		return nil, fmt.Errorf("error accessing file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("path is not a regular file: %s", path)
	}
	if fileInfo.Size() == 0 {
		return nil, fmt.Errorf("file is empty: %s", path)
	}
	if fileInfo.Size() > ocr.MaxFileSizeBytes {
		log.Error().
			Str("file", path).
			Int64("size", fileInfo.Size()).
			Int64("max_size", ocr.MaxFileSizeBytes).
			Msg("File exceeds maximum size limit")
		return nil, fmt.Errorf("file too large (%d bytes). Maximum size is %d bytes (20MB)",
			fileInfo.Size(), ocr.MaxFileSizeBytes)
	}

	return fileInfo, nil
}

// createExtractor builds the extractor selected by flags, falling back to the
// environment.
func createExtractor(ctx context.Context, cmd *cobra.Command, log zerolog.Logger) (ocr.TextExtractor, func() error, error) {
	values, err := config.Resolve(config.Env{}, []config.Requirement{
		{Name: "OCR_ENGINE"},
		{Name: "DOCUMENT_AI_PROCESSOR_ID"},
		{Name: "DOCUMENT_AI_LOCATION"},
	})
	if err != nil {
		return nil, nil, err
	}

	cfg := &config.Config{
		OCREngine:             flagOr(cmd, "engine", values["OCR_ENGINE"]),
		DocumentAIProcessorID: flagOr(cmd, "processor", values["DOCUMENT_AI_PROCESSOR_ID"]),
		DocumentAILocation:    flagOr(cmd, "location", values["DOCUMENT_AI_LOCATION"]),
	}
	if cfg.OCREngine == ocr.EngineDocumentAI {
		if cfg.ProjectID, err = config.ResolveProjectID(config.Env{}); err != nil {
			return nil, nil, err
		}
	}

	router, closer, err := newExtractor(ctx, cfg, config.ClientOptions(config.Env{}))
	if err != nil {
		log.Error().Err(err).Msg("Failed to create OCR extractor")
		return nil, nil, fmt.Errorf("failed to create OCR extractor: %w", err)
	}

	log.Debug().Str("engine", cfg.OCREngine).Msg("OCR extractor created")
	return router, closer, nil
}

func flagOr(cmd *cobra.Command, name, fallback string) string {
	if v, _ := cmd.Flags().GetString(name); v != "" {
		return v
	}
	return fallback
}

// handleOCRError provides user-friendly error messages for OCR failures
func handleOCRError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("OCR processing failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("OCR processing timed out. Try increasing --timeout or processing a smaller file")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("OCR processing was canceled")
	case errors.Is(err, ocr.ErrFileTooLarge):
		return fmt.Errorf("file is too large (maximum 20MB). Try compressing or splitting the file")
	case errors.Is(err, ocr.ErrTooManyPages):
		return fmt.Errorf("document has too many pages (maximum 5 pages). Try splitting into smaller files or use --engine documentai")
	case errors.Is(err, ocr.ErrUnsupportedType):
		return fmt.Errorf("unsupported file type: %w", err)
	case errors.Is(err, ocr.ErrEmptyDocument):
		return fmt.Errorf("no readable text found in the document")
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS, "+
			"or run 'gcloud auth application-default login'. Original error: %v", err)
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return fmt.Errorf("permission denied. Please ensure your service account can call the selected OCR API")
	case strings.Contains(errStr, "QUOTA_EXCEEDED") || strings.Contains(errStr, "RESOURCE_EXHAUSTED"):
		return fmt.Errorf("OCR API quota exceeded. Check your project quotas in the Google Cloud Console")
	default:
		return fmt.Errorf("OCR processing failed: %w", err)
	}
}

// outputResults formats and outputs the OCR results
func outputResults(result *ocr.Result, fileInfo os.FileInfo, outputPath string, jsonOutput, includeMetadata bool, log zerolog.Logger) error {
	var outputData []byte

	if jsonOutput {
		ocrOutput := OCROutput{
			Text:               result.Text,
			FileName:           filepath.Base(fileInfo.Name()),
			FileSize:           fileInfo.Size(),
			PageCount:          result.PageCount,
			Confidence:         result.Confidence,
			LanguageCodes:      result.LanguageCodes,
			Extractor:          result.Extractor,
			ProcessedAt:        result.ProcessedAt,
			ProcessingDuration: result.ProcessingDuration.String(),
		}
		if includeMetadata {
			ocrOutput.Pages = result.Pages
		}

		data, err := json.MarshalIndent(ocrOutput, "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal JSON output")
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		outputData = data
	} else {
		var output strings.Builder
		if includeMetadata {
			fmt.Fprintf(&output, "=== OCR Results for %s ===\n", filepath.Base(fileInfo.Name()))
			fmt.Fprintf(&output, "File size: %d bytes\n", fileInfo.Size())
			fmt.Fprintf(&output, "Extractor: %s\n", result.Extractor)
			if result.PageCount > 0 {
				fmt.Fprintf(&output, "Pages processed: %d\n", result.PageCount)
			}
			if result.Confidence > 0 {
				fmt.Fprintf(&output, "Confidence: %.1f%%\n", result.Confidence*100)
			}
			if len(result.LanguageCodes) > 0 {
				fmt.Fprintf(&output, "Languages: %s\n", strings.Join(result.LanguageCodes, ", "))
			}
			fmt.Fprintf(&output, "Processing time: %v\n", result.ProcessingDuration)
			fmt.Fprintf(&output, "Processed at: %s\n", result.ProcessedAt.Format(time.RFC3339))
			output.WriteString("\n=== Extracted Text ===\n\n")
		}
		output.WriteString(result.Text)
		outputData = []byte(output.String())
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, outputData, 0644); err != nil {
			log.Error().
				Err(err).
				Str("output_file", outputPath).
				Msg("Failed to write output file")
			return fmt.Errorf("failed to write output file: %w", err)
		}

		log.Info().
			Str("output_file", outputPath).
			Int("bytes", len(outputData)).
			Msg("OCR results written to file")
		return nil
	}

	if _, err := os.Stdout.Write(outputData); err != nil {
		log.Error().Err(err).Msg("Failed to write to stdout")
		return fmt.Errorf("failed to write output: %w", err)
	}
	if !jsonOutput && !strings.HasSuffix(string(outputData), "\n") {
		fmt.Println()
	}
	return nil
}
