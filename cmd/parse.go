package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"docpipe/internal/errs"
	"docpipe/internal/event"
)

var parseCmd = &cobra.Command{
	Use:   "parse [payload-file]",
	Short: "Decode a stage payload the way the stages do",
	Long: `Decode a payload (plain or base64-encoded JSON) into the message a stage
would see, optionally checking required fields. Reads stdin when no file is
given. Failures are printed as the normalized error record.`,
	Example: `  # Decode a base64 Pub/Sub payload
  echo eyJmaWxlSWQiOiIxMjMifQ== | docpipe parse

  # Check the fields preparation requires
  docpipe parse message.json --require fileId,fileName --source projects/demo/subscriptions/preparation`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().String("source", "", "Source id to attach to the message")
	parseCmd.Flags().StringSlice("require", nil, "Fields that must be present")
}

func runParse(cmd *cobra.Command, args []string) error {
	source, _ := cmd.Flags().GetString("source")
	required, _ := cmd.Flags().GetStringSlice("require")

	var (
		payload []byte
		err     error
	)
	if len(args) == 1 && args[0] != "-" {
		payload, err = os.ReadFile(args[0])
	} else {
		payload, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}

	env := &event.Envelope{SourceID: source}
	if len(payload) > 0 {
		env.Payload = payload
	}

	msg, err := event.Parse(env)
	if err == nil {
		err = event.RequireFields(msg.Data, required...)
	}
	if err != nil {
		if printErr := printJSON(cmd.OutOrStdout(), errs.Normalize(err, "parse")); printErr != nil {
			return printErr
		}
		return err
	}
	return printJSON(cmd.OutOrStdout(), msg)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
