package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"ai-interview-capture-service/internal/models"
	"ai-interview-capture-service/internal/schema"
	"ai-interview-capture-service/internal/service/transcript"
)

func NewRenderTranscriptCmd() *cobra.Command {
	var in, out string

	cmd := &cobra.Command{
		Use:   "render-transcript",
		Short: "Render a transcript PDF from a JSON list of entries",
		Long:  `Reads [{"role":"AI"|"Candidate","text":"..."}] from --in (or stdin) and writes the transcript PDF to --out.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if in != "" && in != "-" {
				f, err := os.Open(in)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			entries, err := readEntries(r)
			if err != nil {
				return err
			}
			doc, err := transcript.Render(entries)
			if err != nil {
				return fmt.Errorf("rendering transcript: %w", err)
			}
			if err := os.WriteFile(out, doc.Data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d entries to %s (%d bytes)\n", len(entries), out, doc.Size())
			return nil
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "JSON entries file (default stdin)")
	cmd.Flags().StringVar(&out, "out", "transcript.pdf", "Output PDF path")

	return cmd
}

type entryInput struct {
	Role models.Role `json:"role" validate:"oneof=AI Candidate"`
	Text string      `json:"text"`
}

func readEntries(r io.Reader) ([]models.TranscriptEntry, error) {
	var raw []entryInput
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding entries: %w", err)
	}
	v := schema.New()
	entries := make([]models.TranscriptEntry, 0, len(raw))
	for i, e := range raw {
		if err := v.Validate(e); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entries = append(entries, models.TranscriptEntry{Role: e.Role, Text: e.Text})
	}
	return entries, nil
}
