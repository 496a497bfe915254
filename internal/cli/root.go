// Package cli holds the interview-agent commands.
package cli

import (
	"github.com/spf13/cobra"

	"ai-interview-capture-service/internal/config"
)

type Dependencies struct {
	Config *config.Configuration
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "interview-agent",
		Short:         "Capture a live AI interview",
		Long:          "Runs one candidate interview: captures camera and microphone, transcribes answers live, records every answer and the whole session, and uploads the recording and a PDF transcript on completion.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(NewRunCmd(deps))
	rootCmd.AddCommand(NewRenderTranscriptCmd())
	rootCmd.AddCommand(NewWatchCmd(deps))
	rootCmd.AddCommand(NewDoctorCmd(deps))

	return rootCmd
}
