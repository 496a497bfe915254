package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"ai-interview-capture-service/internal/service/media"
)

func NewDoctorCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			ok := true

			if err := deps.Config.Validate(); err != nil {
				check(out, "Configuration", false, err.Error())
				ok = false
			} else {
				check(out, "Configuration", true, "valid")
			}

			if deps.Config.Media.Provider == "ffmpeg" {
				if err := (&media.FFmpegDevices{}).CheckFFmpeg(); err != nil {
					check(out, "ffmpeg", false, "not found. Install ffmpeg or set MEDIA_PROVIDER=synthetic")
					ok = false
				} else {
					check(out, "ffmpeg", true, "installed")
				}
			} else {
				check(out, "Media", true, "synthetic devices")
			}

			switch deps.Config.STT.Provider {
			case "google":
				if deps.Config.STT.CredentialsFile == "" {
					check(out, "Speech recognition", true, "google, using GOOGLE_APPLICATION_CREDENTIALS")
				} else {
					check(out, "Speech recognition", true, "google, credentials "+deps.Config.STT.CredentialsFile)
				}
			case "none":
				check(out, "Speech recognition", !deps.Config.STT.Required, "disabled")
				ok = ok && !deps.Config.STT.Required
			default:
				check(out, "Speech recognition", true, deps.Config.STT.Provider)
			}

			check(out, "Backend", true, deps.Config.Backend.BaseURL)
			if deps.Config.Kafka.Enabled {
				check(out, "Kafka", true, fmt.Sprint(deps.Config.Kafka.Brokers))
			} else {
				check(out, "Kafka", true, "disabled, events are logged only")
			}

			if !ok {
				return fmt.Errorf("some prerequisites are missing")
			}
			fmt.Fprintln(out, "\nAll prerequisites met.")
			return nil
		},
	}
}

func check(w io.Writer, name string, ok bool, detail string) {
	mark := "✓"
	if !ok {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s: %s\n", mark, name, detail)
}
