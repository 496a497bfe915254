package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ai-interview-capture-service/internal/events"
)

func NewWatchCmd(deps *Dependencies) *cobra.Command {
	var session string
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow transcript and lifecycle events on Kafka",
		Long:  "Reads the partial, final and lifecycle topics and prints every event, optionally filtered to one session. Ctrl+C to stop.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return watch(ctx, deps, cmd.OutOrStdout(), session, since)
		},
	}

	cmd.Flags().StringVarP(&session, "session", "s", "", "Only show events of this session")
	cmd.Flags().DurationVar(&since, "since", time.Hour, "Replay events newer than this")

	return cmd
}

func watch(ctx context.Context, deps *Dependencies, out io.Writer, session string, since time.Duration) error {
	k := deps.Config.Kafka
	var mu sync.Mutex
	show := func(e events.Envelope) {
		if session != "" && e.SessionID != session && e.Key != session {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(out, formatEnvelope(e))
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, topic := range []string{k.TopicPartial, k.TopicFinal, k.TopicLifecycle} {
		topic := topic
		g.Go(func() error {
			return events.Watch(ctx, events.WatchConfig{Brokers: k.Brokers, Topic: topic, Since: since}, show)
		})
	}
	return g.Wait()
}

func formatEnvelope(e events.Envelope) string {
	ts := e.Time.Format("15:04:05")
	if e.From != "" || e.To != "" {
		line := fmt.Sprintf("%s %-8s %s -> %s", ts, e.SessionID, e.From, e.To)
		if e.Reason != "" {
			line += " (" + e.Reason + ")"
		}
		return line
	}
	if e.Confidence > 0 {
		return fmt.Sprintf("%s %-8s %s [final %.2f] %s", ts, e.SessionID, e.QuestionID, e.Confidence, e.Text)
	}
	return fmt.Sprintf("%s %-8s %s [%s] %s", ts, e.SessionID, e.QuestionID, e.EventType, e.Text)
}
