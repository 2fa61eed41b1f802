package commands

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adaptivecare/pulse/internal/printer"
	"github.com/adaptivecare/pulse/pkg/bus"
	"github.com/adaptivecare/pulse/pkg/hospital"
)

var (
	watchAll          bool
	watchOutputFormat string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor live decisions",
	Long: `Stream decisions as the pipeline emits them.

With --all, also stream risk assessments, capacity snapshots and
recommendations for full pipeline visibility.

Output Formats:
  default - Human-readable colored output
  json    - Line-delimited envelope JSON for programmatic processing

Examples:
  # Watch decisions on the default instance
  pulse watch

  # Watch the full pipeline on a named instance
  pulse watch --name icu-east --all

  # Export events as JSON
  pulse watch --output=json > events.jsonl`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchAll, "all", false, "Watch all pipeline topics, not only decisions")
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchOutputFormat != "default" && watchOutputFormat != "json" {
		return printer.Error("Invalid output format",
			"The --output flag accepts 'default' or 'json'.", nil)
	}

	client, err := newBusClient()
	if err != nil {
		return printer.Error("Failed to connect", err.Error(),
			[]string{"Check that Redis is running and --redis-url is correct"})
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	topics := []string{bus.TopicDecisionMade}
	if watchAll {
		topics = append(topics, bus.TopicRiskUpdated, bus.TopicCapacityUpdate, bus.TopicRecommendation)
	}

	sub, err := client.Subscribe(ctx, topics...)
	if err != nil {
		return printer.Error("Failed to subscribe", err.Error(), nil)
	}
	defer sub.Close()

	printer.Info("Watching instance %q (ctrl-c to stop)...\n", instanceName)

	encoder := json.NewEncoder(os.Stdout)
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if watchOutputFormat == "json" {
				encoder.Encode(env)
				continue
			}
			printEnvelope(env)
		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			printer.Warning("subscription error: %v\n", err)
		}
	}
}

// printEnvelope renders one envelope in human-readable form; undecodable
// payloads are reported, never fatal.
func printEnvelope(env *bus.Envelope) {
	switch env.Topic {
	case bus.TopicDecisionMade:
		if d, err := bus.Decode[hospital.Decision](env); err == nil {
			printer.Decision(d)
			return
		}
	case bus.TopicRiskUpdated:
		if a, err := bus.Decode[hospital.RiskAssessment](env); err == nil {
			printer.Assessment(a)
			return
		}
	case bus.TopicCapacityUpdate:
		if s, err := bus.Decode[hospital.CapacitySnapshot](env); err == nil {
			printer.Capacity(s)
			return
		}
	case bus.TopicRecommendation:
		if r, err := bus.Decode[hospital.Recommendation](env); err == nil {
			printer.Printf("          recommendation patient=%s candidates=%d confidence=%.2f\n",
				r.PatientID, len(r.Candidates), r.Confidence)
			return
		}
	}
	printer.Warning("undecodable %s event %s\n", env.Topic, env.ID)
}
