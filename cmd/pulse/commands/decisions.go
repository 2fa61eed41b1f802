package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/adaptivecare/pulse/internal/journal"
	"github.com/adaptivecare/pulse/internal/printer"
	"github.com/adaptivecare/pulse/pkg/hospital"
)

var (
	decisionsPatient string
	decisionsLimit   int
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Read the decision journal",
	Long: `List decisions from the journal, most recent first.

Examples:
  # Last 20 decisions
  pulse decisions

  # One patient's decision history
  pulse decisions --patient patient-42

  # More history
  pulse decisions -c 100`,
	RunE: runDecisions,
}

func init() {
	decisionsCmd.Flags().StringVarP(&decisionsPatient, "patient", "p", "", "Only this patient's decisions")
	decisionsCmd.Flags().IntVarP(&decisionsLimit, "count", "c", 20, "Maximum decisions to list")
	rootCmd.AddCommand(decisionsCmd)
}

func runDecisions(cmd *cobra.Command, args []string) error {
	client, err := newBusClient()
	if err != nil {
		return printer.Error("Failed to connect", err.Error(),
			[]string{"Check that Redis is running and --redis-url is correct"})
	}
	defer client.Close()

	jrnl, err := journal.New(client.Redis(), instanceName)
	if err != nil {
		return printer.Error("Failed to open journal", err.Error(), nil)
	}

	decisions, err := fetchDecisions(context.Background(), jrnl)
	if err != nil {
		return printer.Error("Failed to read journal", err.Error(), nil)
	}

	if len(decisions) == 0 {
		printer.Info("No decisions recorded.\n")
		return nil
	}
	for _, d := range decisions {
		printer.Decision(d)
	}
	return nil
}

// fetchDecisions reads the journal per the command flags: one patient's
// history when --patient is set, the global tail otherwise.
func fetchDecisions(ctx context.Context, jrnl *journal.Journal) ([]*hospital.Decision, error) {
	if decisionsPatient != "" {
		return jrnl.ForPatient(ctx, decisionsPatient, decisionsLimit)
	}
	return jrnl.Recent(ctx, decisionsLimit)
}
