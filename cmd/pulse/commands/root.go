package commands

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/adaptivecare/pulse/pkg/bus"
)

var (
	version string
	commit  string
	date    string

	instanceName string
	redisURL     string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Pulse - hospital patient-flow decision core",
	Long: `Pulse coordinates hospital patient flow: it assesses patient risk from
vitals, tracks unit capacity, ranks placements with multi-criteria scoring
and emits escalation decisions with auditable reasoning.

The CLI connects to a running pulsed instance over Redis to watch live
activity, read the decision journal and inject events during development.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version string shown by --version.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&instanceName, "name", "n", "default", "Target instance name")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis-url", "redis://localhost:6379", "Redis connection URL")
}

// newBusClient connects to the instance's Redis namespace.
func newBusClient() (*bus.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return bus.NewClient(opts, instanceName)
}
