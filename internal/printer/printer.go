// Package printer formats CLI output. Colors are forced on unless NO_COLOR
// is set.
package printer

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/adaptivecare/pulse/pkg/hospital"
)

func init() {
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// Success prints a success message in green with a checkmark prefix.
func Success(format string, a ...any) {
	green.Printf("✓ %s", fmt.Sprintf(format, a...))
}

// Info prints an informational message in the default color.
func Info(format string, a ...any) {
	fmt.Printf(format, a...)
}

// Warning prints a warning message in yellow.
func Warning(format string, a ...any) {
	yellow.Printf("⚠ %s", fmt.Sprintf(format, a...))
}

// Error prints a formatted error with suggestions to stderr and returns a
// plain error for cobra.
func Error(title string, explanation string, suggestions []string) error {
	red.Fprintf(os.Stderr, "%s\n\n", title)
	if explanation != "" {
		fmt.Fprintf(os.Stderr, "%s\n", explanation)
	}
	if len(suggestions) > 0 {
		fmt.Fprintf(os.Stderr, "\n")
		for _, s := range suggestions {
			fmt.Fprintf(os.Stderr, "  - %s\n", s)
		}
	}
	return fmt.Errorf("%s", title)
}

// Println prints a plain message.
func Println(a ...any) {
	fmt.Println(a...)
}

// Printf prints a plain formatted message.
func Printf(format string, a ...any) {
	fmt.Printf(format, a...)
}

// actionColor maps decision actions to their display color: escalations red,
// placements green, holds yellow.
func actionColor(a hospital.Action) *color.Color {
	switch a {
	case hospital.ActionEscalate:
		return red
	case hospital.ActionAdmit, hospital.ActionTransfer:
		return green
	default:
		return yellow
	}
}

// Decision prints one decision record as a single annotated line plus its
// reasoning.
func Decision(d *hospital.Decision) {
	ts := time.UnixMilli(d.CreatedAtMs).Format("15:04:05")
	faint.Printf("[%s] ", ts)
	actionColor(d.Action).Printf("%-8s", d.Action)
	fmt.Printf(" patient=%s", d.PatientID)
	if d.TargetUnitID != "" {
		fmt.Printf(" target=%s", d.TargetUnitID)
	}
	fmt.Printf(" confidence=%.2f", d.Confidence)
	if d.Stale {
		yellow.Printf(" [stale]")
	}
	fmt.Println()
	if d.Reasoning != "" {
		faint.Printf("          %s\n", d.Reasoning)
	}
}

// Assessment prints one risk assessment line.
func Assessment(a *hospital.RiskAssessment) {
	ts := time.UnixMilli(a.CreatedAtMs).Format("15:04:05")
	faint.Printf("[%s] ", ts)
	cyan.Printf("risk    ")
	fmt.Printf(" patient=%s score=%.1f trajectory=%s confidence=%.2f",
		a.PatientID, a.Score, a.Trajectory, a.Confidence)
	if a.CriticalVitals {
		red.Printf(" [critical vitals]")
	}
	fmt.Println()
}

// Capacity prints one capacity snapshot summary line.
func Capacity(s *hospital.CapacitySnapshot) {
	ts := time.UnixMilli(s.CreatedAtMs).Format("15:04:05")
	faint.Printf("[%s] ", ts)
	cyan.Printf("capacity")
	fmt.Printf(" available=%d/%d occupancy=%.0f%% predicted_discharges=%d\n",
		s.TotalAvailable, s.TotalBeds, s.OverallOccupancy*100, s.PredictedDischarges)
}
