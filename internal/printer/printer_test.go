package printer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adaptivecare/pulse/pkg/hospital"
)

func TestError(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		err := Error("Test Error", "This is a test error", []string{})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
	})

	t.Run("returns error with title when including suggestions", func(t *testing.T) {
		err := Error("Test Error", "Explanation", []string{"Try this fix"})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
	})
}

func TestActionColor(t *testing.T) {
	// Every action maps to a color without panicking, including unknown ones.
	for _, a := range []hospital.Action{
		hospital.ActionEscalate, hospital.ActionAdmit, hospital.ActionTransfer,
		hospital.ActionObserve, hospital.ActionDelay, hospital.Action("bogus"),
	} {
		require.NotNil(t, actionColor(a))
	}
}

func TestDecisionPrintsWithoutPanic(t *testing.T) {
	Decision(&hospital.Decision{
		ID:           "00000000-0000-0000-0000-000000000000",
		PatientID:    "patient-1",
		Action:       hospital.ActionEscalate,
		TargetUnitID: "icu-1",
		Confidence:   0.9,
		Reasoning:    "test reasoning",
		Stale:        true,
		CreatedAtMs:  1700000000000,
	})
}
