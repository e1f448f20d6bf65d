package workspace

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetPrimaryProjectOnUnsetWorkspaceSucceeds(t *testing.T) {
	w := &Workspace{ID: "ws-1"}
	require.NoError(t, SetPrimaryProject(w, "proj-1"))
	require.Equal(t, "proj-1", w.PrimaryProjectID)
}

func TestSetPrimaryProjectIsIdempotentForTheSameProject(t *testing.T) {
	w := &Workspace{ID: "ws-1", PrimaryProjectID: "proj-1"}
	require.NoError(t, SetPrimaryProject(w, "proj-1"))
	require.Equal(t, "proj-1", w.PrimaryProjectID)
}

func TestSetPrimaryProjectRefusesToOverwriteADifferentProject(t *testing.T) {
	w := &Workspace{ID: "ws-1", PrimaryProjectID: "proj-1"}
	err := SetPrimaryProject(w, "proj-2")
	require.ErrorIs(t, err, ErrPrimaryProjectExists)
	require.Equal(t, "proj-1", w.PrimaryProjectID, "a refused assignment must not mutate the workspace")
}
