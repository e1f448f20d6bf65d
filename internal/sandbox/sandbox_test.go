package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	return s
}

func TestWriteRegisterRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	staging, err := s.Write(ctx, "ws-1", "exec-1", "report.txt", []byte("hello"))
	require.NoError(t, err)
	require.FileExists(t, staging)

	id, err := s.Register(ctx, "ws-1", "exec-1", staging, "report.txt")
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.NoFileExists(t, staging, "the staging file must be renamed away, not copied")

	records, err := s.List(ctx, "ws-1", "exec-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "report.txt", records[0].Name)
	require.Equal(t, int64(len("hello")), records[0].SizeBytes)

	content, err := os.ReadFile(records[0].Path)
	require.NoError(t, err)
	require.Equal(t, "hello", string(content))
}

func TestRegisterUnknownStagingPathFails(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Register(context.Background(), "ws-1", "exec-1", "/nowhere/staged", "out.txt")
	require.Error(t, err)
}

func TestWriteRejectsPathEscapingSandboxRootViaDotDot(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Write(context.Background(), "ws-1", "exec-1", "../../etc/passwd", []byte("x"))
	require.ErrorIs(t, err, ErrOutsideSandbox)
}

func TestWriteRejectsAbsolutePathEscapingSandboxRoot(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Write(context.Background(), "ws-1", "exec-1", "/etc/passwd", []byte("x"))
	require.ErrorIs(t, err, ErrOutsideSandbox)
}

// TestWriteConfinesEveryRegisteredPathStrictlyUnderItsExecutionDir is the
// path-containment invariant itself: whatever name is requested, the
// resolved absolute path must lie under base/workspaceID/executionID.
func TestWriteConfinesEveryRegisteredPathStrictlyUnderItsExecutionDir(t *testing.T) {
	s := newTestStore(t)
	staging, err := s.Write(context.Background(), "ws-1", "exec-1", "nested/report.txt", []byte("x"))
	require.NoError(t, err)

	wantDir := filepath.Join(s.base, "ws-1", "exec-1")
	require.True(t, strings.HasPrefix(staging, wantDir+string(filepath.Separator)),
		"staged path %q must lie under execution directory %q", staging, wantDir)
}

func TestListUnknownExecutionReturnsEmptyNotError(t *testing.T) {
	s := newTestStore(t)
	records, err := s.List(context.Background(), "ws-1", "exec-missing")
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestMissingWorkspaceOrExecutionIDFails(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Write(context.Background(), "", "exec-1", "a.txt", []byte("x"))
	require.Error(t, err)
	_, err = s.Write(context.Background(), "ws-1", "", "a.txt", []byte("x"))
	require.Error(t, err)
}
