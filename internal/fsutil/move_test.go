package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMoveInto_RenamesKeepingBasename(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	src := filepath.Join(srcDir, "task-1")
	require.NoError(t, os.Mkdir(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sample.fastq"), []byte("data"), 0o644))

	dst, err := MoveInto(src, destDir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(destDir, "task-1"), dst)

	_, err = os.Stat(src)
	require.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(filepath.Join(dst, "sample.fastq"))
	require.NoError(t, err)
	require.Equal(t, "data", string(data))
}

func TestMove_MissingParentDirFails(t *testing.T) {
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "file.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	err := Move(src, filepath.Join(srcDir, "does-not-exist", "file.txt"))
	require.Error(t, err)
}

func TestCopyTree_CopiesNestedDirectoryAndLeavesSourceIntact(t *testing.T) {
	srcRoot := t.TempDir()
	dstRoot := t.TempDir()

	src := filepath.Join(srcRoot, "task-1")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "provenance.json"), []byte(`{"taskId":"x"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "nested", "sample.fastq"), []byte("reads"), 0o644))

	dst := filepath.Join(dstRoot, "task-1")
	require.NoError(t, CopyTree(src, dst))

	data, err := os.ReadFile(filepath.Join(dst, "nested", "sample.fastq"))
	require.NoError(t, err)
	require.Equal(t, "reads", string(data))

	// source must still exist: CopyTree, unlike Move, never deletes.
	_, err = os.Stat(src)
	require.NoError(t, err)
}

func TestCopyTree_SingleFile(t *testing.T) {
	srcRoot := t.TempDir()
	dstRoot := t.TempDir()

	src := filepath.Join(srcRoot, "sample.fastq")
	require.NoError(t, os.WriteFile(src, []byte("reads"), 0o644))

	dst := filepath.Join(dstRoot, "sample.fastq")
	require.NoError(t, CopyTree(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "reads", string(data))
}

func TestCopyTree_LeavesNoTempFileBehindOnSuccess(t *testing.T) {
	srcRoot := t.TempDir()
	dstRoot := t.TempDir()

	src := filepath.Join(srcRoot, "sample.fastq")
	require.NoError(t, os.WriteFile(src, []byte("reads"), 0o644))

	dst := filepath.Join(dstRoot, "sample.fastq")
	require.NoError(t, CopyTree(src, dst))

	_, err := os.Stat(dst + ".tmp")
	require.True(t, os.IsNotExist(err))
}
