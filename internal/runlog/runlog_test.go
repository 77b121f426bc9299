package runlog

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var linePattern = regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] .+$`)

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ejecucion.log")

	log, err := Open(path)
	require.NoError(t, err)
	defer log.Close()

	require.NoError(t, log.Append("hello"))
	_, err = os.Stat(path)
	assert.NoError(t, err)
	assert.Equal(t, path, log.Path())
}

func TestAppendWritesTimestampedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	log, err := Open(path)
	require.NoError(t, err)
	defer log.Close()

	require.NoError(t, log.Append("INICIO ejecucion pipeline"))
	require.NoError(t, log.Appendf("FIN ejecucion %s", "pipeline"))
	require.NoError(t, log.Separator())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Regexp(t, linePattern, lines[0])
	assert.Contains(t, lines[0], "INICIO ejecucion pipeline")
	assert.Regexp(t, linePattern, lines[1])
	assert.Contains(t, lines[1], "FIN ejecucion pipeline")
	assert.Equal(t, strings.Repeat("=", 60), lines[2])
}

func TestReopenAppendsOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")

	log, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, log.Append("first run"))
	require.NoError(t, log.Close())

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// A second invocation must strictly grow the file.
	log, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, log.Append("second run"))
	require.NoError(t, log.Close())

	after, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Greater(t, len(after), len(before))
	assert.True(t, strings.HasPrefix(string(after), string(before)),
		"earlier content must be preserved verbatim")
}

func TestAppendFlattensNewlines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	log, err := Open(path)
	require.NoError(t, err)
	defer log.Close()

	require.NoError(t, log.Append("line one\nline two\r\nline three"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "line one line two line three")
}

func TestClosedLogRejectsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	log, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, log.Close())

	assert.ErrorIs(t, log.Append("late"), ErrClosed)
	assert.ErrorIs(t, log.Separator(), ErrClosed)
	assert.NoError(t, log.Close(), "double close is fine")
}

func TestOpenUnwritablePath(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0500))
	defer os.Chmod(dir, 0755)

	_, err := Open(filepath.Join(dir, "sub", "run.log"))
	assert.Error(t, err)
}
