package schedule

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valops/internal/execx"
)

// cronScript simulates a crontab binary backed by an in-memory table.
func cronScript(table *string, hasTable *bool) func(cmd execx.Command) (*execx.Result, error) {
	return func(cmd execx.Command) (*execx.Result, error) {
		switch cmd.Args[0] {
		case "-l":
			if !*hasTable {
				return &execx.Result{ExitCode: 1, Output: "no crontab for user"}, nil
			}
			return &execx.Result{ExitCode: 0, Output: *table}, nil
		case "-":
			*table = cmd.Stdin
			*hasTable = true
			return &execx.Result{ExitCode: 0}, nil
		}
		return &execx.Result{ExitCode: 2}, nil
	}
}

func newCronFixture(initial string, present bool) (*CronBackend, *string, *bool, *scriptedExec) {
	table := initial
	hasTable := present
	exec := &scriptedExec{script: cronScript(&table, &hasTable)}
	return &CronBackend{exec: exec, logger: nopLogger()}, &table, &hasTable, exec
}

func TestCronCreateOnEmptyCrontab(t *testing.T) {
	backend, table, _, _ := newCronFixture("", false)

	require.NoError(t, backend.Create(context.Background(), defaultPlan()))

	assert.True(t, strings.HasPrefix(*table, blockBegin+"\n"))
	assert.True(t, strings.HasSuffix(*table, blockEnd+"\n"))
	assert.Contains(t, *table, "0 9 * * 1,2 /opt/valops/valops run # ValSemanal_0900")
	assert.Contains(t, *table, "0 18 * * 1,2 /opt/valops/valops run # ValSemanal_1800")
	assert.Equal(t, 10, strings.Count(*table, "# ValSemanal_"))
}

func TestCronCreatePreservesForeignEntries(t *testing.T) {
	existing := "MAILTO=ops@example.com\n30 2 * * * /usr/local/bin/backup.sh\n" +
		blockBegin + "\n0 9 * * 1,2 stale # ValSemanal_0900\n" + blockEnd + "\n"
	backend, table, _, _ := newCronFixture(existing, true)

	require.NoError(t, backend.Create(context.Background(), defaultPlan()))

	assert.Contains(t, *table, "MAILTO=ops@example.com")
	assert.Contains(t, *table, "/usr/local/bin/backup.sh")
	assert.NotContains(t, *table, "stale", "old block is replaced, not accumulated")
	assert.Equal(t, 1, strings.Count(*table, blockBegin))
}

func TestCronStatus(t *testing.T) {
	existing := blockBegin + "\n" +
		"0 9 * * 1,2 /opt/valops/valops run # ValSemanal_0900\n" +
		"0 10 * * 1,2 /opt/valops/valops run # ValSemanal_1000\n" +
		blockEnd + "\n"
	backend, _, _, _ := newCronFixture(existing, true)

	statuses, err := backend.Status(context.Background(), defaultPlan())
	require.NoError(t, err)
	require.Len(t, statuses, 10)

	byName := make(map[string]TaskStatus)
	for _, s := range statuses {
		byName[s.Name] = s
	}
	assert.True(t, byName["ValSemanal_0900"].Installed)
	assert.True(t, byName["ValSemanal_1000"].Installed)
	assert.False(t, byName["ValSemanal_1100"].Installed)
	assert.Contains(t, byName["ValSemanal_0900"].Detail, "0 9 * * 1,2")
}

func TestCronDeleteRemovesOnlyTheBlock(t *testing.T) {
	existing := "30 2 * * * /usr/local/bin/backup.sh\n" +
		blockBegin + "\n0 9 * * 1,2 x # ValSemanal_0900\n" + blockEnd + "\n"
	backend, table, _, _ := newCronFixture(existing, true)

	require.NoError(t, backend.Delete(context.Background(), defaultPlan()))

	assert.Contains(t, *table, "backup.sh")
	assert.NotContains(t, *table, blockBegin)
	assert.NotContains(t, *table, "ValSemanal")
}

func TestCronDeleteWithoutBlockWritesNothing(t *testing.T) {
	backend, _, _, exec := newCronFixture("30 2 * * * backup\n", true)

	require.NoError(t, backend.Delete(context.Background(), defaultPlan()))

	for _, cmd := range exec.commands {
		assert.NotEqual(t, "-", cmd.Args[0], "no rewrite when nothing is installed")
	}
}

func TestStripBlockEdgeCases(t *testing.T) {
	assert.Equal(t, "", stripBlock(""))
	assert.Equal(t, "a\n", stripBlock("a\n"))
	assert.Equal(t, "", stripBlock(blockBegin+"\nentry\n"+blockEnd+"\n"))
}
