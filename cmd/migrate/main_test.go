package main

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	calls   []string
	steps   int
	forced  int
	version uint
	upErr   error
	verErr  error
}

func (f *fakeMigrator) Up() error {
	f.calls = append(f.calls, "up")
	return f.upErr
}

func (f *fakeMigrator) Down() error {
	f.calls = append(f.calls, "down")
	return nil
}

func (f *fakeMigrator) Steps(n int) error {
	f.calls = append(f.calls, "steps")
	f.steps = n
	return nil
}

func (f *fakeMigrator) Force(v int) error {
	f.calls = append(f.calls, "force")
	f.forced = v
	return nil
}

func (f *fakeMigrator) Version() (uint, bool, error) {
	return f.version, false, f.verErr
}

func TestParseCommand(t *testing.T) {
	cmd, err := parseCommand("up", nil)
	require.NoError(t, err)
	assert.Equal(t, "up", cmd.String())

	cmd, err = parseCommand("down", []string{"2"})
	require.NoError(t, err)
	assert.Equal(t, 2, cmd.n)
	assert.Equal(t, "down 2", cmd.String())

	cmd, err = parseCommand("force", []string{"1"})
	require.NoError(t, err)
	assert.Equal(t, 1, cmd.n)

	for _, bad := range [][]string{{"force"}, {"force", "x"}, {"up", "0"}, {"down", "-3"}, {"sideways"}} {
		_, err := parseCommand(bad[0], bad[1:])
		assert.Error(t, err, bad)
	}
}

func TestApply(t *testing.T) {
	m := &fakeMigrator{version: 2}
	require.NoError(t, apply(m, command{name: "up"}))
	require.NoError(t, apply(m, command{name: "down", n: 1}))
	require.NoError(t, apply(m, command{name: "force", n: 1}))
	require.NoError(t, apply(m, command{name: "version"}))
	assert.Equal(t, []string{"up", "steps", "force"}, m.calls)
	assert.Equal(t, -1, m.steps)
	assert.Equal(t, 1, m.forced)
}

func TestApplyTreatsNoChangeAsSuccess(t *testing.T) {
	m := &fakeMigrator{upErr: migrate.ErrNoChange, verErr: migrate.ErrNilVersion}
	assert.NoError(t, apply(m, command{name: "up"}))

	m = &fakeMigrator{upErr: errors.New("syntax error at line 3")}
	assert.ErrorContains(t, apply(m, command{name: "up"}), "syntax error")
}

func TestRunRequiresDatabaseURL(t *testing.T) {
	err := run("", "migrations/credits", command{name: "up"})
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestMaskDatabaseURL(t *testing.T) {
	masked := maskDatabaseURL("postgres://kit:s3cret@db:5432/credits?sslmode=disable")
	assert.NotContains(t, masked, "s3cret")
	assert.Contains(t, masked, "db:5432/credits")
}
