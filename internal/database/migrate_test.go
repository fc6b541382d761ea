package database

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMigrator struct {
	mock.Mock
}

func (m *mockMigrator) Up() error {
	return m.Called().Error(0)
}

func (m *mockMigrator) Steps(n int) error {
	return m.Called(n).Error(0)
}

func (m *mockMigrator) Version() (uint, bool, error) {
	args := m.Called()
	return args.Get(0).(uint), args.Bool(1), args.Error(2)
}

func (m *mockMigrator) Close() (error, error) {
	args := m.Called()
	return args.Error(0), args.Error(1)
}

func TestMigrator_UpIgnoresNoChange(t *testing.T) {
	mm := new(mockMigrator)
	mm.On("Up").Return(migrate.ErrNoChange)

	require.NoError(t, (&Migrator{m: mm}).Up())
	mm.AssertExpectations(t)
}

func TestMigrator_UpWrapsFailure(t *testing.T) {
	mm := new(mockMigrator)
	mm.On("Up").Return(errors.New("syntax error"))

	err := (&Migrator{m: mm}).Up()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error")
}

func TestMigrator_DownStepsBackwards(t *testing.T) {
	mm := new(mockMigrator)
	mm.On("Steps", -2).Return(nil)

	require.NoError(t, (&Migrator{m: mm}).Down(2))
	mm.AssertExpectations(t)
}

func TestMigrator_DownRejectsNonPositive(t *testing.T) {
	mm := new(mockMigrator)
	require.Error(t, (&Migrator{m: mm}).Down(0))
	mm.AssertNotCalled(t, "Steps", mock.Anything)
}

func TestMigrator_VersionNilIsZero(t *testing.T) {
	mm := new(mockMigrator)
	mm.On("Version").Return(uint(0), false, migrate.ErrNilVersion)

	v, dirty, err := (&Migrator{m: mm}).Version()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "000001_create_users.up.sql")
	assert.Contains(t, names, "000001_create_users.down.sql")
}
