package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithBusyTimeout(t *testing.T) {
	assert.Equal(t, "planner.db?_busy_timeout=5000", withBusyTimeout("planner.db"))
	assert.Equal(t, "file:planner.db?cache=shared&_busy_timeout=5000", withBusyTimeout("file:planner.db?cache=shared"))
	assert.Equal(t, "planner.db?_busy_timeout=100", withBusyTimeout("planner.db?_busy_timeout=100"))
}

func TestNewDBCreatesParentDir(t *testing.T) {
	db := openTestDB(t)
	assert.True(t, db.Migrator().HasTable("tasks"))
	assert.True(t, db.Migrator().HasTable("users"))
}
