package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"smart-planner/internal/llm"
	"smart-planner/internal/repository"
)

// scriptedCompleter answers prompts through reply and records every call.
type scriptedCompleter struct {
	mu      sync.Mutex
	prompts []string
	reply   func(prompt string) (string, error)
}

func (c *scriptedCompleter) Complete(_ context.Context, prompt string) (string, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	c.mu.Unlock()
	return c.reply(prompt)
}

func (c *scriptedCompleter) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prompts)
}

func replyWith(text string) *scriptedCompleter {
	return &scriptedCompleter{reply: func(string) (string, error) { return text, nil }}
}

func failing() *scriptedCompleter {
	return &scriptedCompleter{reply: func(string) (string, error) {
		return "", errors.Join(llm.ErrTransport, errors.New("connection refused"))
	}}
}

// byPrompt routes category and priority prompts to separate answers.
func byPrompt(category, priority string) *scriptedCompleter {
	return &scriptedCompleter{reply: func(prompt string) (string, error) {
		if strings.Contains(prompt, "categories") {
			return category, nil
		}
		return priority, nil
	}}
}

func newTestRepos(t *testing.T) (*repository.TaskRepository, *repository.CategoryRepository) {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "planner.db"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return repository.NewTaskRepository(db), repository.NewCategoryRepository(db)
}
