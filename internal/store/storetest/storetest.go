// Package storetest opens throwaway in-memory stores for tests in other
// packages.
package storetest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/store"
)

// Open returns a migrated in-memory SQLite store private to t.
func Open(t testing.TB) *store.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	s, err := store.Open(context.Background(), store.Options{Driver: store.DriverSQLite, DSN: dsn})
	require.NoError(t, err, "open test store")
	t.Cleanup(func() { s.Close() })
	return s
}

// Topic creates the subject (if missing) and a topic under it.
func Topic(t testing.TB, s *store.Store, subject, title string) *content.Topic {
	t.Helper()
	ctx := context.Background()
	sub, err := s.Subjects().GetByName(ctx, subject)
	if err != nil {
		sub = &content.Subject{Name: subject}
		require.NoError(t, s.Subjects().Create(ctx, sub))
	}
	topic := &content.Topic{
		SubjectID:          sub.ID,
		Title:              title,
		DifficultyLevel:    3,
		LearningObjectives: []string{"Describe " + strings.ToLower(title)},
	}
	require.NoError(t, s.Topics().Create(ctx, topic))
	return topic
}
