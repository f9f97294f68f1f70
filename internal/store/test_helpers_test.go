package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pierpaolospaziani/openjpa/internal/mapping"
)

const libraryCUE = `
entity: Author: {
	table: "AUTHOR"
	id: ["id"]
	fields: {
		id:   {column: "ID", type: "long"}
		name: {column: "NAME", size: 40, notNull: true}
	}
}

entity: Book: {
	table: "BOOK"
	id: ["id"]
	discriminator: {column: "KIND", value: "B"}
	fields: {
		id:     {column: "ID", type: "long"}
		title:  {column: "TITLE"}
		author: {relation: "Author"}
	}
}
`

// createTestStore creates a file-backed store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createLibrary loads the library mappings and creates their tables in s.
func createLibrary(t *testing.T, s *Store) *mapping.Repository {
	t.Helper()
	repo, err := mapping.LoadString(libraryCUE)
	if err != nil {
		t.Fatalf("LoadString() failed: %v", err)
	}
	if err := s.SyncSchema(context.Background(), repo); err != nil {
		t.Fatalf("SyncSchema() failed: %v", err)
	}
	return repo
}
