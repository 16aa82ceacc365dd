package migrations

import (
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
)

func TestEmbeddedSourceListsAllMigrationsInOrder(t *testing.T) {
	src, err := iofs.New(files, "sql")
	if err != nil {
		t.Fatalf("open migration source: %v", err)
	}

	first, err := src.First()
	if err != nil {
		t.Fatalf("first version: %v", err)
	}
	if first != 1 {
		t.Fatalf("expected first migration version 1, got %d", first)
	}

	var versions []uint
	versions = append(versions, first)
	v := first
	for {
		next, err := src.Next(v)
		if err != nil {
			break
		}
		versions = append(versions, next)
		v = next
	}

	if len(versions) != 6 {
		t.Fatalf("expected 6 migrations, got %d: %v", len(versions), versions)
	}
}

func TestEmbeddedSourceHasMatchingUpAndDownForEachVersion(t *testing.T) {
	src, err := iofs.New(files, "sql")
	if err != nil {
		t.Fatalf("open migration source: %v", err)
	}

	v, err := src.First()
	if err != nil {
		t.Fatalf("first version: %v", err)
	}
	for {
		if _, _, err := src.ReadUp(v); err != nil {
			t.Fatalf("read up migration %d: %v", v, err)
		}
		if _, _, err := src.ReadDown(v); err != nil {
			t.Fatalf("read down migration %d: %v", v, err)
		}
		next, err := src.Next(v)
		if err != nil {
			break
		}
		v = next
	}
}
