package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/denowallet/portfolio"
)

var (
	_ portfolio.KV = (*SQLite)(nil)
	_ portfolio.KV = (*Memory)(nil)
)

func TestSQLite_GetSetDelete(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "wallet.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = %v, %v, want false, nil", ok, err)
	}

	if err := store.Set(ctx, "k", "v1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Set(ctx, "k", "v2"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	got, ok, err := store.Get(ctx, "k")
	if err != nil || !ok || got != "v2" {
		t.Errorf("Get(k) = %q, %v, %v, want v2, true, nil", got, ok, err)
	}
	if _, err := store.UpdatedAt(ctx, "k"); err != nil {
		t.Errorf("UpdatedAt(k) error = %v", err)
	}

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Errorf("Get(k) after Delete found a value")
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete() of a missing key error = %v", err)
	}
}

func TestSQLite_Book(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "wallet.db")
	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	ctx := context.Background()

	book, err := portfolio.LoadBook(ctx, store)
	if err != nil {
		t.Fatalf("LoadBook() error = %v", err)
	}
	book.AddPortfolio("Kraken", "K", "bg-indigo-500")
	if err := book.Save(ctx, store); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	store.Close()

	// reopen to check the book is durable.
	store, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer store.Close()
	book, err = portfolio.LoadBook(ctx, store)
	if err != nil {
		t.Fatalf("LoadBook() error = %v", err)
	}
	if len(book.Portfolios) != 4 {
		t.Errorf("len(Portfolios) = %d, want 4", len(book.Portfolios))
	}
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Set(ctx, "a", "1")
	if v, ok, _ := m.Get(ctx, "a"); !ok || v != "1" {
		t.Errorf("Get(a) = %q, %v, want 1, true", v, ok)
	}
	m.Delete(ctx, "a")
	if _, ok, _ := m.Get(ctx, "a"); ok {
		t.Errorf("Get(a) after Delete found a value")
	}
}
