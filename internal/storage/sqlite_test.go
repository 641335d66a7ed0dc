package storage

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
)

func TestSQLiteStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSQLiteStore(filepath.Join(dir, "sub", "objects.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.Put(ctx, "docs/a.txt", []byte("hello world"), "text/plain"); err != nil {
		t.Fatal(err)
	}
	data, err := store.Get(ctx, "docs/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello world" {
		t.Errorf("got %q", data)
	}
	part, err := store.GetRange(ctx, "docs/a.txt", 6, 5)
	if err != nil {
		t.Fatal(err)
	}
	if string(part) != "world" {
		t.Errorf("range got %q", part)
	}
	info, err := store.Stat(ctx, "docs/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if info.Size != 11 || len(info.Fingerprint) != 64 || info.ModTime.IsZero() {
		t.Errorf("stat: %+v", info)
	}

	if err := store.Put(ctx, "docs/a.txt", []byte("changed"), "text/plain"); err != nil {
		t.Fatal(err)
	}
	info2, _ := store.Stat(ctx, "docs/a.txt")
	if info2.Fingerprint == info.Fingerprint {
		t.Error("fingerprint should change on overwrite")
	}
}

func TestSQLiteStore_List(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "objects.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()
	keys := []string{
		"docs/b.txt", "docs/a.txt", "docsx/c.txt", "indexes/latest/meta.jsonl",
		"docs/résumé/cv.txt", "docs/résumés.txt", "docs/rè.txt",
	}
	for _, k := range keys {
		if err := store.Put(ctx, k, []byte(k), ""); err != nil {
			t.Fatal(err)
		}
	}
	cases := []struct {
		prefix string
		want   []string
	}{
		{"docs/", []string{"docs/a.txt", "docs/b.txt", "docs/rè.txt", "docs/résumé/cv.txt", "docs/résumés.txt"}},
		{"docs/résumé/", []string{"docs/résumé/cv.txt"}},
		{"docs/résumé", []string{"docs/résumé/cv.txt", "docs/résumés.txt"}},
		{"indexes/", []string{"indexes/latest/meta.jsonl"}},
		{"nope/", nil},
	}
	for _, c := range cases {
		objs, err := store.List(ctx, c.prefix)
		if err != nil {
			t.Fatal(err)
		}
		var got []string
		for _, o := range objs {
			got = append(got, o.Key)
		}
		if !slices.Equal(got, c.want) {
			t.Errorf("List(%q) = %v, want %v", c.prefix, got, c.want)
		}
	}
	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(keys) {
		t.Errorf("List(\"\") returned %d objects, want %d", len(all), len(keys))
	}
	if _, err := store.Get(ctx, "docs/missing.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Stat(ctx, "docs/missing.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound from Stat, got %v", err)
	}
}

func TestPrefixEnd(t *testing.T) {
	if end, ok := prefixEnd("docs/"); !ok || end != "docs0" {
		t.Errorf("prefixEnd(docs/) = %q, %v", end, ok)
	}
	if end, ok := prefixEnd("a\xff"); !ok || end != "b" {
		t.Errorf("prefixEnd(a\\xff) = %q, %v", end, ok)
	}
	if _, ok := prefixEnd(""); ok {
		t.Error("empty prefix has no upper bound")
	}
}
