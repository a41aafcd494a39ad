package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	pq "github.com/lib/pq"

	"github.com/4Achar-SE4031/4Achar-Backend/pkg/types"
)

func sampleEvent(title string) *types.Event {
	return &types.Event{
		Title:        title,
		Description:  title,
		StartTime:    time.Date(2023, time.December, 10, 17, 0, 0, 0, time.UTC),
		City:         "تهران",
		Category:     "Concert",
		TicketPrices: []int{150000, 300000},
		SourceURL:    "https://www.honarticket.com/event/1",
	}
}

func TestMemoryStoreInsertAndExists(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	event := sampleEvent("کنسرت شب")

	found, err := store.Exists(ctx, event.Key())
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if found {
		t.Fatal("expected empty store")
	}

	if err := store.Insert(ctx, event); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if event.ID == 0 {
		t.Fatal("expected surrogate id to be assigned")
	}

	found, err = store.Exists(ctx, event.Key())
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !found {
		t.Fatal("expected event to be found after insert")
	}
}

func TestMemoryStoreDuplicateInsert(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Insert(ctx, sampleEvent("a")); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := store.Insert(ctx, sampleEvent("a"))
	if !errors.Is(err, ErrDuplicateEvent) {
		t.Fatalf("expected ErrDuplicateEvent, got %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 stored event, got %d", store.Len())
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pq.Error{Code: "23505"}) {
		t.Fatal("expected pq unique_violation to match")
	}
	if isUniqueViolation(&pq.Error{Code: "42P01"}) {
		t.Fatal("undefined_table must not match")
	}
	if !isUniqueViolation(errors.New(`pq: duplicate key value violates unique constraint "idx_events_title_start_city"`)) {
		t.Fatal("expected textual duplicate key error to match")
	}
}

func TestFileMediaStoreSave(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileMediaStore(dir, 0)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	got, err := store.Save("https://cdn.example.com/images/poster.jpg?v=2", "image/jpeg", []byte("payload"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Base(got) != "poster.jpg" {
		t.Fatalf("expected file named after the url, got %s", got)
	}
	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestFileMediaStoreOverwrites(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileMediaStore(dir, 0)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	first, err := store.Save("https://cdn.example.com/poster.jpg", "image/jpeg", []byte("old"))
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	second, err := store.Save("https://cdn.example.com/poster.jpg", "image/jpeg", []byte("new"))
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if first != second {
		t.Fatalf("expected same path, got %s and %s", first, second)
	}
	data, _ := os.ReadFile(second)
	if string(data) != "new" {
		t.Fatalf("expected overwrite, got %q", data)
	}
}

func TestFileMediaStoreSizeLimit(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileMediaStore(dir, 4)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	if _, err := store.Save("https://cdn.example.com/big.jpg", "image/jpeg", []byte("too large")); err == nil {
		t.Fatal("expected oversized payload to be rejected")
	}
	if _, err := store.Save("https://cdn.example.com/ok.jpg", "image/jpeg", []byte("ok")); err != nil {
		t.Fatalf("small payload rejected: %v", err)
	}
}

func TestFileMediaStoreHashFallback(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileMediaStore(dir, 0)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	got, err := store.Save("https://cdn.example.com/", "image/png", []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Ext(got) != ".png" {
		t.Fatalf("expected .png extension, got %s", got)
	}
}
