package resolver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"synctl/internal/gateway"
	"synctl/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "synctl-resolver-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	s, err := store.Open(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type fakeSheet struct {
	openID string
	err    error
	calls  int
}

func (f *fakeSheet) ResolveContact(ctx context.Context, email string) (string, error) {
	f.calls++
	return f.openID, f.err
}

func TestResolveCachesAfterFirstLookup(t *testing.T) {
	s := setupTestStore(t)
	sheet := &fakeSheet{openID: "ou_123"}
	r := New(s, sheet)

	forgeUsername, openID, err := r.Resolve(context.Background(), "a@co")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if openID != "ou_123" {
		t.Errorf("openID = %q, want ou_123", openID)
	}
	if forgeUsername != "" {
		t.Errorf("forgeUsername = %q, want empty", forgeUsername)
	}

	if _, _, err := r.Resolve(context.Background(), "a@co"); err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
	if sheet.calls != 1 {
		t.Errorf("sheet.ResolveContact called %d times, want 1 (second call should hit cache)", sheet.calls)
	}
}

func TestResolveTreatsNotFoundAsNonFatal(t *testing.T) {
	s := setupTestStore(t)
	sheet := &fakeSheet{err: gateway.ErrNotFound}
	r := New(s, sheet)

	_, openID, err := r.Resolve(context.Background(), "nobody@co")
	if err != nil {
		t.Fatalf("Resolve() error = %v, want nil for a non-fatal not-found", err)
	}
	if openID != "" {
		t.Errorf("openID = %q, want empty", openID)
	}
}

func TestResolveFromMappingBackfillsOnlyWhenUnset(t *testing.T) {
	s := setupTestStore(t)
	r := New(s, nil)

	if err := r.ResolveFromMapping("b@co", "octocat"); err != nil {
		t.Fatalf("ResolveFromMapping() error = %v", err)
	}
	m, err := s.FindMemberByEmail("b@co")
	if err != nil {
		t.Fatalf("FindMemberByEmail() error = %v", err)
	}
	if m.ForgeUsername != "octocat" {
		t.Errorf("ForgeUsername = %q, want octocat", m.ForgeUsername)
	}

	if err := r.ResolveFromMapping("b@co", "someoneelse"); err != nil {
		t.Fatalf("second ResolveFromMapping() error = %v", err)
	}
	m, err = s.FindMemberByEmail("b@co")
	if err != nil {
		t.Fatalf("FindMemberByEmail() error = %v", err)
	}
	if m.ForgeUsername != "octocat" {
		t.Errorf("ForgeUsername = %q, want octocat preserved (already set)", m.ForgeUsername)
	}
}
