package storage

import (
	"context"
	"errors"
	"testing"
)

func TestCreatePresetValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cases := [][3]string{
		{"", "llama3", "be brief"},
		{"pirate", "", "be brief"},
		{"pirate", "llama3", ""},
	}
	for _, c := range cases {
		if _, err := s.CreatePreset(ctx, c[0], c[1], c[2]); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation for %v, got %v", c, err)
		}
	}
}

func TestCreatePresetNameConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreatePreset(ctx, "pirate", "llama3", "talk like a pirate"); err != nil {
		t.Fatalf("create preset: %v", err)
	}
	if _, err := s.CreatePreset(ctx, "pirate", "mistral", "other"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestUpdatePreset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, _ := s.CreatePreset(ctx, "a", "llama3", "p1")
	_, _ = s.CreatePreset(ctx, "b", "llama3", "p2")

	if err := s.UpdatePreset(ctx, a, "a2", "mistral", "p3"); err != nil {
		t.Fatalf("update preset: %v", err)
	}
	got, found, err := s.ResolvePreset(ctx, "a2")
	if err != nil || !found {
		t.Fatalf("resolve updated preset: found=%v err=%v", found, err)
	}
	if got.BaseModel != "mistral" || got.SystemPrompt != "p3" {
		t.Fatalf("unexpected preset after update: %+v", got)
	}

	if err := s.UpdatePreset(ctx, a, "b", "llama3", "p4"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on name collision, got %v", err)
	}
	if err := s.UpdatePreset(ctx, 999, "c", "llama3", "p5"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeletePreset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.CreatePreset(ctx, "pirate", "llama3", "arr")
	if err := s.DeletePreset(ctx, id); err != nil {
		t.Fatalf("delete preset: %v", err)
	}
	if err := s.DeletePreset(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListPresetsSortedByName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _ = s.CreatePreset(ctx, "zulu", "llama3", "z")
	_, _ = s.CreatePreset(ctx, "alpha", "llama3", "a")
	_, _ = s.CreatePreset(ctx, "mike", "llama3", "m")

	presets, err := s.ListPresets(ctx)
	if err != nil {
		t.Fatalf("list presets: %v", err)
	}
	if len(presets) != 3 {
		t.Fatalf("expected 3 presets, got %d", len(presets))
	}
	if presets[0].Name != "alpha" || presets[1].Name != "mike" || presets[2].Name != "zulu" {
		t.Fatalf("unexpected order: %s %s %s", presets[0].Name, presets[1].Name, presets[2].Name)
	}
}

func TestResolvePresetMissIsNotError(t *testing.T) {
	s := newTestStore(t)

	_, found, err := s.ResolvePreset(context.Background(), "llama3:latest")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if found {
		t.Fatal("expected miss for unknown name")
	}
}
