// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package algorithms

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/recommend"
)

func userCFInput() *recommend.Input {
	history := []recommend.Interaction{
		ix("u1", "a", 3, baseTime),
		ix("u1", "b", 3, baseTime),
		ix("u1", "c", 3, baseTime),
		ix("u1", "d", 3, baseTime),
		ix("u1", "e", 3, baseTime),
	}
	population := append([]recommend.Interaction{}, history...)
	population = append(population,
		// u2 shares three items and read x.
		ix("u2", "a", 3, baseTime),
		ix("u2", "b", 3, baseTime),
		ix("u2", "c", 3, baseTime),
		ix("u2", "x", 4, baseTime),
		// u4 shares one item and read y.
		ix("u4", "a", 3, baseTime),
		ix("u4", "y", 4, baseTime),
		// u3 shares nothing.
		ix("u3", "z", 5, baseTime),
	)
	return &recommend.Input{
		UserID:       "u1",
		History:      history,
		Interactions: population,
		Limit:        10,
		Now:          baseTime,
	}
}

func TestNewUserCF(t *testing.T) {
	u := NewUserCF(UserCFConfig{})
	if u.config != DefaultUserCFConfig() {
		t.Errorf("zero config should apply defaults, got %+v", u.config)
	}
	if u.Type() != models.AlgorithmUserCF {
		t.Errorf("Type() = %s", u.Type())
	}
}

func TestUserCF_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("recommends neighbors' items", func(t *testing.T) {
		cands, err := NewUserCF(UserCFConfig{}).Generate(ctx, userCFInput())
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if len(cands) != 2 || cands[0].ItemID != "x" || cands[1].ItemID != "y" {
			t.Fatalf("candidates = %v, want [x y]", idsOf(cands))
		}
		if cands[0].Score != 1 {
			t.Errorf("top score = %f, want 1", cands[0].Score)
		}
		if _, ok := scoreOf(cands, "z"); ok {
			t.Error("dissimilar reader's item should not be recommended")
		}
		if _, ok := scoreOf(cands, "a"); ok {
			t.Error("seen item recommended")
		}
	})

	t.Run("neighbors hyperparameter limits the neighborhood", func(t *testing.T) {
		in := userCFInput()
		in.Hyperparameters = map[string]float64{"neighbors": 1}
		cands, err := NewUserCF(UserCFConfig{}).Generate(ctx, in)
		if err != nil {
			t.Fatal(err)
		}
		if len(cands) != 1 || cands[0].ItemID != "x" {
			t.Errorf("candidates = %v, want [x]", idsOf(cands))
		}
	})

	t.Run("too little history", func(t *testing.T) {
		in := userCFInput()
		in.History = in.History[:4]
		_, err := NewUserCF(UserCFConfig{}).Generate(ctx, in)
		if !errors.Is(err, models.ErrInsufficientData) {
			t.Errorf("err = %v, want ErrInsufficientData", err)
		}
	})

	t.Run("no similar readers", func(t *testing.T) {
		in := userCFInput()
		in.Interactions = []recommend.Interaction{ix("u3", "z", 5, baseTime)}
		_, err := NewUserCF(UserCFConfig{}).Generate(ctx, in)
		if !errors.Is(err, models.ErrInsufficientData) {
			t.Errorf("err = %v, want ErrInsufficientData", err)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := NewUserCF(UserCFConfig{}).Generate(cctx, userCFInput()); !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})
}

func itemCFInteractions() []recommend.Interaction {
	return []recommend.Interaction{
		ix("u2", "a", 3, baseTime),
		ix("u2", "b", 3, baseTime),
		ix("u3", "a", 3, baseTime),
		ix("u3", "b", 3, baseTime),
		ix("u4", "a", 3, baseTime),
		ix("u4", "c", 3, baseTime),
		ix("u5", "d", 3, baseTime),
	}
}

func TestItemCF_Generate(t *testing.T) {
	ctx := context.Background()
	items := catalog(
		models.Item{ID: "a", Title: "Alpha"},
		models.Item{ID: "b", Title: "Beta"},
		models.Item{ID: "c", Title: "Gamma"},
	)

	t.Run("seed item", func(t *testing.T) {
		in := &recommend.Input{
			SeedItemID:   "a",
			Interactions: itemCFInteractions(),
			Items:        items,
			Limit:        10,
		}
		cands, err := NewItemCF(ItemCFConfig{}).Generate(ctx, in)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if len(cands) != 2 || cands[0].ItemID != "b" || cands[1].ItemID != "c" {
			t.Fatalf("candidates = %v, want [b c]", idsOf(cands))
		}
		if cands[0].Reason != "Readers of Alpha also read this" {
			t.Errorf("reason = %q", cands[0].Reason)
		}
	})

	t.Run("strong history items are sources", func(t *testing.T) {
		in := &recommend.Input{
			UserID:       "u1",
			History:      []recommend.Interaction{ix("u1", "a", 4, baseTime)},
			Interactions: itemCFInteractions(),
			Items:        items,
			Limit:        10,
		}
		cands, err := NewItemCF(ItemCFConfig{}).Generate(ctx, in)
		if err != nil {
			t.Fatal(err)
		}
		if len(cands) == 0 || cands[0].Reason != "Because you read Alpha" {
			t.Errorf("candidates = %+v", cands)
		}
	})

	t.Run("weak history is not a source", func(t *testing.T) {
		in := &recommend.Input{
			UserID:       "u1",
			History:      []recommend.Interaction{ix("u1", "a", 1, baseTime.Add(-time.Hour))},
			Interactions: itemCFInteractions(),
		}
		_, err := NewItemCF(ItemCFConfig{}).Generate(ctx, in)
		if !errors.Is(err, models.ErrInsufficientData) {
			t.Errorf("err = %v, want ErrInsufficientData", err)
		}
	})

	t.Run("no co-read items", func(t *testing.T) {
		in := &recommend.Input{SeedItemID: "d", Interactions: itemCFInteractions()}
		_, err := NewItemCF(ItemCFConfig{}).Generate(ctx, in)
		if !errors.Is(err, models.ErrInsufficientData) {
			t.Errorf("err = %v, want ErrInsufficientData", err)
		}
	})
}
