package recipes

import (
	"testing"
	"time"

	"github.com/dishcovery/dishcovery-client/internal/domain"
)

// TestListCacheGetSet tests basic cache get/set operations.
func TestListCacheGetSet(t *testing.T) {
	cache := NewListCache(time.Minute, nil)

	if _, found := cache.Get("user_1"); found {
		t.Fatalf("expected cache miss for new user")
	}

	cache.Set("user_1", cache.Generation("user_1"), []domain.RecipeRecord{{ID: "a", Title: "Pasta"}})

	cached, found := cache.Get("user_1")
	if !found {
		t.Fatalf("expected cache hit after set")
	}
	if len(cached) != 1 || cached[0].Title != "Pasta" {
		t.Errorf("unexpected cached list: %+v", cached)
	}

	// Returned slices are copies.
	cached[0].Title = "changed"
	again, _ := cache.Get("user_1")
	if again[0].Title != "Pasta" {
		t.Errorf("cache entry was mutated through a returned slice")
	}
}

// TestListCacheExpiration tests that entries expire lazily after the TTL.
func TestListCacheExpiration(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	cache := NewListCache(time.Minute, nil)
	cache.now = func() time.Time { return now }

	cache.Set("user_1", 0, []domain.RecipeRecord{{ID: "a"}})
	now = now.Add(59 * time.Second)
	if _, found := cache.Get("user_1"); !found {
		t.Fatalf("expected hit before TTL")
	}

	now = now.Add(2 * time.Second)
	if _, found := cache.Get("user_1"); found {
		t.Fatalf("expected miss after TTL")
	}

	hits, misses, size := cache.Stats()
	if hits != 1 || misses != 1 || size != 0 {
		t.Errorf("stats = %d hits, %d misses, %d entries", hits, misses, size)
	}
}

func TestListCacheInvalidate(t *testing.T) {
	cache := NewListCache(time.Minute, nil)
	cache.Set("user_1", 0, []domain.RecipeRecord{{ID: "a"}})
	cache.Set("user_2", 0, []domain.RecipeRecord{{ID: "b"}})

	cache.Invalidate("user_1")

	if _, found := cache.Get("user_1"); found {
		t.Errorf("expected user_1 to be invalidated")
	}
	if _, found := cache.Get("user_2"); !found {
		t.Errorf("expected user_2 to survive")
	}
}

func TestListCacheDisabled(t *testing.T) {
	cache := NewListCache(0, nil)
	cache.Set("user_1", 0, []domain.RecipeRecord{{ID: "a"}})
	if _, found := cache.Get("user_1"); found {
		t.Errorf("expected no caching with a zero TTL")
	}
}

func TestListCacheSetAfterInvalidateIsDropped(t *testing.T) {
	cache := NewListCache(time.Minute, nil)

	gen := cache.Generation("user_1")
	cache.Invalidate("user_1")
	if cache.Set("user_1", gen, []domain.RecipeRecord{{ID: "a"}}) {
		t.Errorf("expected a list loaded before Invalidate to be rejected")
	}
	if _, found := cache.Get("user_1"); found {
		t.Fatalf("expected no entry for a list loaded before Invalidate")
	}

	if !cache.Set("user_1", cache.Generation("user_1"), []domain.RecipeRecord{{ID: "a"}}) {
		t.Errorf("expected a fresh list to be cached")
	}
	if _, found := cache.Get("user_1"); !found {
		t.Errorf("expected hit after a fresh set")
	}
}

func TestListCacheReturnsDeepCopies(t *testing.T) {
	cache := NewListCache(time.Minute, nil)
	cache.Set("user_1", 0, []domain.RecipeRecord{{
		ID:             "a",
		Ingredients:    []string{"2 eggs"},
		Steps:          []string{"Whisk."},
		Tags:           []string{"breakfast"},
		Nutrition:      &domain.Nutrition{Calories: "150 kcal"},
		GenerationMeta: &domain.GenerationMeta{Provider: "gemini"},
	}})

	cached, _ := cache.Get("user_1")
	cached[0].Ingredients[0] = "changed"
	cached[0].Steps[0] = "changed"
	cached[0].Tags[0] = "changed"
	cached[0].Nutrition.Calories = "changed"
	cached[0].GenerationMeta.Provider = "changed"

	again, _ := cache.Get("user_1")
	got := again[0]
	if got.Ingredients[0] != "2 eggs" || got.Steps[0] != "Whisk." || got.Tags[0] != "breakfast" {
		t.Errorf("cached slices were mutated through a returned record: %+v", got)
	}
	if got.Nutrition.Calories != "150 kcal" || got.GenerationMeta.Provider != "gemini" {
		t.Errorf("cached pointers were mutated through a returned record: %+v", got)
	}
}
