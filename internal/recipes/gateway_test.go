package recipes_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dishcovery/dishcovery-client/internal/domain"
	"github.com/dishcovery/dishcovery-client/internal/recipes"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type opRecorder struct {
	mu  sync.Mutex
	ops map[string]int
}

func (r *opRecorder) ObserveRecipeOp(op, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ops == nil {
		r.ops = map[string]int{}
	}
	r.ops[op+"/"+outcome]++
}

func (r *opRecorder) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ops[key]
}

func newGateway(t *testing.T, opts ...recipes.Option) (*recipes.Gateway, *recipes.GormStore) {
	t.Helper()
	store, err := recipes.OpenSQLite("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clock := &fakeClock{now: time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)}
	opts = append([]recipes.Option{recipes.WithClock(clock.Now)}, opts...)
	return recipes.NewGateway(store, opts...), store
}

func generated(title string) domain.GenerationResult {
	return domain.GenerationResult{
		Success: true,
		Recipe: &domain.Recipe{
			Title:       title,
			PrepTime:    "10 min",
			Ingredients: []string{"200g spaghetti", " ", "2 tomatoes"},
			Steps:       []string{"Boil the pasta.", "Add the sauce."},
			Nutrition:   &domain.Nutrition{Calories: "520 kcal"},
		},
		Meta:     &domain.GenerationMeta{Provider: "gemini", Model: "gemini-2.5-flash", Language: "it"},
		ImageURI: "file:///photos/dinner.jpg",
	}
}

func TestGateway_SaveAndList(t *testing.T) {
	gw, _ := newGateway(t)
	ctx := recipes.ContextWithUser(context.Background(), "user_1")

	first, err := gw.Save(ctx, generated("Pasta"))
	require.NoError(t, err)
	second, err := gw.Save(ctx, generated("Risotto"))
	require.NoError(t, err)
	_, err = gw.SaveFor(context.Background(), "user_2", generated("Tacos"))
	require.NoError(t, err)

	list, err := gw.List(ctx, "user_1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second, list[0].ID, "newest first")
	assert.Equal(t, first, list[1].ID)

	rec := list[1]
	assert.Equal(t, "Pasta", rec.Title)
	assert.Equal(t, "user_1", rec.OwnerID)
	assert.Equal(t, []string{"200g spaghetti", "2 tomatoes"}, rec.Ingredients)
	assert.Equal(t, "520 kcal", rec.Nutrition.Calories)
	assert.Equal(t, "it", rec.GenerationMeta.Language)
	assert.Equal(t, "file:///photos/dinner.jpg", rec.ImageURI)
	assert.False(t, rec.IsFavorite)
}

func TestGateway_SaveDefaults(t *testing.T) {
	gw, _ := newGateway(t)

	id, err := gw.SaveFor(context.Background(), "user_1", domain.GenerationResult{
		Success: true,
		Recipe:  &domain.Recipe{Title: "  "},
	})
	require.NoError(t, err)

	rec, err := gw.Get(context.Background(), id, "user_1")
	require.NoError(t, err)
	assert.Equal(t, recipes.DefaultTitle, rec.Title)
	assert.Equal(t, recipes.DefaultProvider, rec.GenerationMeta.Provider)
	assert.Equal(t, recipes.DefaultLanguage, rec.GenerationMeta.Language)
}

func TestGateway_RequiresAuthentication(t *testing.T) {
	gw, _ := newGateway(t)
	ctx := context.Background()

	_, err := gw.Save(ctx, generated("Pasta"))
	assert.True(t, domain.IsCode(err, domain.CodeUnauthorized))

	_, err = gw.List(ctx, "")
	assert.True(t, domain.IsCode(err, domain.CodeUnauthorized))

	err = gw.Delete(ctx, "anything", "")
	assert.True(t, domain.IsCode(err, domain.CodeUnauthorized))

	_, err = gw.ToggleFavorite(ctx, "anything", "")
	assert.True(t, domain.IsCode(err, domain.CodeUnauthorized))
}

func TestGateway_SaveRequiresRecipe(t *testing.T) {
	gw, _ := newGateway(t)

	_, err := gw.SaveFor(context.Background(), "user_1", domain.GenerationResult{Success: false})
	assert.True(t, domain.IsCode(err, domain.CodeNoRecipe))
}

func TestGateway_OwnershipIsEnforced(t *testing.T) {
	gw, store := newGateway(t)
	ctx := context.Background()

	id, err := gw.SaveFor(ctx, "owner", generated("Pasta"))
	require.NoError(t, err)

	err = gw.Delete(ctx, id, "intruder")
	assert.True(t, domain.IsCode(err, domain.CodeUnauthorized))

	_, err = gw.ToggleFavorite(ctx, id, "intruder")
	assert.True(t, domain.IsCode(err, domain.CodeUnauthorized))

	_, err = gw.Get(ctx, id, "intruder")
	assert.True(t, domain.IsCode(err, domain.CodeUnauthorized))

	rec, err := store.FindRecipe(ctx, id)
	require.NoError(t, err)
	assert.False(t, rec.IsFavorite, "rejected toggle must not write")
}

func TestGateway_ToggleFavoriteAndDelete(t *testing.T) {
	gw, _ := newGateway(t)
	ctx := context.Background()

	id, err := gw.SaveFor(ctx, "user_1", generated("Pasta"))
	require.NoError(t, err)

	rec, err := gw.ToggleFavorite(ctx, id, "user_1")
	require.NoError(t, err)
	assert.True(t, rec.IsFavorite)

	rec, err = gw.ToggleFavorite(ctx, id, "user_1")
	require.NoError(t, err)
	assert.False(t, rec.IsFavorite)

	require.NoError(t, gw.Delete(ctx, id, "user_1"))

	err = gw.Delete(ctx, id, "user_1")
	assert.True(t, domain.IsCode(err, domain.CodeNotFound))
}

func TestGateway_ListCacheInvalidatedByMutations(t *testing.T) {
	rec := &opRecorder{}
	gw, _ := newGateway(t, recipes.WithMetrics(rec))
	ctx := context.Background()

	_, err := gw.SaveFor(ctx, "user_1", generated("Pasta"))
	require.NoError(t, err)

	list, err := gw.List(ctx, "user_1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = gw.List(ctx, "user_1")
	require.NoError(t, err)

	_, err = gw.ToggleFavorite(ctx, list[0].ID, "user_1")
	require.NoError(t, err)

	list, err = gw.List(ctx, "user_1")
	require.NoError(t, err)
	assert.True(t, list[0].IsFavorite, "list after a mutation must not be stale")

	assert.Equal(t, 1, rec.count("list/cache_hit"))
	assert.Equal(t, 2, rec.count("list/ok"))
	assert.Equal(t, 1, rec.count("favorite/ok"))
}

// gatedStore holds the first ListRecipes call after it has read the rows.
type gatedStore struct {
	recipes.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStore) ListRecipes(ctx context.Context, ownerID string) ([]domain.RecipeRecord, error) {
	records, err := s.Store.ListRecipes(ctx, ownerID)
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return records, err
}

func TestGateway_ListDuringSaveIsNotCached(t *testing.T) {
	_, db := newGateway(t)
	gated := &gatedStore{Store: db, entered: make(chan struct{}), release: make(chan struct{})}
	gw := recipes.NewGateway(gated)
	ctx := context.Background()

	_, err := gw.SaveFor(ctx, "user_1", generated("Pasta"))
	require.NoError(t, err)

	listed := make(chan []domain.RecipeRecord, 1)
	go func() {
		list, err := gw.List(ctx, "user_1")
		assert.NoError(t, err)
		listed <- list
	}()
	select {
	case <-gated.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("list never reached the store")
	}

	_, err = gw.SaveFor(ctx, "user_1", generated("Risotto"))
	require.NoError(t, err)
	close(gated.release)
	assert.Len(t, <-listed, 1)

	list, err := gw.List(ctx, "user_1")
	require.NoError(t, err)
	assert.Len(t, list, 2, "a list read before the save must not be served from the cache")
}

func TestGateway_SyncUserAndPreferences(t *testing.T) {
	gw, _ := newGateway(t)
	ctx := context.Background()

	_, err := gw.UpdatePreferences(ctx, "user_1", domain.UserPreferences{Provider: "gemini", Model: "gemini-2.5-flash", Language: "en"})
	assert.True(t, domain.IsCode(err, domain.CodeNotFound))

	user, err := gw.SyncUser(ctx, domain.User{ExternalID: "user_1", Email: "cook@example.com", Name: "Cook"})
	require.NoError(t, err)
	assert.Equal(t, "Cook", user.Name)
	assert.Nil(t, user.Preferences)

	user, err = gw.UpdatePreferences(ctx, "user_1", domain.UserPreferences{Provider: "OpenAI", Model: "gpt-4o", Language: "fr"})
	require.NoError(t, err)
	require.NotNil(t, user.Preferences)
	assert.Equal(t, "openai", user.Preferences.Provider)

	user, err = gw.SyncUser(ctx, domain.User{ExternalID: "user_1", Email: "cook@example.com", Name: "Head Cook"})
	require.NoError(t, err)
	assert.Equal(t, "Head Cook", user.Name)
	require.NotNil(t, user.Preferences, "sync without preferences keeps them")
	assert.Equal(t, "fr", user.Preferences.Language)

	_, err = gw.UpdatePreferences(ctx, "user_1", domain.UserPreferences{Provider: "mistral", Model: "x", Language: "en"})
	assert.True(t, domain.IsCode(err, domain.CodeInvalidRecord))
}

func TestGateway_SyncUserValidatesEmail(t *testing.T) {
	gw, _ := newGateway(t)

	_, err := gw.SyncUser(context.Background(), domain.User{ExternalID: "user_1", Email: "not-an-email"})
	apiErr := domain.AsAPIError(err)
	assert.Equal(t, domain.CodeInvalidRecord, apiErr.Code)
	assert.Contains(t, apiErr.Hint, "Email")
}
