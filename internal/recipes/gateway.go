package recipes

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dishcovery/dishcovery-client/internal/domain"
)

// Defaults applied to saved records with missing metadata.
const (
	DefaultTitle    = "Generated recipe"
	DefaultProvider = "unknown"
	DefaultLanguage = "en"
)

// User-facing messages.
const (
	MsgSignInRequired = "Sign in to save recipes to your collection."
	MsgNotOwner       = "This recipe belongs to another account."
	MsgRecipeNotFound = "Recipe not found."
	MsgUserNotFound   = "Account not found. Sign in again to sync it."
	MsgNoRecipe       = "There is no generated recipe to save."
	MsgInvalidRecord  = "The recipe could not be saved because it is incomplete."
	MsgInvalidUser    = "The account details are incomplete."
	MsgStorageFailed  = "Your recipe collection is unavailable right now."
)

type userKey struct{}

// ContextWithUser returns a copy of ctx carrying the authenticated user id.
func ContextWithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, strings.TrimSpace(userID))
}

// UserFromContext returns the authenticated user id in ctx, or "".
func UserFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

// Recorder receives recipe operation metrics. *metrics.Collector implements it.
type Recorder interface {
	ObserveRecipeOp(op, outcome string)
}

// Gateway is the user's saved-recipe collection.
//
// Mutations require an authenticated user and fail with unauthorized when the
// target record belongs to someone else. Every error is a *domain.APIError.
type Gateway struct {
	store    Store
	cache    *ListCache
	validate *validator.Validate
	metrics  Recorder
	logger   *slog.Logger
	now      func() time.Time
	cacheTTL time.Duration
}

// Option is a functional option for configuring Gateway.
type Option func(*Gateway)

// WithCacheTTL sets how long list results are cached per user.
func WithCacheTTL(ttl time.Duration) Option {
	return func(g *Gateway) {
		g.cacheTTL = ttl
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m Recorder) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// NewGateway creates a Gateway over store.
func NewGateway(store Store, opts ...Option) *Gateway {
	g := &Gateway{
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		metrics:  nopRecorder{},
		logger:   slog.Default(),
		now:      time.Now,
		cacheTTL: DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.cache = NewListCache(g.cacheTTL, g.logger)
	g.cache.now = g.now
	return g
}

// Save stores result in the collection of the user in ctx.
func (g *Gateway) Save(ctx context.Context, result domain.GenerationResult) (domain.RecordID, error) {
	return g.SaveFor(ctx, UserFromContext(ctx), result)
}

// SaveFor stores result in userID's collection and returns the new record id.
func (g *Gateway) SaveFor(ctx context.Context, userID string, result domain.GenerationResult) (domain.RecordID, error) {
	if userID == "" {
		return "", g.done("save", domain.NewAPIError(domain.CodeUnauthorized, MsgSignInRequired, ""))
	}
	if !result.Success || result.Recipe == nil {
		return "", g.done("save", domain.NewAPIError(domain.CodeNoRecipe, MsgNoRecipe, ""))
	}

	rec := g.recordFrom(userID, result)
	if err := g.validate.Struct(rec); err != nil {
		return "", g.done("save", domain.WrapAPIError(domain.CodeInvalidRecord, MsgInvalidRecord, firstFieldError(err), err))
	}
	if err := g.store.InsertRecipe(ctx, rec); err != nil {
		return "", g.done("save", storageError(err))
	}
	g.cache.Invalidate(userID)

	g.logger.Info("recipe saved", "id", rec.ID, "user", userID, "title", rec.Title)
	return rec.ID, g.done("save", nil)
}

// List returns userID's records, newest first.
func (g *Gateway) List(ctx context.Context, userID string) ([]domain.RecipeRecord, error) {
	if userID == "" {
		return nil, g.done("list", domain.NewAPIError(domain.CodeUnauthorized, MsgSignInRequired, ""))
	}
	if cached, ok := g.cache.Get(userID); ok {
		g.metrics.ObserveRecipeOp("list", "cache_hit")
		return cached, nil
	}

	gen := g.cache.Generation(userID)
	records, err := g.store.ListRecipes(ctx, userID)
	if err != nil {
		return nil, g.done("list", storageError(err))
	}
	g.cache.Set(userID, gen, records)
	return records, g.done("list", nil)
}

// Get returns one of userID's records.
func (g *Gateway) Get(ctx context.Context, id domain.RecordID, userID string) (domain.RecipeRecord, error) {
	rec, err := g.owned(ctx, id, userID)
	return rec, g.done("get", err)
}

// Delete removes one of userID's records.
func (g *Gateway) Delete(ctx context.Context, id domain.RecordID, userID string) error {
	if _, err := g.owned(ctx, id, userID); err != nil {
		return g.done("delete", err)
	}
	if err := g.store.DeleteRecipe(ctx, id); err != nil {
		return g.done("delete", storageError(err))
	}
	g.cache.Invalidate(userID)
	g.logger.Info("recipe deleted", "id", id, "user", userID)
	return g.done("delete", nil)
}

// ToggleFavorite flips the favorite flag of one of userID's records and
// returns the updated record.
func (g *Gateway) ToggleFavorite(ctx context.Context, id domain.RecordID, userID string) (domain.RecipeRecord, error) {
	rec, err := g.owned(ctx, id, userID)
	if err != nil {
		return domain.RecipeRecord{}, g.done("favorite", err)
	}
	rec.IsFavorite = !rec.IsFavorite
	rec.UpdatedAt = g.now().UTC()
	if err := g.store.UpdateRecipe(ctx, rec); err != nil {
		return domain.RecipeRecord{}, g.done("favorite", storageError(err))
	}
	g.cache.Invalidate(userID)
	return rec, g.done("favorite", nil)
}

// SyncUser creates or refreshes the account mirrored from the identity provider.
func (g *Gateway) SyncUser(ctx context.Context, user domain.User) (domain.User, error) {
	user.ExternalID = strings.TrimSpace(user.ExternalID)
	user.Email = strings.TrimSpace(user.Email)
	if user.ExternalID == "" {
		return domain.User{}, g.done("sync_user", domain.NewAPIError(domain.CodeUnauthorized, MsgSignInRequired, ""))
	}
	if err := g.validate.Struct(user); err != nil {
		return domain.User{}, g.done("sync_user", domain.WrapAPIError(domain.CodeInvalidRecord, MsgInvalidUser, firstFieldError(err), err))
	}

	now := g.now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	saved, err := g.store.UpsertUser(ctx, user)
	if err != nil {
		return domain.User{}, g.done("sync_user", storageError(err))
	}
	return saved, g.done("sync_user", nil)
}

// UpdatePreferences replaces userID's generation defaults.
func (g *Gateway) UpdatePreferences(ctx context.Context, userID string, prefs domain.UserPreferences) (domain.User, error) {
	if userID == "" {
		return domain.User{}, g.done("preferences", domain.NewAPIError(domain.CodeUnauthorized, MsgSignInRequired, ""))
	}
	if d, ok := domain.LookupProvider(prefs.Provider); ok {
		prefs.Provider = string(d.ID)
	} else {
		return domain.User{}, g.done("preferences",
			domain.NewAPIError(domain.CodeInvalidRecord, MsgInvalidUser, domain.MsgUnknownProvider))
	}
	if err := g.validate.Struct(prefs); err != nil {
		return domain.User{}, g.done("preferences", domain.WrapAPIError(domain.CodeInvalidRecord, MsgInvalidUser, firstFieldError(err), err))
	}

	user, err := g.store.FindUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return domain.User{}, g.done("preferences", domain.NewAPIError(domain.CodeNotFound, MsgUserNotFound, ""))
		}
		return domain.User{}, g.done("preferences", storageError(err))
	}
	user.Preferences = &prefs
	user.UpdatedAt = g.now().UTC()
	saved, err := g.store.UpsertUser(ctx, user)
	if err != nil {
		return domain.User{}, g.done("preferences", storageError(err))
	}
	return saved, g.done("preferences", nil)
}

// owned loads id and checks that userID owns it.
func (g *Gateway) owned(ctx context.Context, id domain.RecordID, userID string) (domain.RecipeRecord, error) {
	if userID == "" {
		return domain.RecipeRecord{}, domain.NewAPIError(domain.CodeUnauthorized, MsgSignInRequired, "")
	}
	rec, err := g.store.FindRecipe(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return domain.RecipeRecord{}, domain.NewAPIError(domain.CodeNotFound, MsgRecipeNotFound, "")
		}
		return domain.RecipeRecord{}, storageError(err)
	}
	if rec.OwnerID != userID {
		g.logger.Warn("recipe ownership mismatch", "id", id, "user", userID)
		return domain.RecipeRecord{}, domain.NewAPIError(domain.CodeUnauthorized, MsgNotOwner, "")
	}
	return rec, nil
}

// recordFrom maps a generation result to a new record, filling defaults.
func (g *Gateway) recordFrom(userID string, result domain.GenerationResult) domain.RecipeRecord {
	r := result.Recipe
	now := g.now().UTC()

	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = DefaultTitle
	}
	meta := domain.GenerationMeta{Provider: DefaultProvider, Language: DefaultLanguage}
	if result.Meta != nil {
		meta.Model = result.Meta.Model
		if p := strings.TrimSpace(result.Meta.Provider); p != "" {
			meta.Provider = p
		}
		if l := strings.TrimSpace(result.Meta.Language); l != "" {
			meta.Language = l
		}
	}

	return domain.RecipeRecord{
		ID:             domain.RecordID(uuid.Must(uuid.NewV7()).String()),
		OwnerID:        userID,
		Title:          title,
		PrepTime:       r.PrepTime,
		CookTime:       r.CookTime,
		Servings:       r.Servings,
		Ingredients:    compact(r.Ingredients),
		Steps:          compact(r.Steps),
		Nutrition:      r.Nutrition,
		Tips:           r.Tips,
		GenerationMeta: &meta,
		ImageURI:       result.ImageURI,
		Warning:        result.Warning,
		Tags:           []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// done records the outcome of op and returns err unchanged.
func (g *Gateway) done(op string, err error) error {
	if err == nil {
		g.metrics.ObserveRecipeOp(op, "ok")
		return nil
	}
	apiErr := domain.AsAPIError(err)
	g.metrics.ObserveRecipeOp(op, apiErr.Code)
	return apiErr
}

func storageError(err error) *domain.APIError {
	return domain.WrapAPIError(domain.CodeStorageError, MsgStorageFailed, "", err)
}

// firstFieldError names the first failing field of a validator error.
func firstFieldError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Field() + " is " + verrs[0].Tag()
	}
	return ""
}

// compact drops blank entries and trims the rest.
func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type nopRecorder struct{}

func (nopRecorder) ObserveRecipeOp(string, string) {}
