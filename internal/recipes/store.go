// Package recipes persists generated recipes in the signed-in user's
// collection and mirrors identity-provider accounts.
package recipes

import (
	"context"
	"errors"

	"github.com/dishcovery/dishcovery-client/internal/domain"
)

// ErrNotFound is returned by a Store when a record or user does not exist.
var ErrNotFound = errors.New("recipes: not found")

// Store is the document store behind the Gateway.
type Store interface {
	InsertRecipe(ctx context.Context, rec domain.RecipeRecord) error
	FindRecipe(ctx context.Context, id domain.RecordID) (domain.RecipeRecord, error)
	// ListRecipes returns ownerID's records, newest first.
	ListRecipes(ctx context.Context, ownerID string) ([]domain.RecipeRecord, error)
	UpdateRecipe(ctx context.Context, rec domain.RecipeRecord) error
	DeleteRecipe(ctx context.Context, id domain.RecordID) error

	UpsertUser(ctx context.Context, user domain.User) (domain.User, error)
	FindUser(ctx context.Context, externalID string) (domain.User, error)
}
