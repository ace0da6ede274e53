package domain

import "time"

// Nutrition is a partial nutrition summary; every value is free-form text.
type Nutrition struct {
	Calories string `json:"calories,omitempty"`
	Protein  string `json:"protein,omitempty"`
	Fat      string `json:"fat,omitempty"`
	Carbs    string `json:"carbs,omitempty"`
}

// GenerationMeta records which provider and model produced a recipe.
type GenerationMeta struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	Language string `json:"language,omitempty"`
}

// Recipe is the recipe payload returned by the backend.
type Recipe struct {
	Title       string     `json:"title"`
	PrepTime    string     `json:"prep_time,omitempty"`
	CookTime    string     `json:"cook_time,omitempty"`
	Servings    string     `json:"servings,omitempty"`
	Difficulty  string     `json:"difficulty,omitempty"`
	Ingredients []string   `json:"ingredients,omitempty"`
	Steps       []string   `json:"steps,omitempty"`
	Nutrition   *Nutrition `json:"nutrition,omitempty"`
	Tips        string     `json:"tips,omitempty"`
}

// GenerationResult is the outcome of one successful generation.
type GenerationResult struct {
	Success bool            `json:"success"`
	Recipe  *Recipe         `json:"recipe,omitempty"`
	Meta    *GenerationMeta `json:"meta,omitempty"`
	Warning string          `json:"warning,omitempty"`

	// ImageURI is the generated or uploaded image the recipe was made from, when known.
	ImageURI string `json:"imageUri,omitempty"`
}

// ImageResult is the outcome of the image generation phase.
type ImageResult struct {
	ImageURL string          `json:"imageUrl"`
	Meta     *GenerationMeta `json:"meta,omitempty"`
}

// RecordID identifies a persisted recipe.
type RecordID string

// RecipeRecord is a recipe saved in the user's collection.
type RecipeRecord struct {
	ID             RecordID        `json:"id"`
	OwnerID        string          `json:"clerkId" validate:"required"`
	Title          string          `json:"title" validate:"required,max=255"`
	PrepTime       string          `json:"prepTime,omitempty"`
	CookTime       string          `json:"cookTime,omitempty"`
	Servings       string          `json:"servings,omitempty"`
	Ingredients    []string        `json:"ingredients" validate:"dive,required"`
	Steps          []string        `json:"steps" validate:"dive,required"`
	Nutrition      *Nutrition      `json:"nutrition,omitempty"`
	Tips           string          `json:"tips,omitempty"`
	GenerationMeta *GenerationMeta `json:"generationMeta,omitempty"`
	ImageURI       string          `json:"imageUri,omitempty"`
	Warning        string          `json:"warning,omitempty"`
	IsFavorite     bool            `json:"isFavorite"`
	Tags           []string        `json:"tags,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Clone returns a copy of r that shares no slices or pointers with it.
func (r RecipeRecord) Clone() RecipeRecord {
	cp := r
	cp.Ingredients = cloneStrings(r.Ingredients)
	cp.Steps = cloneStrings(r.Steps)
	cp.Tags = cloneStrings(r.Tags)
	if r.Nutrition != nil {
		n := *r.Nutrition
		cp.Nutrition = &n
	}
	if r.GenerationMeta != nil {
		m := *r.GenerationMeta
		cp.GenerationMeta = &m
	}
	return cp
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append(make([]string, 0, len(in)), in...)
}

// UserPreferences are the generation defaults a signed-in user keeps server side.
type UserPreferences struct {
	Provider string `json:"provider" validate:"required"`
	Model    string `json:"model" validate:"required"`
	Language string `json:"language" validate:"required"`
}

// User mirrors an identity-provider account in the document store.
type User struct {
	ExternalID  string           `json:"clerkId" validate:"required"`
	Email       string           `json:"email" validate:"required,email"`
	Name        string           `json:"name,omitempty"`
	ImageURL    string           `json:"imageUrl,omitempty"`
	Preferences *UserPreferences `json:"preferences,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}
