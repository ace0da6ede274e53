package recipes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/dishcovery/dishcovery-client/internal/domain"
)

// RecipeModel is the recipes table.
type RecipeModel struct {
	ID             string                 `gorm:"type:char(36);primaryKey"`
	ClerkID        string                 `gorm:"type:varchar(255);not null;index:idx_recipes_owner_created,priority:1"`
	Title          string                 `gorm:"type:varchar(255);not null"`
	PrepTime       string                 `gorm:"type:varchar(64)"`
	CookTime       string                 `gorm:"type:varchar(64)"`
	Servings       string                 `gorm:"type:varchar(64)"`
	Ingredients    []string               `gorm:"serializer:json"`
	Steps          []string               `gorm:"serializer:json"`
	Nutrition      *domain.Nutrition      `gorm:"serializer:json"`
	Tips           string                 `gorm:"type:text"`
	GenerationMeta *domain.GenerationMeta `gorm:"serializer:json"`
	ImageURI       string                 `gorm:"type:text"`
	Warning        string                 `gorm:"type:text"`
	IsFavorite     bool                   `gorm:"default:false"`
	Tags           []string               `gorm:"serializer:json"`
	CreatedAt      time.Time              `gorm:"index:idx_recipes_owner_created,priority:2"`
	UpdatedAt      time.Time
}

// TableName overrides the table name.
func (RecipeModel) TableName() string { return "recipes" }

// UserModel is the users table, keyed by the identity provider's account id.
type UserModel struct {
	ClerkID     string                  `gorm:"type:varchar(255);primaryKey"`
	Email       string                  `gorm:"type:varchar(255);not null"`
	Name        string                  `gorm:"type:varchar(255)"`
	ImageURL    string                  `gorm:"type:text"`
	Preferences *domain.UserPreferences `gorm:"serializer:json"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName overrides the table name.
func (UserModel) TableName() string { return "users" }

// GormStore implements Store on gorm.
type GormStore struct {
	db *gorm.DB
}

// OpenSQLite opens (and migrates) a sqlite database at path. An empty path
// opens a private in-memory database.
func OpenSQLite(path string) (*GormStore, error) {
	inMemory := path == ""
	if inMemory {
		path = "file::memory:"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open recipe database: %w", err)
	}
	if inMemory {
		// Every connection to :memory: is a separate database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("open recipe database: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return NewGormStore(db)
}

// NewGormStore migrates db and wraps it.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&UserModel{}, &RecipeModel{}); err != nil {
		return nil, fmt.Errorf("migrate recipe database: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) InsertRecipe(ctx context.Context, rec domain.RecipeRecord) error {
	return s.db.WithContext(ctx).Create(recipeToModel(rec)).Error
}

func (s *GormStore) FindRecipe(ctx context.Context, id domain.RecordID) (domain.RecipeRecord, error) {
	var model RecipeModel
	err := s.db.WithContext(ctx).First(&model, "id = ?", string(id)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RecipeRecord{}, ErrNotFound
		}
		return domain.RecipeRecord{}, err
	}
	return modelToRecipe(model), nil
}

func (s *GormStore) ListRecipes(ctx context.Context, ownerID string) ([]domain.RecipeRecord, error) {
	var models []RecipeModel
	err := s.db.WithContext(ctx).
		Where("clerk_id = ?", ownerID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.RecipeRecord, len(models))
	for i, m := range models {
		out[i] = modelToRecipe(m)
	}
	return out, nil
}

func (s *GormStore) UpdateRecipe(ctx context.Context, rec domain.RecipeRecord) error {
	model := recipeToModel(rec)
	result := s.db.WithContext(ctx).Model(model).Select("*").Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteRecipe(ctx context.Context, id domain.RecordID) error {
	result := s.db.WithContext(ctx).Delete(&RecipeModel{}, "id = ?", string(id))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertUser creates the user or refreshes its profile fields. Preferences
// are only overwritten when user carries them.
func (s *GormStore) UpsertUser(ctx context.Context, user domain.User) (domain.User, error) {
	columns := []string{"email", "name", "image_url", "updated_at"}
	if user.Preferences != nil {
		columns = append(columns, "preferences")
	}
	model := userToModel(user)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "clerk_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(model).Error
	if err != nil {
		return domain.User{}, err
	}
	return s.FindUser(ctx, user.ExternalID)
}

func (s *GormStore) FindUser(ctx context.Context, externalID string) (domain.User, error) {
	var model UserModel
	err := s.db.WithContext(ctx).First(&model, "clerk_id = ?", externalID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, err
	}
	return modelToUser(model), nil
}

func recipeToModel(rec domain.RecipeRecord) *RecipeModel {
	return &RecipeModel{
		ID:             string(rec.ID),
		ClerkID:        rec.OwnerID,
		Title:          rec.Title,
		PrepTime:       rec.PrepTime,
		CookTime:       rec.CookTime,
		Servings:       rec.Servings,
		Ingredients:    rec.Ingredients,
		Steps:          rec.Steps,
		Nutrition:      rec.Nutrition,
		Tips:           rec.Tips,
		GenerationMeta: rec.GenerationMeta,
		ImageURI:       rec.ImageURI,
		Warning:        rec.Warning,
		IsFavorite:     rec.IsFavorite,
		Tags:           rec.Tags,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}

func modelToRecipe(m RecipeModel) domain.RecipeRecord {
	return domain.RecipeRecord{
		ID:             domain.RecordID(m.ID),
		OwnerID:        m.ClerkID,
		Title:          m.Title,
		PrepTime:       m.PrepTime,
		CookTime:       m.CookTime,
		Servings:       m.Servings,
		Ingredients:    m.Ingredients,
		Steps:          m.Steps,
		Nutrition:      m.Nutrition,
		Tips:           m.Tips,
		GenerationMeta: m.GenerationMeta,
		ImageURI:       m.ImageURI,
		Warning:        m.Warning,
		IsFavorite:     m.IsFavorite,
		Tags:           m.Tags,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func userToModel(u domain.User) *UserModel {
	return &UserModel{
		ClerkID:     u.ExternalID,
		Email:       u.Email,
		Name:        u.Name,
		ImageURL:    u.ImageURL,
		Preferences: u.Preferences,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func modelToUser(m UserModel) domain.User {
	return domain.User{
		ExternalID:  m.ClerkID,
		Email:       m.Email,
		Name:        m.Name,
		ImageURL:    m.ImageURL,
		Preferences: m.Preferences,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
