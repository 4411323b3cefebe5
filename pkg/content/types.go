package content

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the requested entity does not exist
	ErrNotFound = errors.New("not found")
	// ErrOwnershipViolation is returned when a chef mutates content they do not own
	ErrOwnershipViolation = errors.New("ownership violation")
	// ErrInvalidHierarchy is returned when a write would break the containment hierarchy
	ErrInvalidHierarchy = errors.New("invalid hierarchy")
	// ErrValidation is returned for malformed payloads
	ErrValidation = errors.New("validation failed")
)

// Lifecycle is the publication state of a course
type Lifecycle string

const (
	LifecycleDraft     Lifecycle = "draft"
	LifecyclePublished Lifecycle = "published"
	LifecycleArchived  Lifecycle = "archived"
)

// ClassState is the state of a class within its course
type ClassState string

const (
	ClassActive   ClassState = "active"
	ClassArchived ClassState = "archived"
)

// Level is the difficulty tier of a course
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// Valid reports whether l is a known level
func (l Level) Valid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

// Difficulty is the difficulty of a recipe
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is a known difficulty
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Course is a sellable, ordered collection of classes owned by one chef
type Course struct {
	ID               string     `json:"id"`
	ChefID           string     `json:"chef_id"`
	Title            string     `json:"title"`
	Slug             string     `json:"slug"`
	Description      string     `json:"description"`
	ShortDescription string     `json:"short_description,omitempty"`
	PriceCents       int64      `json:"price_cents"`
	Level            Level      `json:"level"`
	DurationHours    int        `json:"duration_hours"`
	State            Lifecycle  `json:"state"`
	FreePreview      bool       `json:"free_preview"`
	ClassIDs         []string   `json:"class_ids"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	PublishedAt      *time.Time `json:"published_at,omitempty"`
}

// IsPublished reports whether students can see the course
func (c *Course) IsPublished() bool {
	return c.State == LifecyclePublished
}

// CourseInput is the mutable part of a course
type CourseInput struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	ShortDescription string `json:"short_description"`
	PriceCents       int64  `json:"price_cents"`
	Level            Level  `json:"level"`
	DurationHours    int    `json:"duration_hours"`
	FreePreview      bool   `json:"free_preview"`
}

// Class is a single lesson inside a course
type Class struct {
	ID              string     `json:"id"`
	CourseID        string     `json:"course_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Notes           string     `json:"notes,omitempty"`
	VideoURL        string     `json:"video_url,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	Position        int        `json:"position"`
	State           ClassState `json:"state"`
	FreePreview     bool       `json:"free_preview"`
	RecipeIDs       []string   `json:"recipe_ids"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ClassInput is the mutable part of a class
type ClassInput struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Notes           string   `json:"notes"`
	VideoURL        string   `json:"video_url"`
	DurationMinutes int      `json:"duration_minutes"`
	FreePreview     bool     `json:"free_preview"`
	RecipeIDs       []string `json:"recipe_ids"`
}

// Recipe is a reusable content unit owned by one chef
type Recipe struct {
	ID           string     `json:"id"`
	ChefID       string     `json:"chef_id"`
	Title        string     `json:"title"`
	Slug         string     `json:"slug"`
	Description  string     `json:"description"`
	Ingredients  string     `json:"ingredients"`
	Instructions string     `json:"instructions"`
	PrepMinutes  int        `json:"prep_minutes"`
	CookMinutes  int        `json:"cook_minutes"`
	Servings     int        `json:"servings"`
	Difficulty   Difficulty `json:"difficulty"`
	IsPublic     bool       `json:"is_public"`
	Archived     bool       `json:"archived"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TotalMinutes is the prep plus cook time
func (r *Recipe) TotalMinutes() int {
	return r.PrepMinutes + r.CookMinutes
}

// RecipeInput is the mutable part of a recipe
type RecipeInput struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Ingredients  string     `json:"ingredients"`
	Instructions string     `json:"instructions"`
	PrepMinutes  int        `json:"prep_minutes"`
	CookMinutes  int        `json:"cook_minutes"`
	Servings     int        `json:"servings"`
	Difficulty   Difficulty `json:"difficulty"`
	IsPublic     bool       `json:"is_public"`
}

// Book is an ordered collection of recipe references
type Book struct {
	ID          string    `json:"id"`
	ChefID      string    `json:"chef_id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Author      string    `json:"author,omitempty"`
	IsPublic    bool      `json:"is_public"`
	Archived    bool      `json:"archived"`
	RecipeIDs   []string  `json:"recipe_ids"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BookInput is the mutable part of a book
type BookInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Author      string   `json:"author"`
	IsPublic    bool     `json:"is_public"`
	RecipeIDs   []string `json:"recipe_ids"`
}
