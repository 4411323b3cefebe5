package content

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	maxTitleLength = 200
	maxRefs        = 500
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// slugify derives a URL slug from a title. The id suffix keeps slugs unique
// without a lookup.
func slugify(title, id string) string {
	base := nonSlugChars.ReplaceAllString(strings.ToLower(title), "-")
	base = strings.Trim(base, "-")
	if len(base) > 60 {
		base = strings.TrimRight(base[:60], "-")
	}
	suffix := id
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func validateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return validationError("title is required")
	}
	if len(title) > maxTitleLength {
		return validationError("title must be at most %d characters", maxTitleLength)
	}
	return nil
}

func validateRefs(ids []string) error {
	if len(ids) > maxRefs {
		return validationError("at most %d recipe references are allowed", maxRefs)
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			return validationError("recipe reference must not be empty")
		}
		if _, ok := seen[id]; ok {
			return validationError("recipe %s is referenced more than once", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func (in CourseInput) normalize() CourseInput {
	in.Title = strings.TrimSpace(in.Title)
	if in.Level == "" {
		in.Level = LevelBeginner
	}
	return in
}

func (in CourseInput) validate() error {
	if err := validateTitle(in.Title); err != nil {
		return err
	}
	if in.PriceCents < 0 {
		return validationError("price must not be negative")
	}
	if !in.Level.Valid() {
		return validationError("unknown level %q", in.Level)
	}
	if in.DurationHours < 0 {
		return validationError("duration must not be negative")
	}
	return nil
}

func (in ClassInput) normalize() ClassInput {
	in.Title = strings.TrimSpace(in.Title)
	if in.RecipeIDs == nil {
		in.RecipeIDs = []string{}
	}
	return in
}

func (in ClassInput) validate() error {
	if err := validateTitle(in.Title); err != nil {
		return err
	}
	if in.DurationMinutes < 0 {
		return validationError("duration must not be negative")
	}
	return validateRefs(in.RecipeIDs)
}

func (in RecipeInput) normalize() RecipeInput {
	in.Title = strings.TrimSpace(in.Title)
	if in.Difficulty == "" {
		in.Difficulty = DifficultyEasy
	}
	if in.Servings == 0 {
		in.Servings = 1
	}
	return in
}

func (in RecipeInput) validate() error {
	if err := validateTitle(in.Title); err != nil {
		return err
	}
	if !in.Difficulty.Valid() {
		return validationError("unknown difficulty %q", in.Difficulty)
	}
	if in.PrepMinutes < 0 || in.CookMinutes < 0 {
		return validationError("times must not be negative")
	}
	if in.Servings < 1 {
		return validationError("servings must be at least 1")
	}
	return nil
}

func (in BookInput) normalize() BookInput {
	in.Title = strings.TrimSpace(in.Title)
	if in.RecipeIDs == nil {
		in.RecipeIDs = []string{}
	}
	return in
}

func (in BookInput) validate() error {
	if err := validateTitle(in.Title); err != nil {
		return err
	}
	return validateRefs(in.RecipeIDs)
}
