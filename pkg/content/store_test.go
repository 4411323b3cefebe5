package content

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/chefhub/pkg/storage/storagetest"
)

type fixture struct {
	store *Store
	chef  string
	other string
}

func setupStore(t *testing.T) *fixture {
	t.Helper()
	db := storagetest.NewDB(t)
	return &fixture{
		store: NewStore(db),
		chef:  storagetest.InsertUser(t, db, "chef"),
		other: storagetest.InsertUser(t, db, "chef"),
	}
}

func (f *fixture) course(t *testing.T) *Course {
	t.Helper()
	c, err := f.store.CreateCourse(context.Background(), f.chef, CourseInput{Title: "Knife Skills", PriceCents: 4900})
	require.NoError(t, err)
	return c
}

func (f *fixture) recipe(t *testing.T, owner string) *Recipe {
	t.Helper()
	r, err := f.store.CreateRecipe(context.Background(), owner, RecipeInput{Title: "Brunoise", Ingredients: "1 carrot"})
	require.NoError(t, err)
	return r
}

func TestStore_CreateCourse(t *testing.T) {
	f := setupStore(t)
	ctx := context.Background()

	c, err := f.store.CreateCourse(ctx, f.chef, CourseInput{
		Title:            "  French Pastry  ",
		ShortDescription: "Laminated doughs",
		PriceCents:       9900,
		Level:            LevelAdvanced,
		DurationHours:    12,
	})
	require.NoError(t, err)
	assert.Equal(t, "French Pastry", c.Title)
	assert.Equal(t, LifecycleDraft, c.State)
	assert.Contains(t, c.Slug, "french-pastry-")
	assert.Empty(t, c.ClassIDs)

	got, err := f.store.GetCourse(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, f.chef, got.ChefID)
	assert.Equal(t, int64(9900), got.PriceCents)
	assert.Equal(t, LevelAdvanced, got.Level)
	assert.Nil(t, got.PublishedAt)
}

func TestStore_CreateCourseValidation(t *testing.T) {
	f := setupStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CourseInput
	}{
		{"missing title", CourseInput{Title: "   "}},
		{"negative price", CourseInput{Title: "x", PriceCents: -1}},
		{"unknown level", CourseInput{Title: "x", Level: "expert"}},
		{"negative duration", CourseInput{Title: "x", DurationHours: -2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.store.CreateCourse(ctx, f.chef, tt.input)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestStore_GetCourseNotFound(t *testing.T) {
	f := setupStore(t)
	_, err := f.store.GetCourse(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpdateCourse(t *testing.T) {
	f := setupStore(t)
	ctx := context.Background()
	c := f.course(t)

	t.Run("owner", func(t *testing.T) {
		updated, err := f.store.UpdateCourse(ctx, f.chef, c.ID, CourseInput{Title: "Knife Skills II", PriceCents: 5900})
		require.NoError(t, err)
		assert.Equal(t, "Knife Skills II", updated.Title)
		assert.Equal(t, c.Slug, updated.Slug)

		got, err := f.store.GetCourse(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5900), got.PriceCents)
	})

	t.Run("non-owner", func(t *testing.T) {
		_, err := f.store.UpdateCourse(ctx, f.other, c.ID, CourseInput{Title: "Stolen"})
		assert.ErrorIs(t, err, ErrOwnershipViolation)

		got, err := f.store.GetCourse(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "Knife Skills II", got.Title)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := f.store.UpdateCourse(ctx, f.chef, "missing", CourseInput{Title: "x"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_PublishCourse(t *testing.T) {
	f := setupStore(t)
	ctx := context.Background()
	c := f.course(t)

	_, err := f.store.PublishCourse(ctx, f.other, c.ID)
	assert.ErrorIs(t, err, ErrOwnershipViolation)

	published, err := f.store.PublishCourse(ctx, f.chef, c.ID)
	require.NoError(t, err)
	assert.Equal(t, LifecyclePublished, published.State)
	require.NotNil(t, published.PublishedAt)

	again, err := f.store.PublishCourse(ctx, f.chef, c.ID)
	require.NoError(t, err)
	assert.Equal(t, LifecyclePublished, again.State)

	list, err := f.store.ListPublishedCourses(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, c.ID, list[0].ID)

	_, err = f.store.ArchiveCourse(ctx, f.chef, c.ID)
	require.NoError(t, err)

	_, err = f.store.PublishCourse(ctx, f.chef, c.ID)
	assert.ErrorIs(t, err, ErrInvalidHierarchy)

	list, err = f.store.ListPublishedCourses(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_CreateClass(t *testing.T) {
	f := setupStore(t)
	ctx := context.Background()
	c := f.course(t)
	own := f.recipe(t, f.chef)
	foreign := f.recipe(t, f.other)

	first, err := f.store.CreateClass(ctx, f.chef, c.ID, ClassInput{Title: "Holding the knife", RecipeIDs: []string{own.ID}})
	require.NoError(t, err)
	assert.Equal(t, 0, first.Position)
	assert.Equal(t, ClassActive, first.State)

	second, err := f.store.CreateClass(ctx, f.chef, c.ID, ClassInput{Title: "Julienne"})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Position)

	got, err := f.store.GetCourse(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, second.ID}, got.ClassIDs)

	gotClass, err := f.store.GetClass(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{own.ID}, gotClass.RecipeIDs)
	assert.Equal(t, c.ID, gotClass.CourseID)

	t.Run("foreign recipe", func(t *testing.T) {
		_, err := f.store.CreateClass(ctx, f.chef, c.ID, ClassInput{Title: "x", RecipeIDs: []string{foreign.ID}})
		assert.ErrorIs(t, err, ErrInvalidHierarchy)
	})

	t.Run("dangling recipe", func(t *testing.T) {
		_, err := f.store.CreateClass(ctx, f.chef, c.ID, ClassInput{Title: "x", RecipeIDs: []string{"missing"}})
		assert.ErrorIs(t, err, ErrInvalidHierarchy)
	})

	t.Run("duplicate recipe reference", func(t *testing.T) {
		_, err := f.store.CreateClass(ctx, f.chef, c.ID, ClassInput{Title: "x", RecipeIDs: []string{own.ID, own.ID}})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("non-owner", func(t *testing.T) {
		_, err := f.store.CreateClass(ctx, f.other, c.ID, ClassInput{Title: "x"})
		assert.ErrorIs(t, err, ErrOwnershipViolation)
	})

	t.Run("missing course", func(t *testing.T) {
		_, err := f.store.CreateClass(ctx, f.chef, "missing", ClassInput{Title: "x"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	// Failed attempts must not leave gaps in the sequence
	third, err := f.store.CreateClass(ctx, f.chef, c.ID, ClassInput{Title: "Chiffonade"})
	require.NoError(t, err)
	assert.Equal(t, 2, third.Position)
}

func TestStore_CreateClassConcurrent(t *testing.T) {
	f := setupStore(t)
	ctx := context.Background()
	c := f.course(t)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.store.CreateClass(ctx, f.chef, c.ID, ClassInput{Title: fmt.Sprintf("Class %d", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	classes, err := f.store.ListCourseClasses(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, classes, n)
	for i, cl := range classes {
		assert.Equal(t, i, cl.Position)
	}
}

func TestStore_UpdateClass(t *testing.T) {
	f := setupStore(t)
	ctx := context.Background()
	c := f.course(t)
	r1 := f.recipe(t, f.chef)
	r2 := f.recipe(t, f.chef)

	cl, err := f.store.CreateClass(ctx, f.chef, c.ID, ClassInput{Title: "Stocks", RecipeIDs: []string{r1.ID}})
	require.NoError(t, err)

	updated, err := f.store.UpdateClass(ctx, f.chef, cl.ID, ClassInput{
		Title:       "Stocks and sauces",
		VideoURL:    "https://video.example.com/stocks",
		FreePreview: true,
		RecipeIDs:   []string{r2.ID, r1.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, c.ID, updated.CourseID)

	got, err := f.store.GetClass(ctx, cl.ID)
	require.NoError(t, err)
	assert.Equal(t, "Stocks and sauces", got.Title)
	assert.True(t, got.FreePreview)
	assert.Equal(t, []string{r2.ID, r1.ID}, got.RecipeIDs)

	_, err = f.store.UpdateClass(ctx, f.other, cl.ID, ClassInput{Title: "x"})
	assert.ErrorIs(t, err, ErrOwnershipViolation)

	_, err = f.store.UpdateClass(ctx, f.chef, "missing", ClassInput{Title: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ReorderClasses(t *testing.T) {
	f := setupStore(t)
	ctx := context.Background()
	c := f.course(t)

	var ids []string
	for i := 0; i < 3; i++ {
		cl, err := f.store.CreateClass(ctx, f.chef, c.ID, ClassInput{Title: fmt.Sprintf("Class %d", i)})
		require.NoError(t, err)
		ids = append(ids, cl.ID)
	}

	reordered, err := f.store.ReorderClasses(ctx, f.chef, c.ID, []string{ids[2], ids[0], ids[1]})
	require.NoError(t, err)
	assert.Equal(t, []string{ids[2], ids[0], ids[1]}, reordered.ClassIDs)

	tests := []struct {
		name  string
		order []string
	}{
		{"missing class", []string{ids[0], ids[1]}},
		{"duplicate", []string{ids[0], ids[0], ids[1]}},
		{"unknown class", []string{ids[0], ids[1], "other"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.store.ReorderClasses(ctx, f.chef, c.ID, tt.order)
			assert.ErrorIs(t, err, ErrInvalidHierarchy)
		})
	}

	_, err = f.store.ReorderClasses(ctx, f.other, c.ID, ids)
	assert.ErrorIs(t, err, ErrOwnershipViolation)

	got, err := f.store.GetCourse(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[2], ids[0], ids[1]}, got.ClassIDs)
}

func TestStore_ArchiveCourseCascade(t *testing.T) {
	f := setupStore(t)
	ctx := context.Background()
	c := f.course(t)
	r := f.recipe(t, f.chef)

	for i := 0; i < 5; i++ {
		_, err := f.store.CreateClass(ctx, f.chef, c.ID, ClassInput{Title: fmt.Sprintf("Class %d", i), RecipeIDs: []string{r.ID}})
		require.NoError(t, err)
	}

	_, err := f.store.ArchiveCourse(ctx, f.other, c.ID)
	assert.ErrorIs(t, err, ErrOwnershipViolation)

	archived, err := f.store.ArchiveCourse(ctx, f.chef, c.ID)
	require.NoError(t, err)
	assert.Equal(t, LifecycleArchived, archived.State)
	assert.Len(t, archived.ClassIDs, 5)

	classes, err := f.store.ListCourseClasses(ctx, c.ID)
	require.NoError(t, err)
	for _, cl := range classes {
		assert.Equal(t, ClassArchived, cl.State)
		assert.Equal(t, []string{r.ID}, cl.RecipeIDs)
	}

	recipe, err := f.store.GetRecipe(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, recipe.Archived)

	using, err := f.store.ClassesUsingRecipe(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, using, 5)

	t.Run("repeat is a no-op", func(t *testing.T) {
		again, err := f.store.ArchiveCourse(ctx, f.chef, c.ID)
		require.NoError(t, err)
		assert.Equal(t, LifecycleArchived, again.State)
	})

	t.Run("archived course rejects mutation", func(t *testing.T) {
		_, err := f.store.UpdateCourse(ctx, f.chef, c.ID, CourseInput{Title: "x"})
		assert.ErrorIs(t, err, ErrInvalidHierarchy)

		_, err = f.store.CreateClass(ctx, f.chef, c.ID, ClassInput{Title: "x"})
		assert.ErrorIs(t, err, ErrInvalidHierarchy)

		_, err = f.store.UpdateClass(ctx, f.chef, classes[0].ID, ClassInput{Title: "x"})
		assert.ErrorIs(t, err, ErrInvalidHierarchy)
	})
}

func TestStore_ArchiveClass(t *testing.T) {
	f := setupStore(t)
	ctx := context.Background()
	c := f.course(t)
	r := f.recipe(t, f.chef)

	first, err := f.store.CreateClass(ctx, f.chef, c.ID, ClassInput{Title: "Mise en place", RecipeIDs: []string{r.ID}})
	require.NoError(t, err)
	second, err := f.store.CreateClass(ctx, f.chef, c.ID, ClassInput{Title: "Julienne"})
	require.NoError(t, err)

	_, err = f.store.ArchiveClass(ctx, f.other, first.ID)
	assert.ErrorIs(t, err, ErrOwnershipViolation)

	_, err = f.store.ArchiveClass(ctx, f.chef, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	archived, err := f.store.ArchiveClass(ctx, f.chef, first.ID)
	require.NoError(t, err)
	assert.Equal(t, ClassArchived, archived.State)
	assert.Equal(t, 0, archived.Position)
	assert.Equal(t, []string{r.ID}, archived.RecipeIDs)

	recipe, err := f.store.GetRecipe(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, recipe.Archived, "referenced recipes survive the class")

	using, err := f.store.ClassesUsingRecipe(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, using, 1)
	assert.Equal(t, first.ID, using[0].ID)

	course, err := f.store.GetCourse(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, second.ID}, course.ClassIDs, "positions are kept")
	assert.Equal(t, LifecycleDraft, course.State)

	again, err := f.store.ArchiveClass(ctx, f.chef, first.ID)
	require.NoError(t, err)
	assert.Equal(t, ClassArchived, again.State, "repeat is a no-op")

	_, err = f.store.UpdateClass(ctx, f.chef, first.ID, ClassInput{Title: "x"})
	assert.ErrorIs(t, err, ErrInvalidHierarchy)

	next, err := f.store.CreateClass(ctx, f.chef, c.ID, ClassInput{Title: "Chiffonade"})
	require.NoError(t, err)
	assert.Equal(t, 2, next.Position)
}

func TestStore_ArchiveCourseResumesPartialCascade(t *testing.T) {
	f := setupStore(t)
	ctx := context.Background()
	c := f.course(t)

	for i := 0; i < 3; i++ {
		_, err := f.store.CreateClass(ctx, f.chef, c.ID, ClassInput{Title: fmt.Sprintf("Class %d", i)})
		require.NoError(t, err)
	}

	// Simulate a cascade interrupted after the course flipped
	_, err := f.store.db.Exec(`UPDATE courses SET state = 'archived' WHERE id = $1`, c.ID)
	require.NoError(t, err)

	_, err = f.store.ArchiveCourse(ctx, f.chef, c.ID)
	require.NoError(t, err)

	classes, err := f.store.ListCourseClasses(ctx, c.ID)
	require.NoError(t, err)
	for _, cl := range classes {
		assert.Equal(t, ClassArchived, cl.State)
	}
}

func TestStore_CreateCourseDatabaseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO courses").WillReturnError(errors.New("connection reset"))

	store := NewStore(db)
	_, err = store.CreateCourse(context.Background(), "chef-1", CourseInput{Title: "Bread"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create course")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "pasta-from-scratch-abcdef12", slugify("Pasta from Scratch!", "abcdef12-3456"))
	assert.Equal(t, "abcdef12", slugify("!!!", "abcdef12-3456"))
}
