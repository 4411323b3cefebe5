package platform

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/chefhub/pkg/authz"
	"github.com/platinummonkey/chefhub/pkg/content"
	"github.com/platinummonkey/chefhub/pkg/enrollment"
	"github.com/platinummonkey/chefhub/pkg/gate"
	"github.com/platinummonkey/chefhub/pkg/identity"
	"github.com/platinummonkey/chefhub/pkg/storage/storagetest"
)

type platformFixture struct {
	svc       *Service
	mr        *miniredis.Miniredis
	chef      identity.Actor
	otherChef identity.Actor
	student   identity.Actor
}

func setupService(t *testing.T) *platformFixture {
	t.Helper()
	db := storagetest.NewDB(t)
	logger, _ := test.NewNullLogger()

	store := content.NewStore(db)
	ledger := enrollment.NewLedger(db, logger)
	g := gate.New(store, ledger, logger)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return &platformFixture{
		svc:       NewService(store, ledger, g, NewCatalog(store, client, time.Minute, logger), logger),
		mr:        mr,
		chef:      identity.Actor{UserID: storagetest.InsertUser(t, db, "chef"), Role: identity.RoleChef},
		otherChef: identity.Actor{UserID: storagetest.InsertUser(t, db, "chef"), Role: identity.RoleChef},
		student:   identity.Actor{UserID: storagetest.InsertUser(t, db, "student"), Role: identity.RoleStudent},
	}
}

// publishedCourse creates a published course with one gated class that uses
// a private recipe and one preview class
func (f *platformFixture) publishedCourse(t *testing.T) (*content.Course, *content.Class, *content.Class, *content.Recipe) {
	t.Helper()
	ctx := context.Background()

	r, err := f.svc.CreateRecipe(ctx, f.chef, content.RecipeInput{Title: "Mother sauces", Ingredients: "butter, flour"})
	require.NoError(t, err)
	c, err := f.svc.CreateCourse(ctx, f.chef, content.CourseInput{Title: "Sauces", PriceCents: 2900})
	require.NoError(t, err)
	gated, err := f.svc.CreateClass(ctx, f.chef, c.ID, content.ClassInput{Title: "Bechamel", RecipeIDs: []string{r.ID}})
	require.NoError(t, err)
	preview, err := f.svc.CreateClass(ctx, f.chef, c.ID, content.ClassInput{Title: "Welcome", FreePreview: true})
	require.NoError(t, err)
	c, err = f.svc.PublishCourse(ctx, f.chef, c.ID)
	require.NoError(t, err)
	return c, gated, preview, r
}

func TestService_AuthoringIsOwnerOnly(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	_, err := f.svc.CreateCourse(ctx, f.student, content.CourseInput{Title: "Nope"})
	assert.ErrorIs(t, err, authz.ErrRoleNotPermitted)

	_, err = f.svc.CreateCourse(ctx, identity.Anonymous(), content.CourseInput{Title: "Nope"})
	assert.ErrorIs(t, err, authz.ErrUnauthenticated)

	c, gated, _, r := f.publishedCourse(t)

	_, err = f.svc.UpdateCourse(ctx, f.otherChef, c.ID, content.CourseInput{Title: "Stolen"})
	assert.ErrorIs(t, err, authz.ErrNotOwner)
	_, err = f.svc.UpdateClass(ctx, f.otherChef, gated.ID, content.ClassInput{Title: "Stolen"})
	assert.ErrorIs(t, err, authz.ErrNotOwner)
	_, err = f.svc.ArchiveRecipe(ctx, f.otherChef, r.ID)
	assert.ErrorIs(t, err, authz.ErrNotOwner)
	_, err = f.svc.CreateClass(ctx, f.otherChef, c.ID, content.ClassInput{Title: "Intruder"})
	assert.ErrorIs(t, err, authz.ErrNotOwner)

	foreign, err := f.svc.CreateRecipe(ctx, f.otherChef, content.RecipeInput{Title: "Foreign"})
	require.NoError(t, err)
	_, err = f.svc.UpdateClass(ctx, f.chef, gated.ID, content.ClassInput{Title: "Bechamel", RecipeIDs: []string{foreign.ID}})
	assert.ErrorIs(t, err, content.ErrInvalidHierarchy)

	mine, err := f.svc.MyCourses(ctx, f.chef)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = f.svc.MyCourses(ctx, f.student)
	assert.ErrorIs(t, err, authz.ErrRoleNotPermitted)
}

func TestService_BrowseAndCatalogInvalidation(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	empty, err := f.svc.BrowseCourses(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.True(t, f.mr.Exists(catalogKey))

	c, _, _, _ := f.publishedCourse(t)

	listed, err := f.svc.BrowseCourses(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, c.ID, listed[0].ID)
	assert.Equal(t, 2, listed[0].ClassCount)

	_, err = f.svc.ArchiveCourse(ctx, f.chef, c.ID)
	require.NoError(t, err)
	assert.False(t, f.mr.Exists(catalogKey))

	listed, err = f.svc.BrowseCourses(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestService_PurchaseFlow(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	c, gated, preview, r := f.publishedCourse(t)

	detail, err := f.svc.GetCourseDetail(ctx, identity.Anonymous(), c.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Outline, 2)
	assert.False(t, detail.Enrolled)

	_, err = f.svc.GetClassDetail(ctx, identity.Anonymous(), preview.ID)
	require.NoError(t, err)
	_, err = f.svc.GetClassDetail(ctx, identity.Anonymous(), gated.ID)
	assert.ErrorIs(t, err, authz.ErrUnauthenticated)
	_, err = f.svc.GetClassDetail(ctx, f.student, gated.ID)
	assert.ErrorIs(t, err, authz.ErrNotEnrolled)
	_, err = f.svc.GetRecipeDetail(ctx, f.student, r.ID, gated.ID)
	assert.ErrorIs(t, err, authz.ErrNotEnrolled)

	_, err = f.svc.PurchaseCourse(ctx, f.chef, c.ID, "k")
	assert.ErrorIs(t, err, authz.ErrRoleNotPermitted)

	res, err := f.svc.PurchaseCourse(ctx, f.student, c.ID, "order-1")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, int64(2900), res.Enrollment.AmountCents)

	retry, err := f.svc.PurchaseCourse(ctx, f.student, c.ID, "order-1")
	require.NoError(t, err)
	assert.False(t, retry.Created)
	assert.Equal(t, res.Enrollment.ID, retry.Enrollment.ID)

	_, err = f.svc.GetClassDetail(ctx, f.student, gated.ID)
	assert.ErrorIs(t, err, authz.ErrNotEnrolled)

	_, err = f.svc.ConfirmPayment(ctx, res.Enrollment.ID, "ch_123")
	require.NoError(t, err)

	cd, err := f.svc.GetClassDetail(ctx, f.student, gated.ID)
	require.NoError(t, err)
	require.Len(t, cd.Recipes, 1)
	assert.Equal(t, r.ID, cd.Recipes[0].ID)

	got, err := f.svc.GetRecipeDetail(ctx, f.student, r.ID, gated.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)

	_, err = f.svc.GetRecipeDetail(ctx, f.student, r.ID, "")
	assert.ErrorIs(t, err, authz.ErrNotPublished)

	detail, err = f.svc.GetCourseDetail(ctx, f.student, c.ID)
	require.NoError(t, err)
	assert.True(t, detail.Enrolled)

	mine, err := f.svc.MyEnrollments(ctx, f.student)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, enrollment.StateActive, mine[0].State)

	history, err := f.svc.EnrollmentHistory(ctx, f.student, res.Enrollment.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	_, err = f.svc.EnrollmentHistory(ctx, f.otherChef, res.Enrollment.ID)
	assert.ErrorIs(t, err, authz.ErrNotOwner)

	stats, err := f.svc.CourseStats(ctx, f.chef, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ActiveEnrollments)
	assert.Equal(t, int64(2900), stats.RevenueCents)

	_, err = f.svc.CourseStats(ctx, f.student, c.ID)
	assert.ErrorIs(t, err, authz.ErrNotOwner)

	_, err = f.svc.RevokeEnrollment(ctx, res.Enrollment.ID, "refund")
	require.NoError(t, err)
	_, err = f.svc.GetClassDetail(ctx, f.student, gated.ID)
	assert.ErrorIs(t, err, authz.ErrNotEnrolled)
}

func TestService_PurchaseRequiresPublishedCourse(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	draft, err := f.svc.CreateCourse(ctx, f.chef, content.CourseInput{Title: "Draft"})
	require.NoError(t, err)

	_, err = f.svc.PurchaseCourse(ctx, f.student, draft.ID, "")
	assert.ErrorIs(t, err, authz.ErrNotPublished)

	_, err = f.svc.PurchaseCourse(ctx, identity.Anonymous(), draft.ID, "")
	assert.ErrorIs(t, err, authz.ErrUnauthenticated)

	_, err = f.svc.PurchaseCourse(ctx, f.student, "missing", "")
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func TestService_FailedPaymentAllowsRetry(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	c, _, _, _ := f.publishedCourse(t)

	first, err := f.svc.PurchaseCourse(ctx, f.student, c.ID, "")
	require.NoError(t, err)
	_, err = f.svc.FailPayment(ctx, first.Enrollment.ID, "card declined")
	require.NoError(t, err)

	_, err = f.svc.ConfirmPayment(ctx, first.Enrollment.ID, "ch_late")
	assert.ErrorIs(t, err, enrollment.ErrInvalidTransition)

	second, err := f.svc.PurchaseCourse(ctx, f.student, c.ID, "")
	require.NoError(t, err)
	assert.True(t, second.Created)
	assert.NotEqual(t, first.Enrollment.ID, second.Enrollment.ID)
}

func TestService_ArchiveKeepsRecipes(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	c, gated, _, r := f.publishedCourse(t)

	archived, err := f.svc.ArchiveCourse(ctx, f.chef, c.ID)
	require.NoError(t, err)
	assert.Equal(t, content.LifecycleArchived, archived.State)

	detail, err := f.svc.GetCourseDetail(ctx, f.chef, c.ID)
	require.NoError(t, err)
	assert.True(t, detail.Owner)
	assert.Len(t, detail.Outline, 2)

	_, err = f.svc.GetCourseDetail(ctx, f.student, c.ID)
	assert.ErrorIs(t, err, authz.ErrNotPublished)

	got, err := f.svc.GetRecipeDetail(ctx, f.chef, r.ID, "")
	require.NoError(t, err)
	assert.False(t, got.Archived)

	usage, err := f.svc.RecipeUsage(ctx, f.chef, r.ID)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, gated.ID, usage[0].ID)
	assert.Equal(t, content.ClassArchived, usage[0].State)
}

func TestService_BookShowsReadableRecipes(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	public, err := f.svc.CreateRecipe(ctx, f.chef, content.RecipeInput{Title: "Focaccia", IsPublic: true})
	require.NoError(t, err)
	private, err := f.svc.CreateRecipe(ctx, f.chef, content.RecipeInput{Title: "Secret dough"})
	require.NoError(t, err)
	book, err := f.svc.CreateBook(ctx, f.chef, content.BookInput{
		Title:     "Breads",
		IsPublic:  true,
		RecipeIDs: []string{public.ID, private.ID},
	})
	require.NoError(t, err)

	asStudent, err := f.svc.GetBookDetail(ctx, f.student, book.ID)
	require.NoError(t, err)
	require.Len(t, asStudent.Recipes, 1)
	assert.Equal(t, public.ID, asStudent.Recipes[0].ID)

	asOwner, err := f.svc.GetBookDetail(ctx, f.chef, book.ID)
	require.NoError(t, err)
	assert.Len(t, asOwner.Recipes, 2)

	_, err = f.svc.ArchiveBook(ctx, f.otherChef, book.ID)
	assert.ErrorIs(t, err, authz.ErrNotOwner)

	_, err = f.svc.ArchiveBook(ctx, f.chef, book.ID)
	require.NoError(t, err)
	_, err = f.svc.GetBookDetail(ctx, f.student, book.ID)
	assert.ErrorIs(t, err, authz.ErrNotPublished)

	_, err = f.svc.GetRecipeDetail(ctx, f.student, private.ID, "")
	assert.ErrorIs(t, err, authz.ErrNotPublished)
}

func TestService_Progress(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	c, gated, preview, _ := f.publishedCourse(t)

	require.NoError(t, f.svc.CompleteClass(ctx, f.student, preview.ID))
	assert.ErrorIs(t, f.svc.CompleteClass(ctx, f.student, gated.ID), authz.ErrNotEnrolled)
	assert.ErrorIs(t, f.svc.CompleteClass(ctx, identity.Anonymous(), preview.ID), authz.ErrUnauthenticated)

	p, err := f.svc.CourseProgress(ctx, f.student, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{preview.ID}, p.CompletedClasses)
	assert.Equal(t, 2, p.TotalClasses)
}
