package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/chefhub/pkg/content"
)

const (
	catalogKey        = "chefhub:catalog:published"
	defaultCatalogTTL = 5 * time.Minute
)

// CourseSummary is the published metadata of a course shown to anyone
type CourseSummary struct {
	ID               string        `json:"id"`
	ChefID           string        `json:"chef_id"`
	Title            string        `json:"title"`
	Slug             string        `json:"slug"`
	ShortDescription string        `json:"short_description,omitempty"`
	PriceCents       int64         `json:"price_cents"`
	Level            content.Level `json:"level"`
	DurationHours    int           `json:"duration_hours"`
	FreePreview      bool          `json:"free_preview"`
	ClassCount       int           `json:"class_count"`
	PublishedAt      *time.Time    `json:"published_at,omitempty"`
}

func summarize(c *content.Course) CourseSummary {
	return CourseSummary{
		ID:               c.ID,
		ChefID:           c.ChefID,
		Title:            c.Title,
		Slug:             c.Slug,
		ShortDescription: c.ShortDescription,
		PriceCents:       c.PriceCents,
		Level:            c.Level,
		DurationHours:    c.DurationHours,
		FreePreview:      c.FreePreview,
		ClassCount:       len(c.ClassIDs),
		PublishedAt:      c.PublishedAt,
	}
}

// PublishedLister lists the courses visible in the catalog
type PublishedLister interface {
	ListPublishedCourses(ctx context.Context) ([]*content.Course, error)
}

// Catalog serves the published course listing from Redis, filling it from
// the content store on a miss. Concurrent misses share one database read.
// The Redis client is optional; without it every call reads through.
type Catalog struct {
	lister PublishedLister
	redis  *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *logrus.Logger
}

// NewCatalog creates a catalog. A nil client disables caching.
func NewCatalog(lister PublishedLister, client *redis.Client, ttl time.Duration, logger *logrus.Logger) *Catalog {
	if ttl <= 0 {
		ttl = defaultCatalogTTL
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Catalog{
		lister: lister,
		redis:  client,
		ttl:    ttl,
		logger: logger,
	}
}

// Published returns the summaries of all published courses
func (c *Catalog) Published(ctx context.Context) ([]CourseSummary, error) {
	if cached, ok := c.cached(ctx); ok {
		return cached, nil
	}

	v, err, _ := c.group.Do(catalogKey, func() (interface{}, error) {
		courses, err := c.lister.ListPublishedCourses(ctx)
		if err != nil {
			return nil, err
		}
		summaries := make([]CourseSummary, 0, len(courses))
		for _, course := range courses {
			summaries = append(summaries, summarize(course))
		}
		c.store(ctx, summaries)
		return summaries, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list published courses: %w", err)
	}
	return v.([]CourseSummary), nil
}

// Invalidate drops the cached listing
func (c *Catalog) Invalidate(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	if err := c.redis.Del(ctx, catalogKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate catalog: %w", err)
	}
	return nil
}

func (c *Catalog) cached(ctx context.Context) ([]CourseSummary, bool) {
	if c.redis == nil {
		return nil, false
	}

	data, err := c.redis.Get(ctx, catalogKey).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).Warn("catalog cache read failed")
		return nil, false
	}

	var summaries []CourseSummary
	if err := json.Unmarshal(data, &summaries); err != nil {
		// Corrupt entry, refill from the database
		c.redis.Del(ctx, catalogKey)
		return nil, false
	}
	return summaries, true
}

func (c *Catalog) store(ctx context.Context, summaries []CourseSummary) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(summaries)
	if err != nil {
		c.logger.WithError(err).Warn("failed to encode catalog")
		return
	}
	if err := c.redis.Set(ctx, catalogKey, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("catalog cache write failed")
	}
}
