package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"logbook-service/internal/models"

	redis_v9 "github.com/redis/go-redis/v9"
)

// TemplateCache keeps template documents in Redis with a short TTL.
// Templates are read on every entry write; supervisor sets are never
// cached here, the resolver must see live grants.
type TemplateCache struct {
	client *redis_v9.Client
	ttl    time.Duration
}

func NewTemplateCache(client *redis_v9.Client, ttl time.Duration) *TemplateCache {
	return &TemplateCache{
		client: client,
		ttl:    ttl,
	}
}

func templateKey(id string) string {
	return "logbook:template:" + id
}

func (c *TemplateCache) Get(ctx context.Context, id string) (*models.Template, error) {
	if c.client == nil {
		return nil, nil
	}

	data, err := c.client.Get(ctx, templateKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis_v9.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading template from cache: %w", err)
	}

	var template models.Template
	if err := json.Unmarshal(data, &template); err != nil {
		return nil, fmt.Errorf("error decoding cached template: %w", err)
	}
	return &template, nil
}

func (c *TemplateCache) Set(ctx context.Context, template *models.Template) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(template)
	if err != nil {
		return fmt.Errorf("error encoding template for cache: %w", err)
	}
	return c.client.Set(ctx, templateKey(template.ID.Hex()), data, c.ttl).Err()
}

func (c *TemplateCache) Invalidate(ctx context.Context, id string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, templateKey(id)).Err()
}
