package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/local/resumevision/internal/result"
)

// RedisStore keeps workflows as Redis hashes so they survive restarts.
type RedisStore struct {
	client *redis.Client
	keyNS  string
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(ctx context.Context, redisURL, keyNS string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse redis url: %v", result.ErrComponentInit, err)
	}
	c := redis.NewClient(opt)
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: redis ping: %v", result.ErrComponentInit, err)
	}
	if keyNS == "" {
		keyNS = "resumevision"
	}
	return &RedisStore{client: c, keyNS: keyNS}, nil
}

func (s *RedisStore) key(name string) string { return fmt.Sprintf("%s:workflow:%s", s.keyNS, name) }
func (s *RedisStore) indexKey() string       { return s.keyNS + ":workflows" }

func (s *RedisStore) Save(ctx context.Context, w *Workflow) error {
	if w == nil || w.Name == "" {
		return fmt.Errorf("%w: workflow name is empty", result.ErrUnsupportedInput)
	}
	paths, _ := json.Marshal(w.ScreenshotPaths)
	m := map[string]interface{}{
		"name":             w.Name,
		"input_path":       w.InputPath,
		"screenshot_path":  w.ScreenshotPath,
		"screenshot_paths": string(paths),
		"html_path":        w.HTMLPath,
		"pdf_path":         w.PDFPath,
		"template_path":    w.TemplatePath,
		"artifact_url":     w.ArtifactURL,
		"step":             string(w.Step),
		"status":           string(w.Status),
		"error":            w.Error,
		"created_at":       w.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":       w.UpdatedAt.Format(time.RFC3339Nano),
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(w.Name), m)
	pipe.SAdd(ctx, s.indexKey(), w.Name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: save workflow: %v", result.ErrExternalTool, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, name string) (*Workflow, error) {
	res, err := s.client.HGetAll(ctx, s.key(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: load workflow: %v", result.ErrExternalTool, err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("%w: workflow %q", result.ErrNotFound, name)
	}
	w := &Workflow{
		Name:           res["name"],
		InputPath:      res["input_path"],
		ScreenshotPath: res["screenshot_path"],
		HTMLPath:       res["html_path"],
		PDFPath:        res["pdf_path"],
		TemplatePath:   res["template_path"],
		ArtifactURL:    res["artifact_url"],
		Step:           Step(res["step"]),
		Status:         Status(res["status"]),
		Error:          res["error"],
	}
	if v := res["screenshot_paths"]; v != "" {
		_ = json.Unmarshal([]byte(v), &w.ScreenshotPaths)
	}
	if t, err := time.Parse(time.RFC3339Nano, res["created_at"]); err == nil {
		w.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, res["updated_at"]); err == nil {
		w.UpdatedAt = t
	}
	return w, nil
}

func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list workflows: %v", result.ErrExternalTool, err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }

// Client returns the underlying Redis client
func (s *RedisStore) Client() *redis.Client { return s.client }

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }
