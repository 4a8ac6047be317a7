package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const learnedPatternsKey = "queryshield:learned_patterns"

// LearnedPatternStore persists the exported learned-pattern set so a
// restarted process can re-import what earlier traffic taught it.
type LearnedPatternStore struct {
	client *redis.Client
	logger logrus.FieldLogger
}

func NewLearnedPatternStore(client *redis.Client, logger logrus.FieldLogger) *LearnedPatternStore {
	return &LearnedPatternStore{client: client, logger: logger}
}

// Persist overwrites the stored set with the given export.
func (s *LearnedPatternStore) Persist(ctx context.Context, patterns []string) error {
	payload, err := json.Marshal(patterns)
	if err != nil {
		return fmt.Errorf("marshal learned patterns: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.client.Set(ctx, learnedPatternsKey, payload, 0).Err(); err != nil {
		return fmt.Errorf("persist learned patterns: %w", err)
	}

	s.logger.WithField("count", len(patterns)).Info("learned patterns persisted")
	return nil
}

// Load returns the stored set; a missing key is an empty set, not an error.
func (s *LearnedPatternStore) Load(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	payload, err := s.client.Get(ctx, learnedPatternsKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load learned patterns: %w", err)
	}

	var patterns []string
	if err := json.Unmarshal([]byte(payload), &patterns); err != nil {
		return nil, fmt.Errorf("unmarshal learned patterns: %w", err)
	}
	return patterns, nil
}

// Drop removes the stored set. Pairs with the learner's audited Clear.
func (s *LearnedPatternStore) Drop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.client.Del(ctx, learnedPatternsKey).Err(); err != nil {
		return fmt.Errorf("drop learned patterns: %w", err)
	}
	s.logger.Warn("stored learned patterns dropped")
	return nil
}
