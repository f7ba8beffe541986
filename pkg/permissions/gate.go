// Package permissions enforces retrieval scope authorization.
package permissions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/studyloop-ai/studyloop-engine/pkg/models"
	"github.com/studyloop-ai/studyloop-engine/pkg/repositories"
)

const cacheKeyPrefix = "user-permissions:"

// Gate decides whether a user may retrieve from a requested scope.
// Denial is a false result, never an error; errors are reserved for store
// failures. A redis cache of previously validated ids serves as the fast
// path; the membership store is the slow path and the source of truth.
// Any id that cannot be positively verified denies the whole request.
type Gate struct {
	cache  *redis.Client // nil disables the fast path
	store  repositories.MembershipRepository
	ttl    time.Duration
	logger *zap.Logger
}

// NewGate creates a new permission gate. cache may be nil.
func NewGate(cache *redis.Client, store repositories.MembershipRepository, ttl time.Duration, logger *zap.Logger) *Gate {
	return &Gate{
		cache:  cache,
		store:  store,
		ttl:    ttl,
		logger: logger.Named("permission-gate"),
	}
}

// cachedScope holds the validated id sets stored per user.
type cachedScope struct {
	BucketIDs []string `json:"bucket_ids"`
	CourseIDs []string `json:"course_ids"`
	FileIDs   []string `json:"file_ids"`
}

// Authorize reports whether userID may access every id named in scope.
func (g *Gate) Authorize(ctx context.Context, userID string, scope models.Filter) (bool, error) {
	if userID == "" || scope.BucketID == uuid.Nil {
		return false, nil
	}

	if g.cacheCovers(ctx, userID, scope) {
		return true, nil
	}

	member, err := g.store.IsBucketMember(ctx, userID, scope.BucketID)
	if err != nil {
		return false, err
	}
	if !member {
		return false, nil
	}

	// Resolve files to their owning courses and union with the named
	// courses. A file that resolves to nothing is a denial.
	courseSet := make(map[uuid.UUID]struct{}, len(scope.CourseIDs)+len(scope.FileIDs))
	for _, id := range scope.CourseIDs {
		courseSet[id] = struct{}{}
	}

	if len(scope.FileIDs) > 0 {
		pairs, err := g.store.FileCourses(ctx, scope.FileIDs)
		if err != nil {
			return false, err
		}

		resolved := make(map[uuid.UUID]struct{}, len(pairs))
		for _, p := range pairs {
			resolved[p.FileID] = struct{}{}
			courseSet[p.CourseID] = struct{}{}
		}
		for _, id := range scope.FileIDs {
			if _, ok := resolved[id]; !ok {
				return false, nil
			}
		}
	}

	if len(courseSet) > 0 {
		courses := make([]uuid.UUID, 0, len(courseSet))
		for id := range courseSet {
			courses = append(courses, id)
		}

		count, err := g.store.CountCoursesInBucket(ctx, scope.BucketID, courses)
		if err != nil {
			return false, err
		}
		if count != len(courses) {
			return false, nil
		}
	}

	g.updateCache(ctx, userID, scope)
	return true, nil
}

// cacheCovers reports whether every id of the scope is already in the
// user's validated cache entry. Cache failures fall back to the slow path.
func (g *Gate) cacheCovers(ctx context.Context, userID string, scope models.Filter) bool {
	if g.cache == nil {
		return false
	}

	raw, err := g.cache.Get(ctx, cacheKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		g.logger.Warn("Permission cache read failed", zap.Error(err))
		return false
	}

	var cached cachedScope
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		g.logger.Warn("Permission cache entry malformed", zap.Error(err))
		return false
	}

	if !containsAll(cached.BucketIDs, []uuid.UUID{scope.BucketID}) {
		return false
	}
	if !containsAll(cached.CourseIDs, scope.CourseIDs) {
		return false
	}
	if !containsAll(cached.FileIDs, scope.FileIDs) {
		return false
	}

	return true
}

// updateCache merges the freshly validated scope into the user's cache
// entry. Only called after successful slow-path validation.
func (g *Gate) updateCache(ctx context.Context, userID string, scope models.Filter) {
	if g.cache == nil {
		return
	}

	key := cacheKeyPrefix + userID

	var cached cachedScope
	raw, err := g.cache.Get(ctx, key).Result()
	if err == nil {
		if err := json.Unmarshal([]byte(raw), &cached); err != nil {
			cached = cachedScope{}
		}
	}

	cached.BucketIDs = mergeIDs(cached.BucketIDs, []uuid.UUID{scope.BucketID})
	cached.CourseIDs = mergeIDs(cached.CourseIDs, scope.CourseIDs)
	cached.FileIDs = mergeIDs(cached.FileIDs, scope.FileIDs)

	data, err := json.Marshal(cached)
	if err != nil {
		g.logger.Warn("Failed to marshal permission cache entry", zap.Error(err))
		return
	}

	if err := g.cache.Set(ctx, key, data, g.ttl).Err(); err != nil {
		g.logger.Warn("Permission cache write failed", zap.Error(err))
	}
}

func containsAll(have []string, want []uuid.UUID) bool {
	if len(want) == 0 {
		return true
	}

	set := make(map[string]struct{}, len(have))
	for _, id := range have {
		set[id] = struct{}{}
	}
	for _, id := range want {
		if _, ok := set[id.String()]; !ok {
			return false
		}
	}

	return true
}

func mergeIDs(have []string, add []uuid.UUID) []string {
	set := make(map[string]struct{}, len(have)+len(add))
	merged := make([]string, 0, len(have)+len(add))
	for _, id := range have {
		if _, ok := set[id]; !ok {
			set[id] = struct{}{}
			merged = append(merged, id)
		}
	}
	for _, id := range add {
		s := id.String()
		if _, ok := set[s]; !ok {
			set[s] = struct{}{}
			merged = append(merged, s)
		}
	}

	return merged
}
