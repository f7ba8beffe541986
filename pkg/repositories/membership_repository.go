package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/studyloop-ai/studyloop-engine/pkg/database"
)

// FileCourse pairs a file with its owning course.
type FileCourse struct {
	FileID   uuid.UUID
	CourseID uuid.UUID
}

// MembershipRepository reads the access structures owned by the upstream
// platform: bucket membership and the course/file hierarchy.
type MembershipRepository interface {
	IsBucketMember(ctx context.Context, userID string, bucketID uuid.UUID) (bool, error)
	// FileCourses resolves files to their owning courses. Unknown file ids
	// yield no pair, which callers must treat as a denial.
	FileCourses(ctx context.Context, fileIDs []uuid.UUID) ([]FileCourse, error)
	// CountCoursesInBucket returns how many of the given courses belong to
	// the bucket.
	CountCoursesInBucket(ctx context.Context, bucketID uuid.UUID, courseIDs []uuid.UUID) (int, error)
}

type membershipRepository struct {
	db *database.DB
}

// NewMembershipRepository creates a new MembershipRepository.
func NewMembershipRepository(db *database.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

var _ MembershipRepository = (*membershipRepository)(nil)

func (r *membershipRepository) IsBucketMember(ctx context.Context, userID string, bucketID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM bucket_users
			WHERE bucket_id = $1 AND user_id = $2
		)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, bucketID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check bucket membership: %w", err)
	}

	return exists, nil
}

func (r *membershipRepository) FileCourses(ctx context.Context, fileIDs []uuid.UUID) ([]FileCourse, error) {
	if len(fileIDs) == 0 {
		return []FileCourse{}, nil
	}

	query := `SELECT id, course_id FROM files WHERE id = ANY($1)`

	rows, err := r.db.Query(ctx, query, fileIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file courses: %w", err)
	}
	defer rows.Close()

	pairs := make([]FileCourse, 0, len(fileIDs))
	for rows.Next() {
		var fc FileCourse
		if err := rows.Scan(&fc.FileID, &fc.CourseID); err != nil {
			return nil, fmt.Errorf("failed to scan file course: %w", err)
		}
		pairs = append(pairs, fc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating file courses: %w", err)
	}

	return pairs, nil
}

func (r *membershipRepository) CountCoursesInBucket(ctx context.Context, bucketID uuid.UUID, courseIDs []uuid.UUID) (int, error) {
	if len(courseIDs) == 0 {
		return 0, nil
	}

	query := `SELECT COUNT(*) FROM courses WHERE bucket_id = $1 AND id = ANY($2)`

	var count int
	if err := r.db.QueryRow(ctx, query, bucketID, courseIDs).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count courses in bucket: %w", err)
	}

	return count, nil
}
