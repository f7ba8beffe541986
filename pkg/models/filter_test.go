package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestFilterValidate(t *testing.T) {
	manyIDs := func(n int) []uuid.UUID {
		ids := make([]uuid.UUID, n)
		for i := range ids {
			ids[i] = uuid.New()
		}
		return ids
	}

	tests := []struct {
		name    string
		filter  Filter
		wantErr bool
	}{
		{
			name:    "missing bucket",
			filter:  Filter{},
			wantErr: true,
		},
		{
			name:   "bucket only",
			filter: Filter{BucketID: uuid.New()},
		},
		{
			name: "at the limits",
			filter: Filter{
				BucketID:    uuid.New(),
				CourseIDs:   manyIDs(MaxFilterCourses),
				FileIDs:     manyIDs(MaxFilterFiles),
				DocumentIDs: manyIDs(MaxFilterDocuments),
			},
		},
		{
			name: "too many courses",
			filter: Filter{
				BucketID:  uuid.New(),
				CourseIDs: manyIDs(MaxFilterCourses + 1),
			},
			wantErr: true,
		},
		{
			name: "too many files",
			filter: Filter{
				BucketID: uuid.New(),
				FileIDs:  manyIDs(MaxFilterFiles + 1),
			},
			wantErr: true,
		},
		{
			name: "too many documents",
			filter: Filter{
				BucketID:    uuid.New(),
				DocumentIDs: manyIDs(MaxFilterDocuments + 1),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
