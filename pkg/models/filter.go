package models

import (
	"fmt"

	"github.com/google/uuid"
)

// Filter scope limits. A request may narrow retrieval to a handful of
// courses or files within a single bucket, and reference at most one
// document artifact for modification.
const (
	MaxFilterCourses   = 5
	MaxFilterFiles     = 5
	MaxFilterDocuments = 1
)

// Filter is the caller-selected retrieval scope for a chat turn or search.
// The bucket is always required; course and file lists narrow the scope
// within it. An empty course and file list means the whole bucket.
type Filter struct {
	BucketID    uuid.UUID   `json:"bucket_id"`
	CourseIDs   []uuid.UUID `json:"course_ids,omitempty"`
	FileIDs     []uuid.UUID `json:"file_ids,omitempty"`
	DocumentIDs []uuid.UUID `json:"document_ids,omitempty"`
}

// Validate checks the structural constraints of the filter.
func (f *Filter) Validate() error {
	if f.BucketID == uuid.Nil {
		return fmt.Errorf("bucket_id is required")
	}
	if len(f.CourseIDs) > MaxFilterCourses {
		return fmt.Errorf("at most %d course_ids allowed, got %d", MaxFilterCourses, len(f.CourseIDs))
	}
	if len(f.FileIDs) > MaxFilterFiles {
		return fmt.Errorf("at most %d file_ids allowed, got %d", MaxFilterFiles, len(f.FileIDs))
	}
	if len(f.DocumentIDs) > MaxFilterDocuments {
		return fmt.Errorf("at most %d document_ids allowed, got %d", MaxFilterDocuments, len(f.DocumentIDs))
	}
	return nil
}
