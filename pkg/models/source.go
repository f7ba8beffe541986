package models

import "github.com/google/uuid"

// DocumentSource is one retrieved chunk of course material. It is transient:
// assembled per request from the chunk store and never persisted itself.
type DocumentSource struct {
	ID          string      `json:"id"`
	FileID      uuid.UUID   `json:"file_id"`
	FileName    string      `json:"file_name"`
	CourseID    uuid.UUID   `json:"course_id"`
	CourseName  string      `json:"course_name"`
	PageIndex   int         `json:"page_index"`
	PageContent string      `json:"page_content,omitempty"`
	BBox        *[4]float64 `json:"bbox,omitempty"`
}
