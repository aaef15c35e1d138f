package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// FilePayload is a file to attach to a record field.
type FilePayload struct {
	Name        string
	ContentType string
	Content     []byte
}

// Get downloads the file stored in a record field. A successful download is
// KindBytes; the service answers with JSON only for errors or metadata.
func (s FilesService) Get(ctx context.Context, viewID, recordID int64, field string) (*Response, error) {
	return s.do(ctx, request{method: http.MethodGet, endpoint: filePath(viewID, recordID, field)})
}

// Attach uploads a file into a record field as a multipart "file" part.
func (s FilesService) Attach(ctx context.Context, viewID, recordID int64, field string, file FilePayload) (*Response, error) {
	if file.Name == "" {
		return nil, fmt.Errorf("file name is required")
	}
	return s.do(ctx, request{
		method:   http.MethodPost,
		endpoint: filePath(viewID, recordID, field),
		file: &filePart{
			field:       "file",
			name:        file.Name,
			contentType: file.ContentType,
			content:     file.Content,
		},
	})
}

func filePath(viewID, recordID int64, field string) string {
	return fmt.Sprintf("%s/files/%s", recordPath(viewID, recordID), url.PathEscape(field))
}
