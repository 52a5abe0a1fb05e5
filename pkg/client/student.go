package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/marshallshelly/databridge/pkg/model"
)

// BulkDeleteResult reports a bulk delete. MissingIDs lists the ids the
// backend did not find; a non-empty list means partial success.
type BulkDeleteResult struct {
	DeletedRows int     `json:"deletedRows"`
	MissingIDs  []int64 `json:"missingIds"`
}

// UploadResult reports a spreadsheet ingestion. Zero inserted records is a
// valid outcome when every row already exists.
type UploadResult struct {
	RecordsInserted int `json:"recordsInserted"`
}

// StudentService adds the batch endpoints to the student resource.
type StudentService struct {
	*Resource[model.Student]
}

// NewStudentService returns the student service.
func NewStudentService(c *Client) *StudentService {
	return &StudentService{Resource: NewResource[model.Student](c, StudentRoutes)}
}

// DeleteBulk deletes every student in ids with one request.
func (s *StudentService) DeleteBulk(ctx context.Context, ids []int64) (BulkDeleteResult, error) {
	if len(ids) == 0 {
		return BulkDeleteResult{}, ErrNoIDs
	}
	body, err := s.client.doJSON(ctx, http.MethodDelete, StudentBulkDeletePath, StudentBulkDeletePath, ids)
	if err != nil {
		return BulkDeleteResult{}, err
	}

	var result BulkDeleteResult
	if err := json.Unmarshal(body, &result); err != nil {
		return BulkDeleteResult{}, fmt.Errorf("failed to decode bulk delete response: %w", err)
	}
	return result, nil
}

// Upload sends a spreadsheet or CSV file for batch ingestion.
func (s *StudentService) Upload(ctx context.Context, filename string, content io.Reader) (UploadResult, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile(UploadFieldName, filepath.Base(filename))
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return UploadResult{}, fmt.Errorf("failed to read upload file: %w", err)
	}
	if err := form.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("failed to build upload form: %w", err)
	}

	body, err := s.client.do(ctx, http.MethodPost, StudentUploadPath, StudentUploadPath, &buf, form.FormDataContentType())
	if err != nil {
		return UploadResult{}, err
	}

	var result UploadResult
	if err := json.Unmarshal(body, &result); err != nil {
		return UploadResult{}, fmt.Errorf("failed to decode upload response: %w", err)
	}
	return result, nil
}
