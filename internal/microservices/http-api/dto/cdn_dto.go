package dto

import "mooshihub/internal/microservices/http-api/service"

// UploadResponse: response payload after a successful upload
type UploadResponse struct {
	Message string             `json:"message"`
	File    service.StoredFile `json:"file"`
}

// FileListResponse: files stored under the caller's key
type FileListResponse struct {
	Owner string               `json:"owner"`
	Files []service.StoredFile `json:"files"`
	Total int                  `json:"total"`
}
