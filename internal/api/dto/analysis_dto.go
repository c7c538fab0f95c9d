package dto

import "github.com/cuongbtq/audio-analysis-proxy/internal/domain"

// PollRequest is bound from the query string. Credential is an alias of UserToken.
type PollRequest struct {
	JobID      string `form:"jobId"`
	UserToken  string `form:"userToken"`
	Credential string `form:"credential"`
}

// FileDTO echoes the uploaded file's metadata
type FileDTO struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// SubmitResponse is returned once the upstream accepted the upload
type SubmitResponse struct {
	Success     bool    `json:"success"`
	Status      string  `json:"status"`
	JobStatus   string  `json:"jobStatus"`
	JobID       string  `json:"jobId"`
	JobIDSource string  `json:"jobIdSource"`
	Message     string  `json:"message"`
	File        FileDTO `json:"file"`
}

// PollResponse reports one reconciled poll. Error and Details are set only for ERROR.
type PollResponse struct {
	Success bool                   `json:"success"`
	Status  string                 `json:"status"`
	JobID   string                 `json:"jobId"`
	Message string                 `json:"message,omitempty"`
	Result  *domain.AnalysisResult `json:"result,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Details string                 `json:"details,omitempty"`
}

// ErrorResponse is the body of every non-poll failure
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
