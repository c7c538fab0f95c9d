package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cuongbtq/audio-analysis-proxy/internal/analysis"
	"github.com/cuongbtq/audio-analysis-proxy/internal/api/dto"
	"github.com/cuongbtq/audio-analysis-proxy/internal/domain"
	"github.com/gin-gonic/gin"
)

const (
	fileField       = "audio_file"
	credentialField = "user_token"

	msgSubmitted  = "Audio analysis requested. Poll for results using the jobId."
	msgNotReady   = "Analysis result is not_ready_yet. Please try again later."
	msgNoContent  = "Analysis result not found or in an unexpected format."
	msgUploadFail = "Failed to request audio analysis"
	msgSubmitErr  = "Internal server error during analysis request."
	msgFetchFail  = "Failed to fetch analysis result"
	msgParseFail  = "Failed to parse analysis result"
	msgPollErr    = "Internal server error while fetching result."
)

// Submit handles POST /api/audio-analysis
// Forwards the uploaded audio_file to the analysis service and returns a job id
func (h *AnalysisHandler) Submit(c *gin.Context) {
	fileHeader, err := c.FormFile(fileField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, dto.ErrorResponse{
				Error: fmt.Sprintf("audio_file exceeds the %d byte upload limit", tooLarge.Limit),
			})
			return
		}
		h.logger.Warn("Missing audio file", slog.String("error", err.Error()))
		h.writeSubmitError(c, domain.NewValidationError(fileField, "No audio_file provided"))
		return
	}

	credential := c.PostForm(credentialField)
	if credential == "" {
		credential = c.GetHeader(analysis.HeaderUserToken)
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", slog.String("error", err.Error()))
		h.writeSubmitError(c, fmt.Errorf("open uploaded file: %w", err))
		return
	}
	defer file.Close()

	res, err := h.submitter.Submit(c.Request.Context(), analysis.Submission{
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Body:        file,
		Credential:  credential,
	})
	if err != nil {
		h.writeSubmitError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SubmitResponse{
		Success:     true,
		Status:      "accepted",
		JobStatus:   res.Status.String(),
		JobID:       res.JobID,
		JobIDSource: string(res.JobIDSource),
		Message:     msgSubmitted,
		File: dto.FileDTO{
			Name: res.FileName,
			Type: res.ContentType,
			Size: res.Size,
		},
	})
}

func (h *AnalysisHandler) writeSubmitError(c *gin.Context, err error) {
	var (
		vErr  *domain.ValidationError
		upErr *domain.UploadError
	)

	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: vErr.Message})
	case errors.As(err, &upErr) && upErr.HTTPStatus >= http.StatusBadRequest:
		c.JSON(upErr.HTTPStatus, dto.ErrorResponse{Error: msgUploadFail, Details: upErr.Excerpt})
	case errors.As(err, &upErr) && upErr.HTTPStatus != 0:
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{Error: msgUploadFail, Details: upErr.Excerpt})
	default:
		details := err.Error()
		if upErr != nil && upErr.Cause != nil {
			details = upErr.Cause.Error()
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: msgSubmitErr, Details: details})
	}
}

// Poll handles GET /api/audio-analysis
// Queries the analysis service once and reports the reconciled job status
func (h *AnalysisHandler) Poll(c *gin.Context) {
	var req dto.PollRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid query parameters"})
		return
	}

	credential := firstNonEmpty(req.UserToken, req.Credential, c.GetHeader(analysis.HeaderUserToken))

	res, err := h.poller.Poll(c.Request.Context(), req.JobID, credential)
	if err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: vErr.Message})
			return
		}
		h.logger.Error("Poll failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: msgPollErr, Details: err.Error()})
		return
	}

	status, body := pollResponse(res)
	c.JSON(status, body)
}

// Preflight handles OPTIONS /api/audio-analysis
func (h *AnalysisHandler) Preflight(c *gin.Context) {
	c.AbortWithStatus(http.StatusNoContent)
}

func pollResponse(res *analysis.PollResult) (int, dto.PollResponse) {
	resp := dto.PollResponse{
		Success: true,
		Status:  res.Status.String(),
		JobID:   res.JobID,
	}

	switch res.Status {
	case domain.JobStatusProcessing:
		resp.Message = msgNotReady
		if res.Rule == analysis.RulePendingCode {
			resp.Message = fmt.Sprintf("Analysis is still in progress (%s). Please try again later.", res.Code)
		}
	case domain.JobStatusCompleted:
		resp.Result = res.Result
	case domain.JobStatusNoContent:
		resp.Message = msgNoContent
	case domain.JobStatusError:
		resp.Success = false
		return pollErrorStatus(res.Err), pollErrorBody(resp, res.Err)
	}

	return http.StatusOK, resp
}

func pollErrorStatus(err *domain.PollError) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	switch err.Kind {
	case domain.PollErrorUpstreamStatus:
		if err.HTTPStatus >= http.StatusBadRequest {
			return err.HTTPStatus
		}
		return http.StatusBadGateway
	case domain.PollErrorParseFailure, domain.PollErrorUpstreamCode:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func pollErrorBody(resp dto.PollResponse, err *domain.PollError) dto.PollResponse {
	if err == nil {
		resp.Error = msgPollErr
		return resp
	}

	resp.Details = err.Excerpt
	switch err.Kind {
	case domain.PollErrorUpstreamStatus:
		resp.Error = msgFetchFail
	case domain.PollErrorParseFailure:
		resp.Error = msgParseFail
	case domain.PollErrorUpstreamCode:
		resp.Error = fmt.Sprintf("Analysis service returned code %s", err.Code)
	default:
		resp.Error = msgPollErr
	}
	return resp
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
