// internal/handlers/upload_handler.go
package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"clientflow/internal/config"
	"clientflow/internal/interfaces"
	"clientflow/internal/models"
	"clientflow/internal/services"
)

// allowedUploadTypes mirrors the client-side allow-list. Advisory only:
// the presigned URL does not hard-enforce the content type server-side.
var allowedUploadTypes = map[string]bool{
	"image/jpeg":         true,
	"image/png":          true,
	"image/gif":          true,
	"image/webp":         true,
	"application/pdf":    true,
	"application/zip":    true,
	"video/mp4":          true,
	"video/quicktime":    true,
	"text/plain":         true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

type UploadHandler struct {
	milestones    interfaces.MilestoneRepository
	attachments   interfaces.AttachmentRepository
	s3Client      *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	presignTTL    time.Duration
	notifier      *services.Notifier
	validator     *validator.Validate
}

func NewUploadHandler(milestones interfaces.MilestoneRepository, attachments interfaces.AttachmentRepository, s3Config *config.S3Config, presignTTL time.Duration, notifier *services.Notifier) *UploadHandler {
	var presign *s3.PresignClient
	var client *s3.Client
	var bucket string
	if s3Config != nil {
		presign = s3Config.Presign
		client = s3Config.Client
		bucket = s3Config.Bucket
	}
	return &UploadHandler{
		milestones:    milestones,
		attachments:   attachments,
		s3Client:      client,
		presignClient: presign,
		bucket:        bucket,
		presignTTL:    presignTTL,
		notifier:      notifier,
		validator:     validator.New(),
	}
}

func deliverableKey(projectID, milestoneID, filename string) string {
	return "deliverables/" + projectID + "/" + milestoneID + "/" + uuid.NewString() + filepath.Ext(filename)
}

// Presign handles POST /uploads/presign
// @Tags Uploads
// @Summary Issue a presigned S3 URL for direct upload or download
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body models.PresignRequest true "Presign request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/uploads/presign [post]
func (h *UploadHandler) Presign(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFromContext(r)
	if !ok {
		writeJSONErrorResponse(w, http.StatusUnauthorized, "authentication_required", "Authentication required")
		return
	}

	var req models.PresignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	if req.Size > models.MaxUploadSizeBytes {
		writeJSONErrorResponse(w, http.StatusBadRequest, "file_too_large", "File exceeds the 20MB upload limit")
		return
	}
	if req.Mode == models.PresignModeWrite && !allowedUploadTypes[req.Type] {
		writeJSONErrorResponse(w, http.StatusBadRequest, "unsupported_file_type", "File type is not allowed")
		return
	}

	m, p, err := h.milestones.GetWithProject(r.Context(), req.MilestoneID)
	if err != nil {
		if err == sql.ErrNoRows {
			writeJSONErrorResponse(w, http.StatusNotFound, "milestone_not_found", "Milestone not found")
			return
		}
		log.Printf("Failed to resolve milestone %s: %v", req.MilestoneID, err)
		writeJSONErrorResponse(w, http.StatusInternalServerError, "presign_failed", "Failed to issue presigned URL")
		return
	}

	if !isProjectMember(p, ident) {
		writeJSONErrorResponse(w, http.StatusForbidden, "unauthorized", "Unauthorized access to milestone")
		return
	}

	if h.presignClient == nil {
		writeJSONErrorResponse(w, http.StatusInternalServerError, "storage_unavailable", "Object storage is not configured")
		return
	}

	now := time.Now().UTC()
	var signedURL, key string
	switch req.Mode {
	case models.PresignModeWrite:
		key = deliverableKey(p.ID, m.ID, req.Filename)
		out, err := h.presignClient.PresignPutObject(r.Context(), &s3.PutObjectInput{
			Bucket:      aws.String(h.bucket),
			Key:         aws.String(key),
			ContentType: aws.String(req.Type),
		}, s3.WithPresignExpires(h.presignTTL))
		if err != nil {
			log.Printf("Failed to presign PUT for %s: %v", key, err)
			writeJSONErrorResponse(w, http.StatusInternalServerError, "presign_failed", "Failed to issue presigned URL")
			return
		}
		signedURL = out.URL
	case models.PresignModeRead:
		key = req.Key
		// Read URLs are only issued for keys inside this milestone's prefix.
		if key == "" || !strings.HasPrefix(key, "deliverables/"+p.ID+"/"+m.ID+"/") {
			writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_key", "Key does not belong to this milestone")
			return
		}
		out, err := h.presignClient.PresignGetObject(r.Context(), &s3.GetObjectInput{
			Bucket: aws.String(h.bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(h.presignTTL))
		if err != nil {
			log.Printf("Failed to presign GET for %s: %v", key, err)
			writeJSONErrorResponse(w, http.StatusInternalServerError, "presign_failed", "Failed to issue presigned URL")
			return
		}
		signedURL = out.URL
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": models.PresignResponse{
			URL:       signedURL,
			Key:       key,
			ExpiresAt: now.Add(h.presignTTL),
			ExpiresIn: int64(h.presignTTL.Seconds()),
		},
	})
}

// RecordFiles handles POST /milestones/{id}/files
// @Tags Uploads
// @Summary Record uploaded deliverable files for a milestone
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Milestone ID"
// @Param body body models.RecordFilesRequest true "Uploaded files and notes"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/milestones/{id}/files [post]
func (h *UploadHandler) RecordFiles(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFromContext(r)
	if !ok {
		writeJSONErrorResponse(w, http.StatusUnauthorized, "authentication_required", "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", "Milestone ID is required")
		return
	}

	var req models.RecordFilesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	result, err := h.recordBatch(r, ident, id, req.Files, req.SubmissionNotes)
	if err != nil {
		mapLifecycleError(w, err, "record files for")
		return
	}

	message := "Files recorded"
	if result.MilestoneStatusUpdated {
		message = "Files recorded and milestone submitted for review"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": message,
		"data":    result,
	})
}

func (h *UploadHandler) recordBatch(r *http.Request, ident interfaces.Identity, milestoneID string, files []models.UploadedFile, notes string) (*models.RecordFilesResult, error) {
	result, err := h.attachments.RecordFiles(r.Context(), ident, milestoneID, files, notes)
	if err != nil {
		return nil, err
	}

	if result.MilestoneStatusUpdated && h.notifier != nil {
		if m, err := h.milestones.GetByID(r.Context(), milestoneID); err == nil {
			h.notifier.MilestoneSubmitted(m)
		} else {
			log.Printf("Failed to load milestone %s for notification: %v", milestoneID, err)
		}
	}

	return result, nil
}

// RelayUpload handles POST /milestones/{id}/upload: a server-side upload
// path for dashboard clients that do not use presigned URLs. Files stream
// through the API to S3; the batch may end mixed, and only the uploaded
// subset is recorded.
// @Tags Uploads
// @Summary Upload deliverable files through the API
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Milestone ID"
// @Param files formData file true "Deliverable files"
// @Param submission_notes formData string false "Submission notes"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/milestones/{id}/upload [post]
func (h *UploadHandler) RelayUpload(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFromContext(r)
	if !ok {
		writeJSONErrorResponse(w, http.StatusUnauthorized, "authentication_required", "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", "Milestone ID is required")
		return
	}

	const maxMemory = 32 << 20
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_request", "Failed to parse form")
		return
	}

	m, p, err := h.milestones.GetWithProject(r.Context(), id)
	if err != nil {
		if err == sql.ErrNoRows {
			writeJSONErrorResponse(w, http.StatusNotFound, "milestone_not_found", "Milestone not found")
			return
		}
		log.Printf("Failed to resolve milestone %s: %v", id, err)
		writeJSONErrorResponse(w, http.StatusInternalServerError, "upload_failed", "Failed to upload files")
		return
	}
	if !isProjectMember(p, ident) {
		writeJSONErrorResponse(w, http.StatusForbidden, "unauthorized", "Unauthorized access to milestone")
		return
	}

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", "No files uploaded")
		return
	}
	if h.s3Client == nil {
		writeJSONErrorResponse(w, http.StatusInternalServerError, "storage_unavailable", "Object storage is not configured")
		return
	}

	uploader := manager.NewUploader(h.s3Client)
	var outcomes []models.FileUploadOutcome
	var uploaded []models.UploadedFile

	for _, fh := range fileHeaders {
		outcome := models.FileUploadOutcome{Name: fh.Filename, Size: fh.Size}

		if fh.Size > models.MaxUploadSizeBytes {
			outcome.Error = "file exceeds the 20MB upload limit"
			outcomes = append(outcomes, outcome)
			continue
		}

		file, err := fh.Open()
		if err != nil {
			log.Printf("Failed to open file %s: %v", fh.Filename, err)
			outcome.Error = "failed to read file"
			outcomes = append(outcomes, outcome)
			continue
		}

		key := deliverableKey(p.ID, m.ID, fh.Filename)
		_, err = uploader.Upload(r.Context(), &s3.PutObjectInput{
			Bucket: aws.String(h.bucket),
			Key:    aws.String(key),
			Body:   file,
		})
		file.Close()

		if err != nil {
			log.Printf("Failed to upload file %s to S3: %v", fh.Filename, err)
			outcome.Error = "upload to storage failed"
			outcomes = append(outcomes, outcome)
			continue
		}

		outcome.Key = key
		outcomes = append(outcomes, outcome)
		uploaded = append(uploaded, models.UploadedFile{
			Key:  key,
			Name: fh.Filename,
			Size: fh.Size,
			Type: fh.Header.Get("Content-Type"),
		})
	}

	if len(uploaded) == 0 {
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"success": false,
			"error":   "upload_failed",
			"message": "Failed to upload any files",
			"files":   outcomes,
		})
		return
	}

	result, err := h.recordBatch(r, ident, id, uploaded, r.FormValue("submission_notes"))
	if err != nil {
		mapLifecycleError(w, err, "record files for")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Files uploaded",
		"data":    result,
		"files":   outcomes,
	})
}

// DeleteFiles handles DELETE /milestones/{id}/files
// @Tags Uploads
// @Summary Delete deliverable files from a milestone
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Milestone ID"
// @Param body body models.DeleteFilesRequest true "Storage keys to delete"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/milestones/{id}/files [delete]
func (h *UploadHandler) DeleteFiles(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFromContext(r)
	if !ok {
		writeJSONErrorResponse(w, http.StatusUnauthorized, "authentication_required", "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", "Milestone ID is required")
		return
	}

	var req models.DeleteFilesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	removed, err := h.attachments.DeleteFiles(r.Context(), ident, id, req.Keys)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeJSONErrorResponse(w, http.StatusNotFound, "attachment_not_found", "No deliverables found for this milestone")
			return
		}
		mapLifecycleError(w, err, "delete files for")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Files deleted",
		"data":    map[string]any{"deleted": removed},
	})
}

// GetAttachment handles GET /milestones/{id}/files
// @Tags Uploads
// @Summary Get the deliverable bundle of a milestone
// @Security BearerAuth
// @Produce json
// @Param id path string true "Milestone ID"
// @Success 200 {object} models.MediaAttachment
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/milestones/{id}/files [get]
func (h *UploadHandler) GetAttachment(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFromContext(r)
	if !ok {
		writeJSONErrorResponse(w, http.StatusUnauthorized, "authentication_required", "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", "Milestone ID is required")
		return
	}

	_, p, err := h.milestones.GetWithProject(r.Context(), id)
	if err != nil {
		if err == sql.ErrNoRows {
			writeJSONErrorResponse(w, http.StatusNotFound, "milestone_not_found", "Milestone not found")
			return
		}
		log.Printf("Failed to resolve milestone %s: %v", id, err)
		writeJSONErrorResponse(w, http.StatusInternalServerError, "get_attachment_failed", "Failed to get deliverables")
		return
	}
	if !isProjectMember(p, ident) {
		writeJSONErrorResponse(w, http.StatusForbidden, "unauthorized", "Unauthorized access to milestone")
		return
	}

	attachment, err := h.attachments.GetByMilestone(r.Context(), id)
	if err != nil {
		if err == sql.ErrNoRows {
			writeJSONErrorResponse(w, http.StatusNotFound, "attachment_not_found", "No deliverables found for this milestone")
			return
		}
		log.Printf("Failed to get attachment for milestone %s: %v", id, err)
		writeJSONErrorResponse(w, http.StatusInternalServerError, "get_attachment_failed", "Failed to get deliverables")
		return
	}

	writeJSON(w, http.StatusOK, attachment)
}
