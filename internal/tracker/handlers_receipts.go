package tracker

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"github.com/buildtrack/buildtrack-backend/internal/apperr"
	"github.com/buildtrack/buildtrack-backend/internal/export"
	"github.com/buildtrack/buildtrack-backend/internal/httputil"
	"github.com/buildtrack/buildtrack-backend/internal/receiptparser"
)

const (
	uploadField = "receipt"
	// TaskHeader carries the parse task id on upload and re-parse responses.
	TaskHeader = "X-Parse-Task-Id"
)

var (
	allowedExtensions = map[string]bool{".jpeg": true, ".jpg": true, ".png": true, ".pdf": true}
	allowedMediaTypes = map[string]bool{
		"image/jpeg":      true,
		"image/jpg":       true,
		"image/png":       true,
		"application/pdf": true,
	}
)

func (h *Handler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	receipts, err := h.store.ListReceipts(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, "ListReceipts", userID, err, "Failed to fetch receipts")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, receipts)
}

func (h *Handler) ownedReceipt(r *http.Request, userID string) (uuid.UUID, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return uuid.Nil, err
	}
	return id, h.authz.Receipt(r.Context(), userID, id)
}

// GetReceipt returns the receipt together with its parsed line items.
func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := h.ownedReceipt(r, userID)
	if err != nil {
		httputil.WriteError(w, r, "GetReceipt", chi.URLParam(r, "id"), err, "Failed to fetch receipt")
		return
	}

	receipt, err := h.store.GetReceipt(r.Context(), id, true)
	if err != nil {
		httputil.WriteError(w, r, "GetReceipt", id.String(), err, "Failed to fetch receipt")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, receipt)
}

func (h *Handler) UpdateReceipt(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := h.ownedReceipt(r, userID)
	if err != nil {
		httputil.WriteError(w, r, "UpdateReceipt", chi.URLParam(r, "id"), err, "Failed to update receipt")
		return
	}

	var req updateReceiptRequest
	if err := httputil.DecodeJSON(r, h.validate, &req); err != nil {
		httputil.WriteError(w, r, "UpdateReceipt", id.String(), err, "Failed to update receipt")
		return
	}
	c, err := req.changes()
	if err == nil {
		err = h.checkAssignment(r.Context(), userID, c)
	}
	if err != nil {
		httputil.WriteError(w, r, "UpdateReceipt", id.String(), err, "Failed to update receipt")
		return
	}

	receipt, err := h.store.UpdateReceipt(r.Context(), id, c)
	if err != nil {
		httputil.WriteError(w, r, "UpdateReceipt", id.String(), err, "Failed to update receipt")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, receipt)
}

// checkAssignment verifies the caller owns any project or contract a
// receipt is being assigned to.
func (h *Handler) checkAssignment(ctx context.Context, userID string, c changes) error {
	if projectID, ok := c["project_id"].(uuid.UUID); ok {
		if err := h.authz.Project(ctx, userID, projectID); err != nil {
			return err
		}
	}
	if contractID, ok := c["contract_id"].(uuid.UUID); ok {
		if err := h.authz.Contract(ctx, userID, contractID); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) DeleteReceipt(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := h.ownedReceipt(r, userID)
	if err != nil {
		httputil.WriteError(w, r, "DeleteReceipt", chi.URLParam(r, "id"), err, "Failed to delete receipt")
		return
	}

	if err := h.store.DeleteReceipt(r.Context(), id); err != nil {
		httputil.WriteError(w, r, "DeleteReceipt", id.String(), err, "Failed to delete receipt")
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Receipt deleted successfully")
}

func (h *Handler) ListReceiptLineItems(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := h.ownedReceipt(r, userID)
	if err != nil {
		httputil.WriteError(w, r, "ListReceiptLineItems", chi.URLParam(r, "id"), err, "Failed to fetch line items")
		return
	}

	items, err := h.store.ListReceiptLineItems(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, "ListReceiptLineItems", id.String(), err, "Failed to fetch line items")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

// UploadReceipt stores the file, creates a pending receipt and hands it to
// the parse queue. The response never waits for parsing.
func (h *Handler) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	log := hlog.FromRequest(r)

	// room for the multipart envelope and the small form fields
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+64<<10)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			httputil.WriteError(w, r, "UploadReceipt", "", apperr.Validation("upload exceeds %d bytes", h.maxUpload), "File too large")
			return
		}
		httputil.WriteError(w, r, "UploadReceipt", "", apperr.Validation("malformed upload: %v", err), "No file uploaded")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		httputil.WriteMessage(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	if header.Size > h.maxUpload {
		httputil.WriteError(w, r, "UploadReceipt", header.Filename, apperr.Validation("upload exceeds %d bytes", h.maxUpload), "File too large")
		return
	}
	mediaType, err := checkUploadType(header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		httputil.WriteError(w, r, "UploadReceipt", header.Filename, err, "Only images (jpeg, jpg, png) and PDFs are allowed")
		return
	}

	projectID, contractID, err := h.uploadAssignment(r, userID)
	if err != nil {
		httputil.WriteError(w, r, "UploadReceipt", header.Filename, err, "Failed to upload receipt")
		return
	}

	path, err := h.files.Save(r.Context(), header.Filename, mediaType, file)
	if err != nil {
		httputil.WriteError(w, r, "UploadReceipt", header.Filename, err, "Failed to upload receipt")
		return
	}

	receipt := Receipt{
		ProjectID:  projectID,
		ContractID: contractID,
		FileName:   header.Filename,
		FilePath:   path,
		Status:     ReceiptPending,
	}
	if err := h.store.CreateReceipt(r.Context(), &receipt); err != nil {
		if rmErr := h.files.Remove(context.WithoutCancel(r.Context()), path); rmErr != nil {
			log.Warn().Err(rmErr).Str("path", path).Msg("remove orphaned upload")
		}
		httputil.WriteError(w, r, "UploadReceipt", header.Filename, err, "Failed to upload receipt")
		return
	}

	taskID, err := h.queue.Submit(receiptparser.Job{ReceiptID: receipt.ID, FilePath: path})
	if err != nil {
		log.Error().Err(err).Str("receipt_id", receipt.ID.String()).Msg("submit parse task")
	} else {
		w.Header().Set(TaskHeader, taskID)
	}

	log.Info().Str("receipt_id", receipt.ID.String()).Str("task_id", taskID).
		Int64("bytes", header.Size).Msg("receipt uploaded")
	httputil.WriteJSON(w, http.StatusCreated, receipt)
}

// checkUploadType requires both the file extension and the declared content
// type to be one of jpeg, jpg, png or pdf.
func checkUploadType(name, contentType string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExtensions[ext] {
		return "", apperr.Validation("file extension %q not allowed", ext)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !allowedMediaTypes[strings.ToLower(mediaType)] {
		return "", apperr.Validation("content type %q not allowed", contentType)
	}
	return strings.ToLower(mediaType), nil
}

func (h *Handler) uploadAssignment(r *http.Request, userID string) (*uuid.UUID, *uuid.UUID, error) {
	projectRaw := strings.TrimSpace(r.FormValue("projectId"))
	contractRaw := strings.TrimSpace(r.FormValue("contractId"))

	projectID, err := parseOptionalUUID("projectId", &projectRaw)
	if err != nil {
		return nil, nil, err
	}
	contractID, err := parseOptionalUUID("contractId", &contractRaw)
	if err != nil {
		return nil, nil, err
	}
	if projectID != nil {
		if err := h.authz.Project(r.Context(), userID, *projectID); err != nil {
			return nil, nil, err
		}
	}
	if contractID != nil {
		if err := h.authz.Contract(r.Context(), userID, *contractID); err != nil {
			return nil, nil, err
		}
	}
	return projectID, contractID, nil
}

type parseTaskResponse struct {
	TaskID    string    `json:"taskId"`
	ReceiptID uuid.UUID `json:"receiptId"`
}

// ReparseReceipt queues another parse of a stored receipt. New line items are
// appended to any from earlier attempts.
func (h *Handler) ReparseReceipt(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := h.ownedReceipt(r, userID)
	if err != nil {
		httputil.WriteError(w, r, "ReparseReceipt", chi.URLParam(r, "id"), err, "Failed to queue parsing")
		return
	}

	receipt, err := h.store.GetReceipt(r.Context(), id, false)
	if err != nil {
		httputil.WriteError(w, r, "ReparseReceipt", id.String(), err, "Failed to queue parsing")
		return
	}
	taskID, err := h.queue.Submit(receiptparser.Job{ReceiptID: receipt.ID, FilePath: receipt.FilePath})
	if err != nil {
		httputil.WriteError(w, r, "ReparseReceipt", id.String(), err, "Failed to queue parsing")
		return
	}
	w.Header().Set(TaskHeader, taskID)
	httputil.WriteJSON(w, http.StatusAccepted, parseTaskResponse{TaskID: taskID, ReceiptID: receipt.ID})
}

func (h *Handler) ParseTaskStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	taskID := chi.URLParam(r, "taskId")
	status, found := h.queue.Status(taskID)
	if !found {
		httputil.WriteError(w, r, "ParseTaskStatus", taskID, apperr.NotFound("parse task", taskID), "Not found")
		return
	}
	if err := h.authz.Receipt(r.Context(), userID, status.ReceiptID); err != nil {
		httputil.WriteError(w, r, "ParseTaskStatus", taskID, err, "Failed to fetch parse task")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

// ExportReceipts streams the caller's visible receipts as an XLSX workbook.
func (h *Handler) ExportReceipts(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	rows, err := h.store.ExportRows(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, "ExportReceipts", userID, err, "Failed to export receipts")
		return
	}

	name := "receipts-" + time.Now().UTC().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	if err := export.WriteReceipts(w, rows); err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("op", "ExportReceipts").Msg("write workbook")
	}
}
