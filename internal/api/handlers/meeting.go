package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rohits-web03/meetingvault/internal/api/middleware"
	"github.com/rohits-web03/meetingvault/internal/api/services"
	"github.com/rohits-web03/meetingvault/internal/models"
	"github.com/rohits-web03/meetingvault/internal/utils"
	"go.uber.org/zap"
)

const (
	// parts above this size are spooled to temporary files while parsing
	multipartMemory = 32 << 20
	downloadExpiry  = 15 * time.Minute
)

// DownloadLink is the data of a download response.
type DownloadLink struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

type MeetingHandler struct {
	svc       *services.MeetingService
	log       *zap.Logger
	maxUpload int64
}

func NewMeetingHandler(svc *services.MeetingService, log *zap.Logger, maxUpload int64) *MeetingHandler {
	return &MeetingHandler{
		svc:       svc,
		log:       log.Named("meeting.handler"),
		maxUpload: maxUpload,
	}
}

// POST /meetings/save-record/
// SaveRecord godoc
// @Summary Save a meeting record
// @Description Uploads the recording, summary and full transcript to S3 and stores the meeting metadata
// @Tags Meetings
// @Accept multipart/form-data
// @Produce json
// @Param company_name formData string true "Company name"
// @Param meeting_name formData string true "Meeting name"
// @Param meeting_datetime formData string true "Meeting start, ISO-8601 (2024-01-01T10:00:00Z)"
// @Param wav_file formData file true "Recording (audio/wav)"
// @Param summary_txt_file formData file true "Summary (text/plain)"
// @Param whole_meeting_txt_file formData file true "Full transcript (text/plain)"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 413 {object} utils.Payload
// @Failure 500 {object} utils.Payload
// @Router /meetings/save-record/ [post]
func (h *MeetingHandler) SaveRecord(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxUpload {
		tooLarge(w, h.maxUpload)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.badForm(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	in := services.CreateMeetingInput{
		CompanyName:     r.FormValue("company_name"),
		MeetingName:     r.FormValue("meeting_name"),
		MeetingDatetime: r.FormValue("meeting_datetime"),
	}
	var err error
	if in.Wav, err = readUpload(r, "wav_file"); err != nil {
		h.fail(w, r, err, "")
		return
	}
	if in.SummaryTxt, err = readUpload(r, "summary_txt_file"); err != nil {
		h.fail(w, r, err, "")
		return
	}
	if in.WholeMeetingTxt, err = readUpload(r, "whole_meeting_txt_file"); err != nil {
		h.fail(w, r, err, "")
		return
	}

	m, err := h.svc.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, "failed to save meeting record")
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/meetings/get-record/%d", m.ID))
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Message: "meeting record saved",
	})
}

// GET /meetings/get-record/{id}
// GetRecord godoc
// @Summary Get a meeting record
// @Tags Meetings
// @Produce json
// @Param id path int true "Meeting ID"
// @Success 200 {object} utils.DataPayload{data=models.Meeting}
// @Failure 400 {object} utils.Payload
// @Failure 404 {object} utils.DataPayload
// @Failure 500 {object} utils.Payload
// @Router /meetings/get-record/{id} [get]
func (h *MeetingHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}

	m, found, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "failed to read meeting record")
		return
	}
	if !found {
		utils.JSONResponse(w, http.StatusNotFound, utils.DataPayload{
			StatusCode: http.StatusNotFound,
			Message:    "meeting record not found",
			Data:       nil,
		})
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.DataPayload{
		Message: "meeting record retrieved",
		Data:    m,
	})
}

// GET /meetings/get-all-records/
// GetAllRecords godoc
// @Summary List all meeting records
// @Tags Meetings
// @Produce json
// @Success 200 {object} utils.DataPayload{data=[]models.Meeting}
// @Failure 500 {object} utils.Payload
// @Router /meetings/get-all-records/ [get]
func (h *MeetingHandler) GetAllRecords(w http.ResponseWriter, r *http.Request) {
	meetings, err := h.svc.List(r.Context())
	if err != nil {
		h.fail(w, r, err, "failed to read meeting records")
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.DataPayload{
		Message: "meeting records retrieved",
		Data:    meetings,
	})
}

// PUT /meetings/update-record/{id}
// UpdateRecord godoc
// @Summary Update meeting metadata
// @Description Only the supplied non-empty fields change; whitespace-only values are rejected. Stored files cannot be replaced.
// @Tags Meetings
// @Accept multipart/form-data
// @Accept x-www-form-urlencoded
// @Produce json
// @Param id path int true "Meeting ID"
// @Param company_name formData string false "Company name"
// @Param meeting_name formData string false "Meeting name"
// @Param meeting_datetime formData string false "Meeting start, ISO-8601"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Failure 500 {object} utils.Payload
// @Router /meetings/update-record/{id} [put]
func (h *MeetingHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.badForm(w, r, err)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	_, found, err := h.svc.Update(r.Context(), id, services.UpdateMeetingInput{
		CompanyName:     r.PostFormValue("company_name"),
		MeetingName:     r.PostFormValue("meeting_name"),
		MeetingDatetime: r.PostFormValue("meeting_datetime"),
	})
	if err != nil {
		h.fail(w, r, err, "failed to update meeting record")
		return
	}
	if !found {
		notFound(w)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		StatusCode: http.StatusOK,
		Message:    "meeting record updated",
	})
}

// DELETE /meetings/delete-record/{id}
// DeleteRecord godoc
// @Summary Delete a meeting record and its files
// @Tags Meetings
// @Produce json
// @Param id path int true "Meeting ID"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Failure 500 {object} utils.Payload
// @Router /meetings/delete-record/{id} [delete]
func (h *MeetingHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}

	deleted, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		msg := "failed to delete meeting record"
		switch {
		case deleted && isStorageFailure(err):
			msg = "meeting record deleted, but some of its files could not be removed from storage"
		case deleted:
			msg = "meeting record deleted, but resetting the id sequence failed"
		}
		h.fail(w, r, err, msg)
		return
	}
	if !deleted {
		notFound(w)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		StatusCode: http.StatusOK,
		Message:    "meeting record and files deleted",
	})
}

// DELETE /meetings/delete-all-records/
// DeleteAllRecords godoc
// @Summary Delete every meeting record and its files
// @Tags Meetings
// @Produce json
// @Success 200 {object} utils.Payload
// @Failure 500 {object} utils.Payload
// @Router /meetings/delete-all-records/ [delete]
func (h *MeetingHandler) DeleteAllRecords(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.DeleteAll(r.Context())
	if err != nil {
		msg := "failed to delete meeting records"
		switch {
		case n > 0 && isStorageFailure(err):
			msg = "meeting records deleted, but some files could not be removed from storage"
		case n > 0:
			msg = "meeting records deleted, but resetting the id sequence failed"
		}
		h.fail(w, r, err, msg)
		return
	}
	if n == 0 {
		utils.JSONResponse(w, http.StatusOK, utils.Payload{Message: "no meeting records to delete"})
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Message: "all meeting records and files deleted",
	})
}

// GET /meetings/get-record/{id}/download/{artifact}
// DownloadRecord godoc
// @Summary Get a temporary download link for a stored file
// @Tags Meetings
// @Produce json
// @Param id path int true "Meeting ID"
// @Param artifact path string true "File to download" Enums(wav, summary, whole)
// @Success 200 {object} utils.DataPayload{data=handlers.DownloadLink}
// @Failure 400 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Failure 500 {object} utils.Payload
// @Router /meetings/get-record/{id}/download/{artifact} [get]
func (h *MeetingHandler) DownloadRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}

	url, found, err := h.svc.DownloadURL(r.Context(), id, models.Artifact(r.PathValue("artifact")), downloadExpiry)
	if err != nil {
		h.fail(w, r, err, "failed to create download link")
		return
	}
	if !found {
		notFound(w)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.DataPayload{
		Message: "download link created",
		Data: DownloadLink{
			URL:       url,
			ExpiresIn: int(downloadExpiry.Seconds()),
		},
	})
}

// fail writes the error body. Validation and not-found errors carry their own
// message; everything else gets msg and is logged with the cause.
func (h *MeetingHandler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := statusFor(err)
	if status < http.StatusInternalServerError || msg == "" {
		msg = err.Error()
	}
	if status >= http.StatusInternalServerError {
		h.log.Error(msg,
			zap.String("request_id", middleware.RequestIDFrom(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	utils.JSONResponse(w, status, utils.Payload{
		StatusCode: status,
		Message:    msg,
	})
}

// badForm answers a failed form parse. The multipart reader does not always
// surface the limit error, so the body itself is asked once more.
func (h *MeetingHandler) badForm(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || bodyLimitHit(r.Body) {
		tooLarge(w, h.maxUpload)
		return
	}
	utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
		StatusCode: http.StatusBadRequest,
		Message:    "invalid form body",
	})
}

// bodyLimitHit reports whether a MaxBytesReader has already refused to read
// past its limit; it keeps returning that error on every later read.
func bodyLimitHit(body io.Reader) bool {
	if body == nil {
		return false
	}
	_, err := body.Read(make([]byte, 1))
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func tooLarge(w http.ResponseWriter, limit int64) {
	utils.JSONResponse(w, http.StatusRequestEntityTooLarge, utils.Payload{
		StatusCode: http.StatusRequestEntityTooLarge,
		Message:    fmt.Sprintf("request body exceeds %d bytes", limit),
	})
}

func isStorageFailure(err error) bool {
	return errors.Is(err, models.ErrStorageUnavailable) || errors.Is(err, models.ErrMalformedURL)
}

func notFound(w http.ResponseWriter) {
	utils.JSONResponse(w, http.StatusNotFound, utils.Payload{
		StatusCode: http.StatusNotFound,
		Message:    "meeting record not found",
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func pathID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 0)
	if err != nil || id == 0 {
		return 0, models.NewValidationError("id", "must be a positive integer")
	}
	return uint(id), nil
}

// readUpload reads one file part into memory. A missing part yields an empty
// Upload so the service reports it as a validation error.
func readUpload(r *http.Request, field string) (services.Upload, error) {
	f, fh, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return services.Upload{}, nil
	}
	if err != nil {
		return services.Upload{}, models.NewValidationError(field, "could not read file part")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return services.Upload{}, models.NewValidationError(field, "could not read file part")
	}
	return services.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
