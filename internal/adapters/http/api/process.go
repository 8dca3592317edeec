package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/tapdin/planner/internal/domain/content"
	"github.com/tapdin/planner/internal/domain/errs"
	"github.com/tapdin/planner/pkg/logger"
)

// ProcessHandler serves /api/process: submit, list and delete plans.
type ProcessHandler struct {
	deps           Dependencies
	maxUploadBytes int64
	logger         logger.Logger
}

// NewProcessHandler creates a new process handler.
func NewProcessHandler(deps Dependencies, maxUploadBytes int64, l logger.Logger) *ProcessHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	if l == nil {
		l = logger.Nop()
	}
	return &ProcessHandler{deps: deps, maxUploadBytes: maxUploadBytes, logger: l}
}

// HandleProcess dispatches on the request method.
func (h *ProcessHandler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleList(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	default:
		methodNotAllowed(w, "GET, POST, DELETE")
	}
}

// handlePost handles POST /api/process. ?persist=false returns the record
// instead of storing it.
func (h *ProcessHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in, err := h.readInput(w, r)
	if err != nil {
		h.logger.Debug(ctx, "submission body over size cap",
			logger.Int("max_upload_bytes", int(h.maxUploadBytes)), logger.Error(err))
		writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
		return
	}
	persist := r.URL.Query().Get("persist") != "false"

	res, err := h.deps.Process(ctx, in, persist)
	if err != nil {
		status, msg := processFailure(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error(ctx, "processing submission failed",
				logger.Error(err),
				logger.String("class", errs.KindOf(err).String()),
			)
		}
		writeError(w, status, msg)
		return
	}

	if !persist {
		writeJSON(w, http.StatusOK, res.Record)
		return
	}
	writeJSON(w, http.StatusCreated, successResponse{Success: true, ID: res.ID})
}

// readInput pulls the url field and image file out of the form. A body that
// cannot be parsed yields an empty input, which the pipeline rejects. The
// only error returned is the body exceeding the upload cap.
func (h *ProcessHandler) readInput(w http.ResponseWriter, r *http.Request) (content.Input, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	err := r.ParseMultipartForm(h.maxUploadBytes)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return content.Input{}, err
	}
	if err != nil {
		h.logger.Debug(r.Context(), "unreadable submission body", logger.Error(err))
		return content.Input{}, nil
	}

	in := content.Input{URL: strings.TrimSpace(r.PostFormValue("url"))}
	if r.MultipartForm == nil {
		return in, nil
	}
	files := r.MultipartForm.File["image"]
	if len(files) == 0 {
		return in, nil
	}
	image, err := readFile(files[0])
	if err != nil {
		h.logger.Debug(r.Context(), "unreadable image part", logger.Error(err))
		return in, nil
	}
	in.Image = image
	in.ImageName = files[0].Filename
	return in, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// handleList handles GET /api/process.
func (h *ProcessHandler) handleList(w http.ResponseWriter, r *http.Request) {
	plans, err := h.deps.List(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "listing plans failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, msgFetchFailed)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

type deleteRequest struct {
	ID string `json:"id"`
}

// handleDelete handles DELETE /api/process with a {"id": ...} body.
func (h *ProcessHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidID)
		return
	}

	if err := h.deps.Delete(r.Context(), strings.TrimSpace(req.ID)); err != nil {
		status, msg := deleteFailure(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error(r.Context(), "deleting plan failed", logger.Error(err), logger.String("id", req.ID))
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
