package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/nao1215/floorscan/internal/model"
	"github.com/nao1215/floorscan/internal/render"
)

// errTooLarge marks a body rejected by the upload size limit.
var errTooLarge = errors.New("upload exceeds size limit")

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	page, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, MessageInternalError, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if s.inFlight != nil {
		if !s.inFlight.TryAcquire(1) {
			http.Error(w, MessageBusy, http.StatusServiceUnavailable)
			return
		}
		defer s.inFlight.Release(1)
	}

	logger := s.logger.With("request_id", middleware.GetReqID(r.Context()))

	image, err := s.readUpload(w, r)
	if errors.Is(err, errTooLarge) {
		logger.Warn("upload rejected", "error", err)
		http.Error(w, MessageTooLarge, http.StatusRequestEntityTooLarge)
		return
	}
	if err != nil {
		// A malformed or non-multipart body carries no usable file.
		logger.Debug("no upload in request", "error", err)
	}

	extraction := model.NewExtraction(image)
	runErr := s.extractor.Execute(r.Context(), extraction)
	s.record(r.Context(), extraction)

	if runErr != nil {
		if model.IsClientError(runErr) {
			http.Error(w, MessageNoFile, http.StatusBadRequest)
			return
		}
		logger.Error("extraction failed",
			"id", extraction.ID,
			"step", extraction.FailedStep,
			"error", runErr,
		)
		http.Error(w, MessageInternalError, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := render.NewHTMLWriter(w).Write(extraction); err != nil {
		logger.Warn("failed to write response", "error", err)
	}
}

// readUpload returns the uploaded floor plan, or nil when the request
// carries none.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*model.UploadedImage, error) {
	if s.maxUploadSize > 0 {
		if r.ContentLength > s.maxUploadSize {
			return nil, fmt.Errorf("%w: %d bytes", errTooLarge, r.ContentLength)
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("%w: %w", errTooLarge, err)
		}
		return nil, err
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile(FormField)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return model.NewUploadedImage(header.Filename, header.Header.Get("Content-Type"), data), nil
}

// record saves the extraction on a context that outlives the request, so
// a client disconnect does not drop the history entry.
func (s *Server) record(ctx context.Context, extraction *model.Extraction) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.SaveExtraction(context.WithoutCancel(ctx), extraction); err != nil {
		s.logger.Warn("failed to record extraction", "id", extraction.ID, "error", err)
	}
}
