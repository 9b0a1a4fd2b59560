package web

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/coach/internal/core"
)

// multipartMemory is how much of a form is buffered before spilling to disk.
const multipartMemory = 32 << 20

// historyResponse lists ledger rows for one meet.
type historyResponse struct {
	MeetID  string               `json:"meetId"`
	Imports []core.ImportHistory `json:"imports"`
}

// latestResponse is the newest ledger row per dataset plus load flags.
type latestResponse struct {
	MeetID        string               `json:"meetId"`
	EntriesLoaded bool                 `json:"entriesLoaded"`
	ResultsLoaded bool                 `json:"resultsLoaded"`
	Imports       []core.ImportHistory `json:"imports"`
}

// timesResponse lists what the latest import of one dataset loaded.
type timesResponse struct {
	MeetID  string          `json:"meetId"`
	Dataset core.Dataset    `json:"dataset"`
	Times   []core.MeetTime `json:"times"`
}

// meetsResponse lists meets with results loaded.
type meetsResponse struct {
	Meets []core.Meet `json:"meets"`
}

type healthResponse struct {
	Status   string             `json:"status"`
	Database string             `json:"database,omitempty"`
	Imports  core.LimiterStatus `json:"imports"`
}

// handleImportEntries imports every "file" part of a multipart upload.
func (s *Server) handleImportEntries(w http.ResponseWriter, r *http.Request) {
	meetID := chi.URLParam(r, "meetID")

	files, err := s.parseUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	docs := make([]core.Document, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			s.respondError(w, r, &core.DocumentError{File: fh.Filename, Err: err})
			return
		}
		defer f.Close()
		docs = append(docs, core.Document{Name: fh.Filename, Reader: f})
	}

	result, err := s.service.ImportEntries(r.Context(), meetID, docs)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleImportResults imports one uploaded report, or fetches it when
// ?source=remote.
func (s *Server) handleImportResults(w http.ResponseWriter, r *http.Request) {
	meetID := chi.URLParam(r, "meetID")

	if r.URL.Query().Get("source") == "remote" {
		result, err := s.service.FetchResults(r.Context(), meetID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	files, err := s.parseUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if len(files) > 1 {
		s.respondError(w, r, &core.DocumentError{File: files[1].Filename, Err: errors.New("only one results file per request")})
		return
	}

	fh := files[0]
	f, err := fh.Open()
	if err != nil {
		s.respondError(w, r, &core.DocumentError{File: fh.Filename, Err: err})
		return
	}
	defer f.Close()

	result, err := s.service.ImportResults(r.Context(), meetID, core.Document{Name: fh.Filename, Reader: f})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// parseUpload reads the multipart form and returns its "file" parts.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) ([]*multipart.FileHeader, error) {
	maxSize := s.cfg.Import.MaxFileSize * maxUploadFiles
	if r.ContentLength > maxSize {
		return nil, &core.DocumentError{
			File: "request",
			Err:  fmt.Errorf("file too large: %w", &http.MaxBytesError{Limit: maxSize}),
		}
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, &core.DocumentError{File: "request", Err: fmt.Errorf("file too large: %w", err)}
		}
		return nil, &core.DocumentError{File: "request", Err: fmt.Errorf("invalid form: %w", err)}
	}

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		return nil, core.ErrNoDocuments
	}
	if len(files) > maxUploadFiles {
		return nil, &core.DocumentError{File: "request", Err: fmt.Errorf("at most %d files per request", maxUploadFiles)}
	}
	return files, nil
}

func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	meetID := chi.URLParam(r, "meetID")

	rows, err := s.service.History(r.Context(), meetID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if rows == nil {
		rows = []core.ImportHistory{}
	}
	writeJSON(w, http.StatusOK, historyResponse{MeetID: meetID, Imports: rows})
}

func (s *Server) handleLatestImports(w http.ResponseWriter, r *http.Request) {
	meetID := chi.URLParam(r, "meetID")

	rows, err := s.service.LatestImports(r.Context(), meetID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := latestResponse{MeetID: meetID, Imports: []core.ImportHistory{}}
	for _, h := range rows {
		switch h.Dataset {
		case core.DatasetEntries:
			resp.EntriesLoaded = true
		case core.DatasetResults:
			resp.ResultsLoaded = true
		}
		resp.Imports = append(resp.Imports, h)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleMeetTimes serves ?dataset=entries|results; entries is the default.
func (s *Server) handleMeetTimes(w http.ResponseWriter, r *http.Request) {
	meetID := chi.URLParam(r, "meetID")

	dataset := core.DatasetEntries
	if v := r.URL.Query().Get("dataset"); v != "" {
		var err error
		if dataset, err = core.ParseDataset(v); err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	rows, err := s.service.MeetTimes(r.Context(), meetID, dataset)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if rows == nil {
		rows = []core.MeetTime{}
	}
	writeJSON(w, http.StatusOK, timesResponse{MeetID: meetID, Dataset: dataset, Times: rows})
}

// handleMeetsWithResults lists meets with results, skipping ?except=.
func (s *Server) handleMeetsWithResults(w http.ResponseWriter, r *http.Request) {
	meets, err := s.service.MeetsWithResults(r.Context(), r.URL.Query().Get("except"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if meets == nil {
		meets = []core.Meet{}
	}
	writeJSON(w, http.StatusOK, meetsResponse{Meets: meets})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Imports: s.service.LimiterStatus()}
	status := http.StatusOK

	if s.deps.DB != nil {
		if err := s.deps.DB.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Database = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}
	writeJSON(w, status, resp)
}
