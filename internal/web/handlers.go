package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/beatmaps/internal/core"
	"github.com/JonMunkholm/beatmaps/internal/store"
)

// VersionResponse is the API representation of a stored map version.
type VersionResponse struct {
	VersionID    int64                    `json:"version_id"`
	MapID        int64                    `json:"map_id"`
	Hash         string                   `json:"hash"`
	Uploaded     time.Time                `json:"uploaded"`
	Score        *int16                   `json:"score"`
	Difficulties []core.DifficultySummary `json:"difficulties"`
}

func toVersionResponse(v store.VersionDetail) VersionResponse {
	out := VersionResponse{
		VersionID:    v.ID,
		MapID:        v.MapID,
		Hash:         v.Hash,
		Uploaded:     v.Uploaded,
		Score:        v.Score,
		Difficulties: make([]core.DifficultySummary, 0, len(v.Difficulties)),
	}
	for _, d := range v.Difficulties {
		out.Difficulties = append(out.Difficulties, core.NewDifficultySummary(d.Stats))
	}
	return out
}

// parseMapID reads the {mapID} path parameter.
func parseMapID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "mapID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// handleUploadArchive extracts an uploaded map archive. The multipart part is
// used as an io.ReaderAt directly; entries are never buffered whole.
func (s *Server) handleUploadArchive(w http.ResponseWriter, r *http.Request) {
	mapID, ok := parseMapID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "REQ001", "invalid map id")
		return
	}

	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, core.ErrUploadTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "REQ002", "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, core.ErrNoFile)
		return
	}
	defer file.Close()

	ctx := withUploader(r.Context(), r)
	result, err := s.service.ProcessArchive(ctx, mapID, file, header.Size)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// handleGetVersion returns one version by content hash.
func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	if len(hash) != 40 {
		writeError(w, http.StatusBadRequest, "REQ003", "hash must be 40 hex characters")
		return
	}

	v, err := s.service.Version(r.Context(), hash)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toVersionResponse(*v))
}

// handleMapVersions lists every version of a map, newest first.
func (s *Server) handleMapVersions(w http.ResponseWriter, r *http.Request) {
	mapID, ok := parseMapID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "REQ001", "invalid map id")
		return
	}

	versions, err := s.service.MapVersions(r.Context(), mapID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	out := make([]VersionResponse, 0, len(versions))
	for _, v := range versions {
		out = append(out, toVersionResponse(v))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleUploadStatus reports the upload limiter state.
func (s *Server) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.UploadLimiterStatus())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
