package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/doctree/internal/filex"
	"github.com/dmitrijs2005/doctree/internal/server/models"
	"github.com/dmitrijs2005/doctree/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// Owner modes accepted in the "owners" form field of an upload.
const (
	PublicMode = "PublicMode"
	GroupMode  = "GroupMode"
)

// fileResponse is a file record with its preview hints.
type fileResponse struct {
	*models.FileRecord
	LinkPrefix string `json:"linkPrefix"`
	IconClass  string `json:"iconClass"`
}

func newFileResponse(f *models.FileRecord) fileResponse {
	return fileResponse{
		FileRecord: f,
		LinkPrefix: filex.LinkPrefix(f.ContentType),
		IconClass:  filex.IconClass(f.ContentType),
	}
}

func newFileResponses(fs []*models.FileRecord) []fileResponse {
	out := make([]fileResponse, 0, len(fs))
	for _, f := range fs {
		out = append(out, newFileResponse(f))
	}
	return out
}

func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	if err := r.ParseMultipartForm(h.UploadMemory); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidationError, "malformed multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidationError, "missing file part")
		return
	}
	defer file.Close()

	req := uploadRequest(r.MultipartForm, header)
	if req.DirectoryID == "" {
		WriteError(w, http.StatusBadRequest, CodeValidationError, "directoryId is required")
		return
	}

	rec, err := h.files.Upload(r.Context(), p, req, file)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newFileResponse(rec))
}

func uploadRequest(form *multipart.Form, header *multipart.FileHeader) services.UploadRequest {
	value := func(key string) string {
		if v := form.Value[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	req := services.UploadRequest{
		DirectoryID: value("directoryId"),
		CategoryID:  value("categoryId"),
		Filename:    header.Filename,
		ContentType: value("contentType"),
	}
	if req.ContentType == "" {
		req.ContentType = header.Header.Get("Content-Type")
	}
	if req.ContentType == "application/octet-stream" {
		req.ContentType = ""
	}
	if name := value("filename"); name != "" {
		req.Filename = name
	}
	for _, mode := range form.Value["owners"] {
		switch strings.TrimSpace(mode) {
		case PublicMode:
			req.PublicMode = true
		case GroupMode:
			req.GroupMode = true
		}
	}
	return req
}

func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	if err := h.files.Remove(r.Context(), p, chi.URLParam(r, "fileId")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteFileByName(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	q := r.URL.Query()
	directoryID, filename := q.Get("directoryId"), q.Get("filename")
	if directoryID == "" || filename == "" {
		WriteError(w, http.StatusBadRequest, CodeValidationError, "directoryId and filename are required")
		return
	}

	if err := h.files.RemoveByName(r.Context(), p, directoryID, filename); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FileContent streams the content of a file. Stored ids contain slashes and
// are expected path-escaped.
func (h *Handler) FileContent(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	storedID, err := url.PathUnescape(chi.URLParam(r, "storedId"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidationError, "malformed stored id")
		return
	}

	rec, rc, err := h.files.Open(r.Context(), p, storedID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", rec.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(rec.SizeBytes, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", rec.Filename))
	w.WriteHeader(http.StatusOK)

	if _, err := copyWithContext(r.Context(), w, rc); err != nil {
		h.logger.Warn(r.Context(), "content stream interrupted", "stored_id", storedID, "error", err)
	}
}

func (h *Handler) FileURL(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	link, err := h.files.DownloadURL(r.Context(), p, chi.URLParam(r, "fileId"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": link})
}

type renameRequest struct {
	Filename string `json:"filename"`
}

func (h *Handler) RenameFile(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidationError, "malformed JSON body")
		return
	}

	rec, err := h.files.Rename(r.Context(), p, chi.URLParam(r, "fileId"), req.Filename)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newFileResponse(rec))
}

func (h *Handler) SearchFiles(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	found, err := h.files.Search(r.Context(), p, r.URL.Query().Get("q"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newFileResponses(found))
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func copyWithContext(ctx context.Context, w io.Writer, r io.Reader) (int64, error) {
	return io.Copy(w, contextReader{ctx: ctx, r: r})
}

// countingWriter tells whether anything reached the client.
type countingWriter struct {
	w http.ResponseWriter
	n int64
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.n += int64(n)
	return n, err
}

func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	q := r.URL.Query()
	directoryID := q.Get("directoryId")
	if directoryID == "" {
		WriteError(w, http.StatusBadRequest, CodeValidationError, "directoryId is required")
		return
	}

	dir, err := h.dirs.Lookup(r.Context(), directoryID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dir.Path+".zip"))

	cw := &countingWriter{w: w}
	stats, err := h.archives.Build(r.Context(), dir.ID, q.Get("categoryId"), p, cw)
	switch {
	case err == nil:
	case r.Context().Err() != nil:
		h.logger.Warn(r.Context(), "archive aborted, client gone", "directory", dir.Path, "error", err)
		return
	case cw.n == 0:
		w.Header().Del("Content-Disposition")
		h.writeServiceError(w, r, err)
		return
	default:
		// the status line is gone already; cut the connection so the client
		// sees a failed transfer rather than a short archive
		h.logger.Error(r.Context(), "archive failed mid-stream", "directory", dir.Path, "bytes", cw.n, "error", err)
		panic(http.ErrAbortHandler)
	}
	h.logger.Debug(r.Context(), "archive sent", "directory", dir.Path, "entries", stats.Entries)
}
