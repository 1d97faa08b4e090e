package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

var errNoFile = errors.New("no file provided")

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseBoolParam reports whether a query flag is set to a true value.
func parseBoolParam(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

// decodeJSON reads a size-capped JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

type importRequest struct {
	Path string `json:"path"`
}

// importSource resolves the file an import or preview request points at:
// either a multipart upload, spooled to disk, or a JSON {"path": ...} naming
// a file the server can read. The returned cleanup removes spooled files and
// must always be called. ok is false when a response was already written.
func (s *Server) importSource(w http.ResponseWriter, r *http.Request) (path string, cleanup func(), ok bool) {
	noop := func() {}

	if isMultipart(r) {
		path, cleanup, err := s.spoolUpload(w, r)
		switch {
		case errors.Is(err, errNoFile):
			respondBadRequest(w, r, "no file provided")
			return "", noop, false
		case err != nil:
			respondError(w, r, err)
			return "", noop, false
		}
		return path, cleanup, true
	}

	var req importRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, r, err.Error())
		return "", noop, false
	}
	req.Path = strings.TrimSpace(req.Path)
	if req.Path == "" {
		respondBadRequest(w, r, "path is required")
		return "", noop, false
	}
	if _, err := os.Stat(req.Path); err != nil {
		respondError(w, r, fmt.Errorf("open park file: %w", err))
		return "", noop, false
	}
	return req.Path, noop, true
}

// spoolUpload copies the multipart "file" field into its own directory under
// the upload dir, keeping the client's base file name.
func (s *Server) spoolUpload(w http.ResponseWriter, r *http.Request) (string, func(), error) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil, errNoFile
	}
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	defer file.Close()

	dir := filepath.Join(s.cfg.Import.UploadDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", nil, fmt.Errorf("create upload dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) {
		name = "parks.csv"
	}
	path := filepath.Join(dir, name)

	dst, err := os.Create(path)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("spool upload: %w", err)
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		cleanup()
		return "", nil, fmt.Errorf("spool upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("spool upload: %w", err)
	}
	return path, cleanup, nil
}
