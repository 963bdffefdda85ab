// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/ManuGH/pagecast/internal/log"
	"github.com/ManuGH/pagecast/internal/metrics"
)

// secureFileServer serves playlists and segments from the sessions root with
// checks against path traversal, symlink escapes and directory listing.
// Receivers poll this surface continuously, so denied requests are counted
// rather than only logged.
func (s *Server) secureFileServer() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.WithComponent("api")

		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			metrics.IncFileRequestDenied("method_not_allowed")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		path := r.URL.Path
		if isPathTraversal(path) {
			logger.Warn().
				Str(log.FieldEvent, "file_req.denied").
				Str(log.FieldPath, path).
				Msg("detected traversal sequence")
			metrics.IncFileRequestDenied("path_escape")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if path == "" || strings.HasSuffix(path, "/") {
			metrics.IncFileRequestDenied("directory_listing")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		absRoot, err := filepath.Abs(s.cfg.SessionsDir)
		if err != nil {
			metrics.IncFileRequestDenied("internal_error")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		fullPath := filepath.Join(absRoot, path)
		realPath, err := filepath.EvalSymlinks(fullPath)
		if err != nil {
			if os.IsNotExist(err) {
				metrics.IncFileRequestDenied("not_found")
				http.Error(w, "Not found", http.StatusNotFound)
				return
			}
			metrics.IncFileRequestDenied("internal_error")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		realRoot, err := filepath.EvalSymlinks(absRoot)
		if err != nil {
			metrics.IncFileRequestDenied("internal_error")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		rel, err := filepath.Rel(realRoot, realPath)
		if err != nil || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
			logger.Warn().
				Str(log.FieldEvent, "file_req.denied").
				Str(log.FieldPath, path).
				Str("resolved_path", realPath).
				Msg("path escapes sessions directory")
			metrics.IncFileRequestDenied("path_escape")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		f, err := os.Open(realPath) // #nosec G304 -- realPath is contained in the sessions root
		if err != nil {
			metrics.IncFileRequestDenied("internal_error")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		defer func() { _ = f.Close() }()

		info, err := f.Stat()
		if err != nil {
			metrics.IncFileRequestDenied("internal_error")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if info.IsDir() {
			metrics.IncFileRequestDenied("directory_listing")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		// Weak validator from modtime and size; playlists rewrite in place and
		// must never be served stale from a cache.
		etag := fmt.Sprintf(`W/"%x-%x"`, info.ModTime().UnixNano(), info.Size())
		w.Header().Set("ETag", etag)

		name := strings.ToLower(info.Name())
		switch {
		case strings.HasSuffix(name, ".m3u8"):
			w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
			w.Header().Set("Cache-Control", "no-cache")
		case strings.HasSuffix(name, ".ts"):
			w.Header().Set("Content-Type", "video/mp2t")
			w.Header().Set("Cache-Control", "public, max-age=60")
		}

		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	})
}

// isPathTraversal decodes the input multiple times to catch double-encoding,
// applies Unicode normalization, and searches for dangerous sequences
// including NULs.
func isPathTraversal(p string) bool {
	decoded := p
	for i := 0; i < 3; i++ {
		prev := decoded
		if d, err := url.PathUnescape(decoded); err == nil {
			decoded = d
		} else if d2, err2 := url.QueryUnescape(decoded); err2 == nil {
			decoded = d2
		}
		if decoded == prev {
			break
		}
	}

	lower := strings.ToLower(decoded)
	for _, pat := range []string{
		"..",
		"..\\",
		"%00",
		"%c0%ae",
		"%e0%80%ae",
	} {
		if strings.Contains(lower, pat) {
			return true
		}
	}
	if strings.IndexByte(decoded, 0x00) >= 0 {
		return true
	}

	normalized := strings.ToLower(norm.NFC.String(decoded))
	return strings.Contains(normalized, "..")
}
