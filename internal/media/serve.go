package media

import (
	"errors"
	"net/http"
	"strings"
)

// Handler serves stored files. It expects the mount prefix to be stripped
// already, so r.URL.Path is the stored name.
func (s *DiskStore) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		name := strings.TrimPrefix(r.URL.Path, "/")
		if name == "" || strings.HasSuffix(name, "/") {
			http.NotFound(w, r)
			return
		}

		f, err := s.Open(name)
		if err != nil {
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidName) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "failed to read file", http.StatusInternalServerError)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", ContentType(name))
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	})
}
