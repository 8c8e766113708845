package server

import (
	"html/template"
	"log"
	"net/http"
	"path"
	"strings"
)

var viewerTemplate = template.Must(template.New("viewer").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Path}}</title></head>
<body>
<h3>{{.Path}}</h3>
<pre>{{.Content}}</pre>
</body>
</html>
`))

type viewerModel struct {
	Path    string
	Content string
}

// handleViewFile renders a workspace file as a static HTML page. The path
// must be absolute; traversal segments are rejected.
func (s *Server) handleViewFile(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("path")
	if location == "" || !strings.HasPrefix(location, "/") {
		http.Error(w, "path query parameter must be an absolute path", http.StatusBadRequest)
		return
	}
	if location != path.Clean(location) {
		http.Error(w, "path must not contain traversal segments", http.StatusBadRequest)
		return
	}
	data, err := s.fs.DownloadWithURL(r.Context(), location)
	if err != nil {
		http.Error(w, "unable to read "+location, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err = viewerTemplate.Execute(w, &viewerModel{Path: location, Content: string(data)}); err != nil {
		log.Printf("failed to render %v: %v", location, err)
	}
}
