package server

import "net/http"

// NewRouter wires HTTP routes to the server's handlers.
func NewRouter(s *Server) (http.Handler, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/inspect", s.handleInspect)
	mux.HandleFunc("/schema", s.handleSchema)
	mux.HandleFunc("/rows", s.handleRows)
	mux.HandleFunc("/validate", s.handleValidate)
	mux.HandleFunc("/manifest", s.handleManifest)
	mux.HandleFunc("/profiles", s.handleProfiles)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/artifacts/", s.handleArtifactDownload)
	ui, err := newUIHandler()
	if err != nil {
		return nil, err
	}
	mux.Handle("/", ui)
	return mux, nil
}
