package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/nexuslabs/nexus/internal/tool"
)

// handleListTools returns every registered tool, built-in and plugin alike.
func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.registry.List()})
}

// handleListPlugins returns only the plugin-backed tools.
func (s *Server) handleListPlugins(w http.ResponseWriter, _ *http.Request) {
	plugins := []tool.Description{}
	for _, d := range s.registry.List() {
		if strings.HasPrefix(d.ID, tool.PluginIDPrefix) {
			plugins = append(plugins, d)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"plugins": plugins})
}

// handleRegisterPlugin registers an external tool from a manifest. Requires
// the admin bearer token.
func (s *Server) handleRegisterPlugin(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}

	var manifest tool.Manifest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&manifest); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	id, err := s.registry.RegisterPlugin(manifest, s.pluginClient)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// handleUnregisterPlugin removes a plugin by id. The path segment may carry
// the bare manifest id or the namespaced registry key.
func (s *Server) handleUnregisterPlugin(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}

	id := strings.TrimPrefix(r.PathValue("id"), tool.PluginIDPrefix)
	if !s.registry.UnregisterPlugin(id) {
		writeError(w, http.StatusNotFound, "plugin not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
