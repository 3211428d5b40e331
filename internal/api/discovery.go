package api

import (
	"net/http"

	"github.com/nerrad567/gray-logic-avr/internal/discovery"
)

// handleDiscovery runs an SSDP scan and returns the devices that answered.
// The scan blocks for the configured discovery timeout.
func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	if s.scanner == nil {
		writeUnavailable(w, "discovery disabled")
		return
	}

	devices, err := s.scanner.Scan(r.Context())
	if err != nil {
		s.logger.Warn("discovery scan failed", "error", err)
		writeInternalError(w, "discovery scan failed")
		return
	}
	if devices == nil {
		devices = []discovery.Device{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}
