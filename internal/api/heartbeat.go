package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/kiosk-fleet-core/internal/device"
	"github.com/nerrad567/kiosk-fleet-core/internal/telemetry"
)

// heartbeatIDKeys are the body keys a display may carry its id under,
// in order of preference.
var heartbeatIDKeys = []string{"device", "deviceId", "id"}

// handleHeartbeat records a display's telemetry.
//
// The body is {device, ...telemetry}. Unknown devices get {ok: false}
// with a 200 so an unpaired display keeps running quietly; a malformed
// id is a client bug and gets invalid-device. The server clock stamps the
// heartbeat.
func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	id := device.NormalizeID(heartbeatID(body))
	if id == "" {
		s.writeDomainError(w, r, device.ErrInvalidDevice)
		return
	}

	ok, err := s.recorder.Touch(r.Context(), id, s.now(), telemetry.ExtractPayload(body))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if !ok {
		s.logger.Debug("heartbeat from unknown device", "device_id", id)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": ok})
}

func heartbeatID(body map[string]any) string {
	for _, key := range heartbeatIDKeys {
		if s, ok := body[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
