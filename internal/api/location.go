package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/xkilldash9x/sorteando-crawler/internal/store"
)

type locationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id"`
	Updated bool   `json:"updated"`
}

func (s *Server) handleSaveLocation(w http.ResponseWriter, r *http.Request) {
	var loc store.DeviceLocation
	if !s.decode(w, r, schemaLocation, &loc) {
		return
	}

	s.logger.Debug("Location received.",
		zap.String("device", loc.DeviceName),
		zap.String("latitude", loc.Latitude),
		zap.String("longitude", loc.Longitude),
		zap.String("timestamp", loc.Timestamp))

	id, updated, err := s.deps.Locations.SaveLocation(r.Context(), loc)
	if err != nil {
		s.logger.Error("Failed to save location.", zap.String("device", loc.DeviceName), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Erro ao salvar localização no banco de dados")
		return
	}

	status, msg := http.StatusCreated, "Localização criada com sucesso"
	if updated {
		status, msg = http.StatusOK, "Localização atualizada com sucesso"
	}
	s.respondJSON(w, status, locationResponse{Success: true, Message: msg, ID: id, Updated: updated})
}
