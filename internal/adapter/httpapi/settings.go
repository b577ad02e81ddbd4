package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/heatwatch/wbgt-alert-service/internal/domain"
)

type settingRequest struct {
	DomainID      string `json:"domain_id"`
	RegionKey     string `json:"region_key"`
	AlertLevelKey string `json:"alert_level_key"`
}

func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	setting, err := s.subscribers.Subscriber(r.Context(), userID)
	if err != nil {
		s.logger.Error("load subscriber setting failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if setting == nil {
		writeError(w, http.StatusNotFound, "no setting for user")
		return
	}
	writeJSON(w, http.StatusOK, setting)
}

func (s *Server) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	var req settingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.DomainID == "" {
		writeError(w, http.StatusBadRequest, "domain_id is required")
		return
	}

	region, err := s.regions.Region(r.Context(), req.RegionKey)
	if err != nil {
		s.logger.Error("load region failed", "region_key", req.RegionKey, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if region == nil {
		writeError(w, http.StatusBadRequest, "unknown region_key")
		return
	}

	level, err := s.levels.AlertLevel(r.Context(), req.AlertLevelKey)
	if err != nil {
		s.logger.Error("load alert level failed", "alert_level_key", req.AlertLevelKey, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if level == nil {
		writeError(w, http.StatusBadRequest, "unknown alert_level_key")
		return
	}

	setting := domain.SubscriberSetting{
		UserID:        userID,
		DomainID:      req.DomainID,
		RegionKey:     req.RegionKey,
		AlertLevelKey: req.AlertLevelKey,
	}
	if err := s.subscribers.PutSubscriber(r.Context(), setting); err != nil {
		s.logger.Error("store subscriber setting failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("subscriber setting saved",
		"user_id", userID, "region_key", req.RegionKey, "alert_level_key", req.AlertLevelKey)
	writeJSON(w, http.StatusOK, setting)
}

func (s *Server) handleDeleteSetting(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	if err := s.subscribers.DeleteSubscriber(r.Context(), userID); err != nil {
		s.logger.Error("delete subscriber setting failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := s.regions.Regions(r.Context())
	if err != nil {
		s.logger.Error("list regions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, regions)
}

func (s *Server) handleListLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := s.levels.AlertLevels(r.Context())
	if err != nil {
		s.logger.Error("list alert levels failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, levels)
}
