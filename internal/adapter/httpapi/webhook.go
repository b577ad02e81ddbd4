package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/heatwatch/wbgt-alert-service/internal/adapter/lineworks"
	"github.com/heatwatch/wbgt-alert-service/internal/domain"
)

const greetingText = "This bot delivers daily heat-stress alerts for your region.\n" +
	"Save your region and alert level in the settings screen to start receiving them."

// TextSender delivers a plain text message to one chat user.
type TextSender interface {
	SendText(ctx context.Context, domainID, userID, text string) error
}

// callbackEvent is the platform's webhook body. Only the source block is
// needed to address the reply.
type callbackEvent struct {
	Type   string `json:"type"`
	Source struct {
		UserID   string          `json:"userId"`
		DomainID json.RawMessage `json:"domainId"` // number or string depending on event
	} `json:"source"`
}

func (e callbackEvent) domainID() string {
	var asString string
	if err := json.Unmarshal(e.Source.DomainID, &asString); err == nil {
		return asString
	}
	var asNumber int64
	if err := json.Unmarshal(e.Source.DomainID, &asNumber); err == nil {
		return strconv.FormatInt(asNumber, 10)
	}
	return ""
}

// handleCallback receives bot events. The request must name the configured
// bot and carry a valid body signature; a valid event gets a greeting
// reply.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Works-Botid") != s.botID {
		writeError(w, http.StatusBadRequest, "unknown bot id")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body failed")
		return
	}

	bot, err := s.bots.BotInfo(r.Context(), s.botID)
	if err != nil {
		s.logger.Error("load bot info failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if bot == nil {
		s.logger.Error("bot info missing", "bot_id", s.botID)
		writeError(w, http.StatusInternalServerError, "bot not registered")
		return
	}

	if bot.Secret != "" && !lineworks.ValidateSignature(body, r.Header.Get("X-Works-Signature"), bot.Secret) {
		s.logger.Warn("callback signature mismatch, ignoring")
		writeJSON(w, http.StatusOK, map[string]string{})
		return
	}

	var event callbackEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	domainID := event.domainID()
	if event.Source.UserID == "" || domainID == "" {
		writeError(w, http.StatusBadRequest, "event without source")
		return
	}

	if err := s.greeter.SendText(r.Context(), domainID, event.Source.UserID, greetingText); err != nil {
		s.logger.Error("greeting reply failed",
			"user_id", event.Source.UserID, "domain_id", domainID, "error", err)
		writeError(w, http.StatusInternalServerError, "reply failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{})
}

// handleInstallUpdate upserts the tenant installation record from the
// platform's install headers.
func (s *Server) handleInstallUpdate(w http.ResponseWriter, r *http.Request) {
	domainID := r.Header.Get("Works-Domain-Id")
	serviceAccount := r.Header.Get("Works-Install-Service-Account-Id")
	version := r.Header.Get("Ver")

	if domainID == "" {
		writeError(w, http.StatusBadRequest, "missing works-domain-id header")
		return
	}

	app := domain.InstalledApp{
		DomainID:       domainID,
		ServiceAccount: serviceAccount,
		Version:        version,
	}
	if err := s.apps.PutInstalledApp(r.Context(), app); err != nil {
		s.logger.Error("store installed app failed", "domain_id", domainID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("app installed", "domain_id", domainID, "ver", version)
	writeJSON(w, http.StatusOK, map[string]string{})
}

// handleUninstall removes everything tied to the tenant: the installation
// record, its access token, and all of its subscriber settings.
func (s *Server) handleUninstall(w http.ResponseWriter, r *http.Request) {
	domainID := r.Header.Get("Works-Domain-Id")
	if domainID == "" {
		writeError(w, http.StatusBadRequest, "missing works-domain-id header")
		return
	}

	if err := s.apps.DeleteInstalledApp(r.Context(), domainID); err != nil {
		s.logger.Error("delete installed app failed", "domain_id", domainID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := s.tokens.DeleteAccessToken(r.Context(), domainID); err != nil {
		s.logger.Error("delete access token failed", "domain_id", domainID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := s.subscribers.DeleteSubscribersByDomain(r.Context(), domainID); err != nil {
		s.logger.Error("delete tenant subscribers failed", "domain_id", domainID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("app uninstalled", "domain_id", domainID)
	writeJSON(w, http.StatusOK, map[string]string{})
}
