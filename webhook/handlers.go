package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/minios-linux/cmsl10n/cms"
	"github.com/minios-linux/cmsl10n/logging"
	"github.com/minios-linux/cmsl10n/pipeline"
	"github.com/minios-linux/cmsl10n/prsync"
)

// Payload is the CMS webhook body.
type Payload struct {
	Event     string         `json:"event"`
	Model     string         `json:"model"`
	UID       string         `json:"uid"`
	Entry     map[string]any `json:"entry"`
	CreatedAt string         `json:"createdAt"`
}

// Metadata converts the payload into reconciler metadata.
func (p Payload) Metadata() prsync.Metadata {
	meta := prsync.Metadata{Event: p.Event, Model: p.Model}
	if p.Entry != nil {
		if id, ok := p.Entry["l10nId"].(string); ok && id != "" {
			meta.EntryID = id
		} else if id, ok := p.Entry["id"]; ok && id != nil {
			meta.EntryID = fmt.Sprint(id)
		}
	}
	return meta
}

// SyncResponse is returned by the webhook endpoint.
type SyncResponse struct {
	Status string         `json:"status"`
	RunID  string         `json:"run_id"`
	Result *prsync.Result `json:"result,omitempty"`
}

// GenerateSignature returns the hex HMAC-SHA256 of payload.
func GenerateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature against payload. A "sha256=" prefix is
// accepted.
func VerifySignature(payload []byte, signature, secret string) bool {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	return hmac.Equal([]byte(strings.ToLower(signature)), []byte(GenerateSignature(payload, secret)))
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	runID := logging.NewRunID()
	ctx := logging.WithRunID(r.Context(), runID)
	log := logging.FromContext(ctx, s.log).With(zap.String("request_id", chimw.GetReqID(r.Context())))
	w.Header().Set("X-Run-ID", runID)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "reading body failed")
		return
	}

	if s.cfg.Secret != "" && !VerifySignature(body, r.Header.Get(SignatureHeader), s.cfg.Secret) {
		log.Warn("rejected webhook with bad signature", zap.String("remote", r.RemoteAddr))
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if p.Event == "" {
		writeError(w, http.StatusBadRequest, "missing event")
		return
	}

	log.Info("webhook received", zap.String("event", p.Event), zap.String("model", p.Model))
	res, err := s.runner.Run(ctx, p.Metadata())
	switch {
	case errors.Is(err, pipeline.ErrNoEntries):
		writeJSON(w, http.StatusOK, SyncResponse{Status: "skipped", RunID: runID})
	case err != nil:
		log.Error("sync failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "sync failed")
	default:
		writeJSON(w, http.StatusOK, SyncResponse{Status: "ok", RunID: runID, Result: res})
	}
}

func (s *Server) handleEntry(w http.ResponseWriter, r *http.Request) {
	l10nID := chi.URLParam(r, "l10nId")

	locale := r.URL.Query().Get("locale")
	if locale == "" {
		locale = s.cfg.SourceLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid locale")
		return
	}
	locale = tag.String()

	var resource []byte
	if locale != s.cfg.SourceLocale && s.cfg.TranslationPath != nil {
		resource, err = os.ReadFile(s.cfg.TranslationPath(locale))
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "no translations for "+locale)
			return
		}
		if err != nil {
			s.log.Error("reading translations failed", zap.String("locale", locale), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "reading translations failed")
			return
		}
	}

	out, err := s.runner.Localize(r.Context(), l10nID, resource)
	switch {
	case errors.Is(err, cms.ErrNotFound):
		writeError(w, http.StatusNotFound, "entry not found")
	case err != nil:
		s.log.Error("localizing entry failed", zap.String("l10n_id", l10nID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "fetching entry failed")
	default:
		w.Header().Set("Content-Language", locale)
		writeJSON(w, http.StatusOK, out)
	}
}
