package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/MimeLyc/skill-translator/internal/cache"
	"github.com/MimeLyc/skill-translator/internal/service"
	"github.com/MimeLyc/skill-translator/pkg/log"
)

type optionsPayload struct {
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	// Comments inside code blocks are never translated; the flag is
	// accepted for client compatibility.
	TranslateCodeComments bool `json:"translate_code_comments"`
	ForceRefresh          bool `json:"force_refresh"`
}

func (p *optionsPayload) options() service.Options {
	if p == nil {
		return service.Options{}
	}
	if p.TranslateCodeComments {
		log.Debug("translate_code_comments requested; code blocks are left untouched")
	}
	return service.Options{
		SourceLanguage: p.SourceLanguage,
		TargetLanguage: p.TargetLanguage,
		ForceRefresh:   p.ForceRefresh,
	}
}

type translateRequest struct {
	Content     string          `json:"content"`
	Path        string          `json:"path"`
	ContentHash string          `json:"content_hash"`
	Options     *optionsPayload `json:"options,omitempty"`
}

type translateResponse struct {
	Content        string         `json:"content"`
	ContentHash    string         `json:"content_hash"`
	TranslatedHash string         `json:"translated_hash"`
	Cached         bool           `json:"cached"`
	Metadata       cache.Metadata `json:"metadata"`
	Warnings       []string       `json:"warnings,omitempty"`
}

func newTranslateResponse(res *service.Result) translateResponse {
	return translateResponse{
		Content:        base64.StdEncoding.EncodeToString([]byte(res.Content)),
		ContentHash:    res.ContentHash,
		TranslatedHash: res.TranslatedHash,
		Cached:         res.Cached,
		Metadata:       res.Metadata,
		Warnings:       res.Warnings,
	}
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req translateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeError(w, service.ErrInvalidInput, "path is required")
		return
	}
	content, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		writeError(w, service.ErrInvalidInput, "content is not valid base64")
		return
	}

	res, err := s.pipeline.Translate(r.Context(), service.Document{
		Path:        req.Path,
		Content:     content,
		ContentHash: req.ContentHash,
	}, req.Options.options())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTranslateResponse(res))
}

type batchFile struct {
	Path        string `json:"path"`
	Content     string `json:"content"`
	ContentHash string `json:"content_hash"`
}

type batchRequest struct {
	Files      []batchFile     `json:"files"`
	Options    *optionsPayload `json:"options,omitempty"`
	SkipCached *bool           `json:"skip_cached,omitempty"`
}

type batchFileResult struct {
	Path           string          `json:"path"`
	Success        bool            `json:"success"`
	Status         string          `json:"status"`
	Content        string          `json:"content,omitempty"`
	ContentHash    string          `json:"content_hash"`
	TranslatedHash string          `json:"translated_hash,omitempty"`
	Cached         bool            `json:"cached"`
	Metadata       *cache.Metadata `json:"metadata,omitempty"`
	Warnings       []string        `json:"warnings,omitempty"`
	ErrorKind      string          `json:"error_kind,omitempty"`
	Error          string          `json:"error,omitempty"`
}

type batchResponse struct {
	Results          []batchFileResult `json:"results"`
	TotalFiles       int               `json:"total_files"`
	Successful       int               `json:"successful"`
	CachedCount      int               `json:"cached_count"`
	Failed           int               `json:"failed"`
	ProcessingTimeMs float64           `json:"processing_time_ms"`
}

func (s *Server) handleTranslateBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req batchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	skipCached := true
	if req.SkipCached != nil {
		skipCached = *req.SkipCached
	}

	items := make([]service.BatchItem, len(req.Files))
	for i, f := range req.Files {
		items[i].Document = service.Document{Path: f.Path, ContentHash: f.ContentHash}
		content, err := base64.StdEncoding.DecodeString(f.Content)
		if err != nil {
			items[i].DecodeErr = fmt.Errorf("content is not valid base64: %w", err)
			continue
		}
		items[i].Content = content
	}

	out := s.pipeline.TranslateBatch(r.Context(), items, skipCached, req.Options.options())

	resp := batchResponse{
		Results:          make([]batchFileResult, len(out.Results)),
		TotalFiles:       out.TotalFiles,
		Successful:       out.Successful,
		CachedCount:      out.CachedCount,
		Failed:           out.Failed,
		ProcessingTimeMs: float64(out.ProcessingTime.Microseconds()) / 1000,
	}
	for i, item := range out.Results {
		fr := batchFileResult{
			Path:        item.Path,
			Success:     item.Succeeded(),
			Status:      item.State.String(),
			ContentHash: item.ContentHash,
		}
		if item.Result != nil {
			tr := newTranslateResponse(item.Result)
			fr.Content = tr.Content
			fr.ContentHash = tr.ContentHash
			fr.TranslatedHash = tr.TranslatedHash
			fr.Cached = tr.Cached
			fr.Metadata = &tr.Metadata
			fr.Warnings = tr.Warnings
		}
		if item.Err != nil {
			fr.ErrorKind = service.KindOf(item.Err).String()
			fr.Error = service.MessageOf(item.Err)
		}
		resp.Results[i] = fr
	}
	writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status             string `json:"status"`
	Version            string `json:"version"`
	CacheConnected     bool   `json:"cache_connected"`
	ProviderConfigured bool   `json:"provider_configured"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:             "healthy",
		Version:            s.version,
		CacheConnected:     s.pipeline.CacheConnected(r.Context()),
		ProviderConfigured: s.providerConfigured,
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	stats, err := s.pipeline.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type clearResponse struct {
	Removed     int64  `json:"removed"`
	ExpiredOnly bool   `json:"expired_only"`
	Message     string `json:"message"`
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}
	expiredOnly := false
	if v := r.URL.Query().Get("expired_only"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, service.ErrInvalidInput, "expired_only must be true or false")
			return
		}
		expiredOnly = parsed
	}
	s.clearCache(w, r, expiredOnly)
}

func (s *Server) handleCacheClearExpired(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}
	s.clearCache(w, r, true)
}

func (s *Server) clearCache(w http.ResponseWriter, r *http.Request, expiredOnly bool) {
	removed, err := s.pipeline.Purge(r.Context(), expiredOnly)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	msg := fmt.Sprintf("Removed %d cache entries", removed)
	if expiredOnly {
		msg = fmt.Sprintf("Removed %d expired cache entries", removed)
	}
	log.Info("%s", msg)
	writeJSON(w, http.StatusOK, clearResponse{Removed: removed, ExpiredOnly: expiredOnly, Message: msg})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, service.ErrInvalidInput, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "skill-translator",
		"version": s.version,
		"endpoints": []string{
			"POST /api/translate",
			"POST /api/translate/batch",
			"GET /api/health",
			"GET /api/cache/stats",
			"DELETE /api/cache",
			"DELETE /api/cache/expired",
			"GET /metrics",
		},
	})
}

// decodeJSON reads a size-limited JSON body into v, writing the error
// response itself when it fails.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, service.ErrInvalidInput, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, service.ErrInvalidInput, "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// writeError writes {"error", "kind"}. The status follows the kind unless
// one is given.
func writeError(w http.ResponseWriter, kind service.ErrorKind, msg string, status ...int) {
	code := kind.HTTPStatus()
	if len(status) > 0 {
		code = status[0]
	}
	writeJSON(w, code, errorResponse{Error: msg, Kind: kind.String()})
}

func writeServiceError(w http.ResponseWriter, err error) {
	kind := service.KindOf(err)
	msg := service.MessageOf(err)
	if kind == service.ErrInternal {
		log.Error("Request failed: %v", err)
	}
	writeError(w, kind, msg)
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, service.ErrInvalidInput, "method not allowed", http.StatusMethodNotAllowed)
}
