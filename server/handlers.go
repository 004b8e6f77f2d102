package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"ttmlkit/config"
	"ttmlkit/core/pipeline"
	"ttmlkit/logger"
	"ttmlkit/model"
)

// APIHandler holds dependencies for HTTP handlers.
type APIHandler struct {
	cfg *config.Config
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(cfg *config.Config) *APIHandler {
	return &APIHandler{cfg: cfg}
}

// convertRequest 是 /api/convert 的请求体。
type convertRequest struct {
	Content          string `json:"content"`
	TimingMode       string `json:"timingMode,omitempty"`
	Compact          bool   `json:"compact,omitempty"`
	Strict           bool   `json:"strict,omitempty"`
	Smooth           bool   `json:"smooth,omitempty"`
	SkipValidation   bool   `json:"skipValidation,omitempty"`
	MainLang         string `json:"mainLang,omitempty"`
	TranslationLang  string `json:"translationLang,omitempty"`
	RomanizationLang string `json:"romanizationLang,omitempty"`
}

type convertResponse struct {
	Output   string              `json:"output"`
	Warnings []string            `json:"warnings"`
	Metadata map[string][]string `json:"metadata"`
}

type validateRequest struct {
	Content string `json:"content"`
}

type validateResponse struct {
	Valid      bool                `json:"valid"`
	Violations []string            `json:"violations"`
	Warnings   []string            `json:"warnings"`
	Metadata   map[string][]string `json:"metadata"`
}

type errorResponse struct {
	Error      string   `json:"error"`
	Violations []string `json:"violations,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("写入响应失败", logger.ErrorField(err))
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, errorResponse{Error: message})
}

func (h *APIHandler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "请求体不是有效的 JSON: "+err.Error())
		return false
	}
	return true
}

// ConvertHandler 处理 POST /api/convert。
func (h *APIHandler) ConvertHandler(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.Content == "" {
		respondWithError(w, http.StatusBadRequest, "content 字段不能为空")
		return
	}

	opts := pipeline.Options{
		Parse: model.ParseOptions{
			DefaultMainLang:         h.cfg.DefaultMainLang,
			DefaultTranslationLang:  h.cfg.DefaultTranslationLang,
			DefaultRomanizationLang: h.cfg.DefaultRomanizationLang,
		},
		Generate: model.GenerateOptions{
			TimingMode:          model.TimingMode(req.TimingMode),
			Format:              !req.Compact,
			MainLang:            req.MainLang,
			TranslationLang:     req.TranslationLang,
			RomanizationLang:    req.RomanizationLang,
			StrictPlatformRules: req.Strict,
		},
		SkipValidation: req.SkipValidation,
	}
	if req.Smooth {
		smoothing := model.SmoothingOptions{
			Factor:              h.cfg.SmoothingFactor,
			DurationThresholdMs: h.cfg.SmoothingDurThresholdMs,
			GapThresholdMs:      h.cfg.SmoothingGapThresholdMs,
			Iterations:          h.cfg.SmoothingIterations,
		}
		opts.Smoothing = &smoothing
	}

	result, err := pipeline.Convert(req.Content, opts)
	if err != nil {
		var vErr *pipeline.ValidationError
		if errors.As(err, &vErr) {
			respondWithJSON(w, http.StatusUnprocessableEntity, errorResponse{
				Error:      "歌词验证未通过",
				Violations: vErr.Violations,
			})
			return
		}
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, convertResponse{
		Output:   result.Output,
		Warnings: result.Warnings,
		Metadata: result.Metadata,
	})
}

// ValidateHandler 处理 POST /api/validate。
func (h *APIHandler) ValidateHandler(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.Content == "" {
		respondWithError(w, http.StatusBadRequest, "content 字段不能为空")
		return
	}

	result, err := pipeline.Check(req.Content, model.ParseOptions{
		DefaultMainLang:         h.cfg.DefaultMainLang,
		DefaultTranslationLang:  h.cfg.DefaultTranslationLang,
		DefaultRomanizationLang: h.cfg.DefaultRomanizationLang,
	})
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, validateResponse{
		Valid:      len(result.Violations) == 0,
		Violations: result.Violations,
		Warnings:   result.Warnings,
		Metadata:   result.Metadata,
	})
}

// HealthHandler 处理 GET /api/health。
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
