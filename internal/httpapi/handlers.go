package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"PriceOptimizer/internal/identity"
	"PriceOptimizer/internal/model"
	"PriceOptimizer/internal/optimizer"
)

const maxBodyBytes = 64 << 10

const internalMessage = "Something went wrong. Please try again later."

type optimizationRequest struct {
	Name           string `json:"optimization_name"`
	CostFunction   string `json:"cost_function"`
	DemandFunction string `json:"demand_function"`
}

type optimizationInfo struct {
	Name           string  `json:"optimization_name"`
	OptimalPrice   float64 `json:"optimal_price"`
	CostFunction   string  `json:"cost_function"`
	DemandFunction string  `json:"demand_function"`
	MaxProfit      float64 `json:"max_profit"`
	GraphImageURL  string  `json:"graph_image_url"`
	ProfitFunction string  `json:"profit_function"`
	Verified       bool    `json:"verified"`
}

type optimizationResult struct {
	OptimalPrice       float64 `json:"optimal_price"`
	MaxProfit          float64 `json:"max_profit"`
	ProfitFunction     string  `json:"profit_function"`
	DerivativeFunction string  `json:"derivative_function"`
	Verified           bool    `json:"verified"`
}

type statusOutput struct {
	StatusCode int    `json:"status_code"`
	Detail     string `json:"detail"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ownerHandler func(w http.ResponseWriter, r *http.Request, ownerID string)

// auth resolves the bearer token before calling next.
func (s *Server) auth(next ownerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, fmt.Errorf("%w: missing bearer token", identity.ErrUnauthorized))
			return
		}
		owner, err := s.ids.Resolve(strings.TrimSpace(token))
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r, owner)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Backend is running",
		"status":  "ok",
		"app":     s.cfg.AppName,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, owner string) {
	req, err := decodeRequest(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.svc.Create(r.Context(), owner, req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, statusOutput{http.StatusCreated, "Optimization created successfully."})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, owner string) {
	recs, err := s.svc.List(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]optimizationRequest, 0, len(recs))
	for _, rec := range recs {
		out = append(out, optimizationRequest{
			Name:           rec.Name,
			CostFunction:   rec.CostFunction,
			DemandFunction: rec.DemandFunction,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, owner string) {
	rec, err := s.svc.Get(r.Context(), owner, r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, optimizationInfo{
		Name:           rec.Name,
		OptimalPrice:   rec.OptimalPrice,
		CostFunction:   rec.CostFunction,
		DemandFunction: rec.DemandFunction,
		MaxProfit:      rec.MaxProfit,
		GraphImageURL:  rec.ChartURL,
		ProfitFunction: rec.ProfitFunction,
		Verified:       rec.Verified,
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, owner string) {
	req, err := decodeRequest(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.svc.Update(r.Context(), owner, r.PathValue("name"), req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusOutput{http.StatusOK, "Optimization updated successfully"})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, owner string) {
	if err := s.svc.Delete(r.Context(), owner, r.PathValue("name")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusOutput{http.StatusOK, "Optimization deleted successfully"})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request, _ string) {
	req, err := decodeRequest(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	_, res, err := s.svc.Compute(r.Context(), req.CostFunction, req.DemandFunction)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, optimizationResult{
		OptimalPrice:       res.OptimalPrice,
		MaxProfit:          res.MaxProfit,
		ProfitFunction:     res.ProfitFunction,
		DerivativeFunction: res.DerivativeFunction,
		Verified:           res.Verified,
	})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	key, ok := strings.CutSuffix(r.PathValue("file"), ".png")
	if !ok {
		http.NotFound(w, r)
		return
	}
	f, err := s.charts.Open(r.PathValue("owner"), key)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Debug("chart open failed", "owner", r.PathValue("owner"), "key", key, "err", err)
		}
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (model.Request, error) {
	var body optimizationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		return model.Request{}, fmt.Errorf("%w: decode body: %v", optimizer.ErrInvalidRequest, err)
	}
	return model.Request{
		Name:           strings.TrimSpace(body.Name),
		CostFunction:   body.CostFunction,
		DemandFunction: body.DemandFunction,
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	code, status := optimizer.Code(err)
	msg := err.Error()
	if code == optimizer.CodeInternal {
		slog.Error("request failed", "err", err)
		msg = internalMessage
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: msg}})
}
