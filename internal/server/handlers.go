package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/rshade/archcost/internal/diagram"
	"github.com/rshade/archcost/internal/estimate"
	"github.com/rshade/archcost/internal/generate"
	"github.com/rshade/archcost/internal/normalize"
	"github.com/rshade/archcost/internal/pricing"
	"github.com/rshade/archcost/internal/resource"
)

// GenerationUnavailableNote is added to an estimate when an architecture could
// not be generated for a free-text-only request.
const GenerationUnavailableNote = "architecture generation unavailable, estimate based on free text only"

// EstimateResponse is the /estimate result.
type EstimateResponse struct {
	Diagram            string            `json:"diagram"`
	InfrastructureCode string            `json:"infrastructureCode"`
	CostEstimate       estimate.Estimate `json:"costEstimate"`
}

type architectureRequest struct {
	AppName string `json:"app_name"`
	Prompt  string `json:"prompt"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	TraceID string `json:"trace_id"`
}

// defaultSKUFields names the catalog field /catalog matches sku against when
// the caller gives none.
var defaultSKUFields = map[resource.Provider]string{
	resource.ProviderAzure: "armSkuName",
	resource.ProviderAWS:   "instanceType",
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var in normalize.Input
	if !s.decode(w, r, &in) {
		return
	}

	var generationFailed bool
	if s.deps.Architect != nil && strings.TrimSpace(in.FreeText) != "" &&
		strings.TrimSpace(in.DiagramSource) == "" && strings.TrimSpace(in.IaCSource) == "" {
		art, err := s.deps.Architect.Architecture(r.Context(), "", in.FreeText)
		if err != nil {
			generationFailed = true
			s.logger.Warn().
				Str("trace_id", traceID(r.Context())).
				Err(err).
				Msg("architecture generation failed, continuing with free text")
		} else {
			in.DiagramSource = art.Diagram
			in.IaCSource = art.Terraform
		}
	}
	if strings.TrimSpace(in.DiagramSource) != "" {
		in.DiagramSource = diagram.Sanitize(generate.StripFences(in.DiagramSource))
	}

	items := s.deps.Normalizer.Normalize(r.Context(), in)
	est := s.deps.Estimator.Price(r.Context(), items)
	if generationFailed {
		est.Notes = append(est.Notes, GenerationUnavailableNote)
	}

	s.writeJSON(w, r, http.StatusOK, EstimateResponse{
		Diagram:            in.DiagramSource,
		InfrastructureCode: in.IaCSource,
		CostEstimate:       est,
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	provider := resource.ProviderAzure
	if raw := params.Get("provider"); raw != "" {
		p, ok := resource.ParseProvider(raw)
		if !ok {
			s.writeError(w, r, http.StatusBadRequest, "INVALID_PROVIDER", fmt.Sprintf("unknown provider %q", raw))
			return
		}
		provider = p
	}
	service := strings.TrimSpace(params.Get("service"))
	region := strings.TrimSpace(params.Get("region"))
	if service == "" || region == "" {
		s.writeError(w, r, http.StatusBadRequest, "MISSING_PARAMETER", "service and region are required")
		return
	}

	q := pricing.Query{Provider: provider, Service: service, Region: region}
	if sku := strings.TrimSpace(params.Get("sku")); sku != "" {
		field := strings.TrimSpace(params.Get("field"))
		if field == "" {
			field = defaultSKUFields[provider]
		}
		if field == "" {
			s.writeError(w, r, http.StatusBadRequest, "MISSING_PARAMETER", "field is required for this provider")
			return
		}
		q.Filters = map[string]string{field: sku}
	}

	records, err := s.deps.Catalog.Query(r.Context(), q)
	if err != nil {
		s.logger.Warn().
			Str("trace_id", traceID(r.Context())).
			Str("provider", string(provider)).
			Str("service", service).
			Err(err).
			Msg("catalog query failed")
		s.writeError(w, r, http.StatusBadGateway, "CATALOG_UNAVAILABLE", "price catalog unavailable")
		return
	}
	if records == nil {
		records = []pricing.Record{}
	}
	s.writeJSON(w, r, http.StatusOK, records)
}

func (s *Server) handleAzureArchitecture(w http.ResponseWriter, r *http.Request) {
	if s.deps.Architect == nil {
		s.writeError(w, r, http.StatusInternalServerError, "NOT_CONFIGURED", generate.ErrNotConfigured.Error())
		return
	}
	var req architectureRequest
	if !s.decode(w, r, &req) {
		return
	}

	art, err := s.deps.Architect.Architecture(r.Context(), req.AppName, req.Prompt)
	if err != nil {
		s.writeGenerationError(w, r, err)
		return
	}
	sanitized, err := diagram.SanitizeStrict(art.Diagram)
	if err != nil {
		s.writeError(w, r, http.StatusUnprocessableEntity, "INVALID_DIAGRAM", err.Error())
		return
	}
	art.Diagram = sanitized
	s.writeJSON(w, r, http.StatusOK, art)
}

func (s *Server) handleMockArchitecture(w http.ResponseWriter, r *http.Request) {
	p, ok := resource.ParseProvider(r.PathValue("provider"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	art, ok := generate.MockArtifacts(p)
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, r, http.StatusOK, art)
}

func (s *Server) writeGenerationError(w http.ResponseWriter, r *http.Request, err error) {
	var se *generate.StatusError
	switch {
	case errors.Is(err, generate.ErrNotConfigured):
		s.writeError(w, r, http.StatusInternalServerError, "NOT_CONFIGURED", err.Error())
	case errors.As(err, &se), errors.Is(err, generate.ErrEmptyArtifact):
		s.writeError(w, r, http.StatusBadGateway, "UPSTREAM_GENERATION_FAILED", err.Error())
	default:
		s.writeError(w, r, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", err.Error())
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "INVALID_BODY", fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().
			Str("trace_id", traceID(r.Context())).
			Err(err).
			Msg("Failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	id := traceID(r.Context())
	s.logger.Debug().
		Str("trace_id", id).
		Str("error_code", code).
		Int("status", status).
		Msg(msg)
	s.writeJSON(w, r, status, errorResponse{Error: msg, Code: code, TraceID: id})
}
