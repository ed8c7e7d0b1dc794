package analytics

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/taskpulse/internal/api"
	"github.com/kazz187/taskpulse/internal/instance"
	"github.com/kazz187/taskpulse/pkg/cerr"
)

type Server struct {
	aggregator *Aggregator
}

func NewServer(aggregator *Aggregator) *Server {
	return &Server{aggregator: aggregator}
}

func (s *Server) Routes(r chi.Router) {
	r.Post("/api/instances/bulk", s.bulk)
	r.Get("/api/analytics/summary", s.summary)
	r.Post("/api/analytics/composite", s.composite)
	r.Post("/api/analytics/recompute", s.recompute)
}

type BulkRequest struct {
	InstanceIDs []string `json:"instance_ids"`
}

type BulkResponse struct {
	Instances map[string]*instance.TaskInstance `json:"instances"`
}

type CompositeRequest struct {
	Components map[string]float64 `json:"components"`
	Weights    map[string]float64 `json:"weights"`
}

func (s *Server) bulk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := api.UserID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var req BulkRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	found, err := s.aggregator.Loader().GetInstancesBulk(ctx, req.InstanceIDs, userID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, BulkResponse{Instances: found})
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := api.UserID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	summary, err := s.aggregator.Summary(ctx, userID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, summary)
}

func (s *Server) composite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CompositeRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	for name, v := range req.Components {
		if v < 0 || v > 100 {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "component "+name+" must be between 0 and 100", nil)
			return
		}
	}
	cerr.SetJSONResponse(ctx, CalculateCompositeScore(req.Components, req.Weights))
}

func (s *Server) recompute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := api.UserID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	res, err := s.aggregator.Recompute(ctx, userID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, res)
}
