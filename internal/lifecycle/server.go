package lifecycle

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/taskpulse/internal/api"
	"github.com/kazz187/taskpulse/internal/instance"
	"github.com/kazz187/taskpulse/pkg/cerr"
)

// Server exposes the Manager as JSON endpoints. Handlers report through
// cerr.SetJSONResponse and cerr.SetJSONError.
type Server struct {
	manager *Manager
}

func NewServer(manager *Manager) *Server {
	return &Server{manager: manager}
}

func (s *Server) Routes(r chi.Router) {
	r.Post("/api/instances", s.create)
	r.Get("/api/instances", s.list)
	r.Get("/api/instances/{id}", s.get)
	r.Delete("/api/instances/{id}", s.delete)
	r.Post("/api/instances/{id}/initialize", s.initialize)
	r.Post("/api/instances/{id}/start", s.start)
	r.Post("/api/instances/{id}/complete", s.complete)
	r.Post("/api/instances/{id}/cancel", s.cancel)
	r.Post("/api/instances/{id}/notes", s.appendNote)
}

type CreateResponse struct {
	InstanceID string `json:"instance_id"`
}

type AttributesRequest struct {
	Attributes instance.Attributes `json:"attributes"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
	Notes  string `json:"notes"`
}

type NoteRequest struct {
	Note string `json:"note"`
}

type ListResponse struct {
	Instances []*instance.TaskInstance `json:"instances"`
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := api.UserID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var req CreateRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	req.UserID = userID
	id, err := s.manager.Create(ctx, req)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, CreateResponse{InstanceID: id})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := api.UserID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	state, err := ParseListState(r.URL.Query().Get("state"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	since, err := api.QueryTime(r, "since")
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	list, err := s.manager.List(ctx, userID, state, since)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, ListResponse{Instances: list})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func(id, userID string) (*instance.TaskInstance, error) {
		return s.manager.Get(r.Context(), id, userID)
	})
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := api.UserID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := s.manager.Delete(ctx, chi.URLParam(r, "id"), userID); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponseWithStatus(ctx, http.StatusNoContent, nil)
}

func (s *Server) initialize(w http.ResponseWriter, r *http.Request) {
	var req AttributesRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	s.respond(w, r, func(id, userID string) (*instance.TaskInstance, error) {
		return s.manager.Initialize(r.Context(), id, userID, req.Attributes)
	})
}

func (s *Server) start(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func(id, userID string) (*instance.TaskInstance, error) {
		return s.manager.Start(r.Context(), id, userID)
	})
}

func (s *Server) complete(w http.ResponseWriter, r *http.Request) {
	var req AttributesRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	s.respond(w, r, func(id, userID string) (*instance.TaskInstance, error) {
		return s.manager.Complete(r.Context(), id, userID, req.Attributes)
	})
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	s.respond(w, r, func(id, userID string) (*instance.TaskInstance, error) {
		return s.manager.Cancel(r.Context(), id, userID, req.Reason, req.Notes)
	})
}

func (s *Server) appendNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	s.respond(w, r, func(id, userID string) (*instance.TaskInstance, error) {
		return s.manager.AppendNote(r.Context(), id, userID, req.Note)
	})
}

func (s *Server) respond(_ http.ResponseWriter, r *http.Request, fn func(id, userID string) (*instance.TaskInstance, error)) {
	ctx := r.Context()
	userID, err := api.UserID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := fn(chi.URLParam(r, "id"), userID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}
