package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/paratransit-relay/internal/lifecycle"
	"github.com/example/paratransit-relay/internal/models"
	"github.com/example/paratransit-relay/internal/observability"
	"github.com/example/paratransit-relay/internal/registry"
)

// Server is the HTTP surface: the websocket endpoint plus the thin
// administrative API that drives route lifecycle transitions.
type Server struct {
	Lifecycle *lifecycle.Service
	Registry  registry.Registry
	WS        http.Handler

	logger   *slog.Logger
	validate *validator.Validate
	mux      *mux.Router
}

func NewServer(lc *lifecycle.Service, reg registry.Registry, ws http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Lifecycle: lc,
		Registry:  reg,
		WS:        ws,
		logger:    logger,
		validate:  validator.New(),
		mux:       mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/routes", s.handleRequestRoute).Methods("POST")
	s.mux.HandleFunc("/api/v1/routes/schedule", s.handleSchedule).Methods("POST")
	s.mux.HandleFunc("/api/v1/routes/{id}", s.handleGetRoute).Methods("GET")
	s.mux.HandleFunc("/api/v1/routes/{id}/begin", s.transitionHandler(func(r *http.Request, id string) (*models.Route, error) {
		return s.Lifecycle.BeginTrip(r.Context(), id)
	})).Methods("POST")
	s.mux.HandleFunc("/api/v1/routes/{id}/pickup", s.transitionHandler(func(r *http.Request, id string) (*models.Route, error) {
		return s.Lifecycle.Pickup(r.Context(), id)
	})).Methods("POST")
	s.mux.HandleFunc("/api/v1/routes/{id}/complete", s.transitionHandler(func(r *http.Request, id string) (*models.Route, error) {
		return s.Lifecycle.Complete(r.Context(), id)
	})).Methods("POST")
	s.mux.HandleFunc("/api/v1/routes/{id}/missing", s.transitionHandler(func(r *http.Request, id string) (*models.Route, error) {
		return s.Lifecycle.MarkMissing(r.Context(), id)
	})).Methods("POST")
	s.mux.HandleFunc("/api/v1/routes/{id}/cancel", s.handleCancel).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.Handle("/ws", s.WS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleRequestRoute(w http.ResponseWriter, r *http.Request) {
	var in lifecycle.RequestInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(in); err != nil {
		writeError(w, http.StatusBadRequest, "student, pickup_location, dropoff_location and scheduled_pickup_time are required")
		return
	}
	route, err := s.Lifecycle.Request(r.Context(), in)
	if err != nil {
		s.writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, route)
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RouteID   string `json:"routeId"`
		DriverID  string `json:"driverId"`
		VehicleID string `json:"vehicleId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.RouteID == "" || in.DriverID == "" || in.VehicleID == "" {
		writeError(w, http.StatusBadRequest, "routeId, driverId, and vehicleId are required")
		return
	}
	route, err := s.Lifecycle.Schedule(r.Context(), in.RouteID, in.DriverID, in.VehicleID)
	if err != nil {
		s.writeLifecycleError(w, err)
		return
	}
	observability.TransitionsTotal.WithLabelValues(string(route.Status)).Inc()
	writeJSON(w, http.StatusOK, route)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	actor := models.UserTypeAdmin
	var in struct {
		Actor models.UserType `json:"actor"`
	}
	// Body is optional; an admin cancel needs no payload.
	if err := json.NewDecoder(r.Body).Decode(&in); err == nil && in.Actor != "" {
		switch in.Actor {
		case models.UserTypeDriver, models.UserTypeStudent, models.UserTypeAdmin:
			actor = in.Actor
		default:
			writeError(w, http.StatusBadRequest, "actor must be Driver, Student or Admin")
			return
		}
	}
	route, err := s.Lifecycle.Cancel(r.Context(), id, actor)
	if err != nil {
		s.writeLifecycleError(w, err)
		return
	}
	observability.TransitionsTotal.WithLabelValues(string(route.Status)).Inc()
	writeJSON(w, http.StatusOK, route)
}

func (s *Server) handleGetRoute(w http.ResponseWriter, r *http.Request) {
	route, err := s.Registry.GetRoute(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, route)
}

func (s *Server) transitionHandler(apply func(*http.Request, string) (*models.Route, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		route, err := apply(r, mux.Vars(r)["id"])
		if err != nil {
			s.writeLifecycleError(w, err)
			return
		}
		observability.TransitionsTotal.WithLabelValues(string(route.Status)).Inc()
		writeJSON(w, http.StatusOK, route)
	}
}

// writeLifecycleError maps domain errors to the boundary statuses the
// old API used: bad references 400, duplicates 409, and a single 404
// for "missing or wrong state" (the two are indistinguishable here).
func (s *Server) writeLifecycleError(w http.ResponseWriter, err error) {
	var refErr *lifecycle.ReferenceError
	switch {
	case errors.As(err, &refErr):
		writeError(w, http.StatusBadRequest, refErr.Error())
	case errors.Is(err, registry.ErrRouteExists):
		writeError(w, http.StatusConflict, "route already exists for this student and pickup time")
	case errors.Is(err, registry.ErrRouteNotFound):
		writeError(w, http.StatusNotFound, "route not found or not in an eligible state")
	default:
		s.logger.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
