// Package api serves the controller's admin HTTP interface.
package api

import (
	"Go2NetSDN/internal/engine/manager"
	"Go2NetSDN/internal/l2"
	"Go2NetSDN/internal/model"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// Controller is the part of the manager the API reads and drives.
type Controller interface {
	Switches() []model.Switch
	Forwarding(dpid model.DatapathID) ([]l2.Entry, error)
	Blocked() ([]model.Identity, error)
	Block(id model.Identity) (bool, error)
	Unblock(id model.Identity) (bool, error)
}

const apiPrefix = "/api/v1"

// Server is the admin HTTP server.
type Server struct {
	ctl    Controller
	router *mux.Router
	server *http.Server
}

type switchView struct {
	DPID        string         `json:"dpid"`
	Ports       []model.PortNo `json:"ports"`
	State       string         `json:"state"`
	ConnectedAt time.Time      `json:"connected_at"`
}

type blockRequest struct {
	Kind  model.IdentityKind `json:"kind"`
	Value string             `json:"value"`
}

type blockResponse struct {
	Identity model.Identity `json:"identity"`
	Added    bool           `json:"added"`
}

// NewServer wires the admin routes. metrics, if not nil, is served on /metrics.
func NewServer(addr string, ctl Controller, metrics http.Handler) *Server {
	s := &Server{ctl: ctl, router: mux.NewRouter()}

	// Full paths on the root router: a PathPrefix subrouter answers a method
	// mismatch with 404 instead of 405.
	r := s.router
	r.HandleFunc(apiPrefix+"/switches", s.listSwitchesHandler).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/switches/{dpid}/forwarding", s.forwardingHandler).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/blocks", s.listBlocksHandler).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/blocks", s.blockHandler).Methods(http.MethodPost)
	r.HandleFunc(apiPrefix+"/blocks/{kind}/{value}", s.unblockHandler).Methods(http.MethodDelete)
	if metrics != nil {
		s.router.Handle("/metrics", metrics).Methods(http.MethodGet)
	}

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves in the background. A listen failure is logged.
func (s *Server) Start() {
	go func() {
		log.Infof("Admin API starting on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Errorf("Admin API could not listen on %s", s.server.Addr)
		}
	}()
}

// Shutdown stops the server, waiting for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("Admin API shutting down...")
	return s.server.Shutdown(ctx)
}

func (s *Server) listSwitchesHandler(w http.ResponseWriter, r *http.Request) {
	switches := s.ctl.Switches()
	out := make([]switchView, 0, len(switches))
	for _, sw := range switches {
		out = append(out, switchView{
			DPID:        sw.ID.String(),
			Ports:       sw.Ports,
			State:       sw.State.String(),
			ConnectedAt: sw.ConnectedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) forwardingHandler(w http.ResponseWriter, r *http.Request) {
	dpid, err := model.ParseDatapathID(mux.Vars(r)["dpid"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.known(dpid) {
		http.Error(w, fmt.Sprintf("switch %s is not registered", dpid), http.StatusNotFound)
		return
	}
	entries, err := s.ctl.Forwarding(dpid)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []l2.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) listBlocksHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := s.ctl.Blocked()
	if err != nil {
		writeError(w, err)
		return
	}
	if ids == nil {
		ids = []model.Identity{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) blockHandler(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("failed to decode request: %v", err), http.StatusBadRequest)
		return
	}
	id, err := model.ParseIdentity(req.Kind, req.Value)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	added, err := s.ctl.Block(id)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
		log.WithField("identity", id.String()).Info("Source blocked through the admin API")
	}
	writeJSON(w, status, blockResponse{Identity: id, Added: added})
}

func (s *Server) unblockHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := model.ParseIdentity(model.IdentityKind(vars["kind"]), vars["value"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	removed, err := s.ctl.Unblock(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !removed {
		http.Error(w, fmt.Sprintf("%s is not blocked", id), http.StatusNotFound)
		return
	}
	log.WithField("identity", id.String()).Info("Source unblocked through the admin API")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) known(dpid model.DatapathID) bool {
	for _, sw := range s.ctl.Switches() {
		if sw.ID == dpid {
			return true
		}
	}
	return false
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, manager.ErrMitigationDisabled):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, manager.ErrWrongIdentityKind):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, manager.ErrStopped):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
