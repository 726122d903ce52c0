// Package status serves gateway health, device and metrics endpoints over HTTP.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"loragate/core"
	"loragate/metrics"
	"loragate/protocol"
)

// Server exposes read-mostly gateway state for operators
type Server struct {
	addr    string
	gw      *core.Gateway
	metrics *metrics.Registry
	armed   func() bool
	logger  *zap.Logger
	router  chi.Router
}

// NodeView is the JSON form of a device table entry
type NodeView struct {
	Addr     string    `json:"addr"`
	NodeID   string    `json:"node_id"`
	AppID    string    `json:"app_id"`
	Nonce    uint32    `json:"nonce"`
	Class    uint8     `json:"class"`
	LastSeen time.Time `json:"last_seen"`
}

// ConfigView is the JSON form of the gateway configuration
type ConfigView struct {
	NodeID    string `json:"node_id"`
	AppID     string `json:"app_id"`
	Region    string `json:"region"`
	Channel   int    `json:"channel"`
	Frequency uint32 `json:"frequency"`
	DataRate  uint8  `json:"data_rate"`
}

// NewServer builds the router. gw may be nil when the gateway is not
// configured; armed may be nil when no watchdog runs.
func NewServer(addr string, gw *core.Gateway, m *metrics.Registry, armed func() bool, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if armed == nil {
		armed = func() bool { return false }
	}

	s := &Server{addr: addr, gw: gw, metrics: m, armed: armed, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/health", s.health)
	if m != nil {
		r.Handle("/metrics", promhttp.HandlerFor(m.Gatherer(), promhttp.HandlerOpts{}))
	}

	r.Route("/gateway", func(r chi.Router) {
		r.Use(s.requireGateway)
		r.Get("/config", s.config)
		r.Get("/devices", s.listDevices)
		r.Post("/devices/{addr}/kick", s.kickDevice)
	})

	s.router = r
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", zap.String("addr", s.addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]interface{}{
		"error": message,
		"code":  status,
	})
}

func (s *Server) requireGateway(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.gw == nil {
			errorResponse(w, http.StatusServiceUnavailable, core.ErrNotConfigured.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]interface{}{
		"status":         "ok",
		"service":        "loragate",
		"configured":     s.gw != nil,
		"watchdog_armed": s.armed(),
	}
	if s.gw != nil {
		resp["devices"] = s.gw.Devices.Len()
	}
	jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) config(w http.ResponseWriter, _ *http.Request) {
	id := s.gw.Identity()
	settings := s.gw.Settings()
	region, _ := s.gw.Regions().Region(settings.Region)
	freq, _ := s.gw.Regions().Frequency(settings.Region, settings.Channel)

	jsonResponse(w, http.StatusOK, ConfigView{
		NodeID:    id.NodeID.String(),
		AppID:     id.AppID.String(),
		Region:    region.Name,
		Channel:   settings.Channel,
		Frequency: freq,
		DataRate:  uint8(settings.DataRate),
	})
}

func (s *Server) listDevices(w http.ResponseWriter, _ *http.Request) {
	nodes := s.gw.Devices.Nodes()
	views := make([]NodeView, 0, len(nodes))
	for _, n := range nodes {
		views = append(views, toView(n))
	}
	jsonResponse(w, http.StatusOK, views)
}

func (s *Server) kickDevice(w http.ResponseWriter, r *http.Request) {
	addr, err := core.ParseAddr(chi.URLParam(r, "addr"))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid address: "+err.Error())
		return
	}

	node, err := s.gw.Kick(addr)
	if err != nil {
		if errors.Is(err, core.ErrUnknownNode) {
			errorResponse(w, http.StatusNotFound, err.Error())
			return
		}
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("node kicked over http", zap.String("node_id", protocol.FormatNodeID(node.NodeID)))
	jsonResponse(w, http.StatusOK, toView(node))
}

func toView(n core.Node) NodeView {
	return NodeView{
		Addr:     protocol.FormatNodeID(uint64(n.Addr))[8:],
		NodeID:   protocol.FormatNodeID(n.NodeID),
		AppID:    protocol.FormatNodeID(n.AppID),
		Nonce:    n.Nonce,
		Class:    n.Class,
		LastSeen: n.LastSeen,
	}
}
