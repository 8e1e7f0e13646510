package observatory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wcharczuk/observatory/internal/httpz"
)

// NewServer returns a new server for a given aggregator.
func NewServer(aggregator *Aggregator) *Server {
	s := &Server{
		aggregator: aggregator,
		clock:      clockwork.NewRealClock(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
	}
	s.router = s.routes()
	return s
}

var _ http.Handler = (*Server)(nil)

// Server implements the http api of the observatory daemon.
type Server struct {
	aggregator *Aggregator
	clock      clockwork.Clock
	upgrader   websocket.Upgrader
	router     *httprouter.Router
}

// WithClock sets the server clock and returns a reference to the same server.
func (s *Server) WithClock(clock clockwork.Clock) *Server {
	s.clock = clock
	return s
}

// Aggregator returns the aggregator the server delegates to.
func (s *Server) Aggregator() *Aggregator {
	return s.aggregator
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	s.router.ServeHTTP(rw, req)
}

func (s *Server) routes() *httprouter.Router {
	router := httprouter.New()
	router.HandleMethodNotAllowed = true
	router.NotFound = http.HandlerFunc(s.unknownPath)
	router.MethodNotAllowed = http.HandlerFunc(s.unknownMethod)
	router.PanicHandler = s.panicked

	router.POST("/v1/events", s.postEvents)
	router.GET("/v1/viewer", s.viewer)
	router.GET("/v1/domains/:domain/tracking", s.getTracking)
	router.PUT("/v1/domains/:domain/tracking", s.putTracking)
	router.GET("/v1/domains/:domain/stats", s.getStats)
	router.DELETE("/v1/domains/:domain/stats", s.deleteStats)
	router.GET("/v1/domains/:domain/logs", s.getLogs)
	router.GET("/v1/domains/:domain/export", s.getExport)
	router.GET("/v1/domains/:domain/grouped", s.getGrouped)
	router.GET("/v1/status", s.getStatus)
	router.GET("/healthz", s.healthz)
	router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(s.aggregator.Metrics().Registry(), promhttp.HandlerOpts{}))
	return router
}

// postEvents is the relay ingress.
//
// Processing is detached from the request context so a client that hangs up
// after posting does not abort the store writes for its event.
func (s *Server) postEvents(rw http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	input, err := deserialize[Envelope](req)
	if err != nil {
		serialize(rw, req, err)
		return
	}
	if input == nil {
		serialize(rw, req, ErrorInvalidInput().WithMessage("Request body is required"))
		return
	}
	s.aggregator.Receive(context.WithoutCancel(req.Context()), *input)
	serialize(rw, req, Ack{OK: true})
}

// TrackingState is the body of the tracking endpoints.
type TrackingState struct {
	Domain  string `json:"domain,omitempty"`
	Enabled *bool  `json:"enabled"`
}

func (s *Server) getTracking(rw http.ResponseWriter, req *http.Request, params httprouter.Params) {
	domain, ok := s.domainParam(rw, req, params)
	if !ok {
		return
	}
	enabled, err := s.aggregator.TrackingEnabled(req.Context(), domain)
	if err != nil {
		serialize(rw, req, ErrorStoreUnavailable().WithMessage(err.Error()))
		return
	}
	serialize(rw, req, TrackingState{Domain: domain, Enabled: &enabled})
}

func (s *Server) putTracking(rw http.ResponseWriter, req *http.Request, params httprouter.Params) {
	domain, ok := s.domainParam(rw, req, params)
	if !ok {
		return
	}
	input, err := deserialize[TrackingState](req)
	if err != nil {
		serialize(rw, req, err)
		return
	}
	if input == nil || input.Enabled == nil {
		serialize(rw, req, ErrorInvalidInput().WithMessage("Field 'enabled' is required"))
		return
	}
	if err := s.aggregator.SetTracking(req.Context(), domain, *input.Enabled); err != nil {
		serialize(rw, req, ErrorStoreUnavailable().WithMessage(err.Error()))
		return
	}
	serialize(rw, req, TrackingState{Domain: domain, Enabled: input.Enabled})
}

func (s *Server) getStats(rw http.ResponseWriter, req *http.Request, params httprouter.Params) {
	domain, ok := s.domainParam(rw, req, params)
	if !ok {
		return
	}
	stats, err := s.aggregator.Stats(req.Context(), domain)
	if err != nil {
		serialize(rw, req, ErrorStoreUnavailable().WithMessage(err.Error()))
		return
	}
	serialize(rw, req, stats)
}

func (s *Server) deleteStats(rw http.ResponseWriter, req *http.Request, params httprouter.Params) {
	domain, ok := s.domainParam(rw, req, params)
	if !ok {
		return
	}
	if err := s.aggregator.ClearStats(req.Context(), domain); err != nil {
		serialize(rw, req, ErrorStoreUnavailable().WithMessage(err.Error()))
		return
	}
	serialize(rw, req, Ack{OK: true})
}

func (s *Server) getLogs(rw http.ResponseWriter, req *http.Request, params httprouter.Params) {
	domain, ok := s.domainParam(rw, req, params)
	if !ok {
		return
	}
	logs, err := s.aggregator.Logs(req.Context(), domain)
	if err != nil {
		serialize(rw, req, ErrorStoreUnavailable().WithMessage(err.Error()))
		return
	}
	if logs == nil {
		logs = DomainLog{}
	}
	serialize(rw, req, logs)
}

func (s *Server) getExport(rw http.ResponseWriter, req *http.Request, params httprouter.Params) {
	domain, ok := s.domainParam(rw, req, params)
	if !ok {
		return
	}
	export, err := s.aggregator.Export(req.Context(), domain)
	if err != nil {
		serialize(rw, req, ErrorStoreUnavailable().WithMessage(err.Error()))
		return
	}
	rw.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="api-observatory-%s-%d.json"`, domain, export.ExportTime.UnixMilli()))
	serialize(rw, req, export)
}

func (s *Server) getGrouped(rw http.ResponseWriter, req *http.Request, params httprouter.Params) {
	domain, ok := s.domainParam(rw, req, params)
	if !ok {
		return
	}
	var asCSV bool
	switch format := strings.ToLower(req.URL.Query().Get("format")); format {
	case "csv":
		asCSV = true
	case "json":
	case "":
		asCSV = httpz.AcceptsMediaType(req.Header, httpz.HeaderAccept, httpz.MediaTypeCSV)
	default:
		serialize(rw, req, ErrorInvalidFormat().WithMessagef("Format %q is not supported; expected json or csv", format))
		return
	}
	rows, err := s.aggregator.Grouped(req.Context(), domain)
	if err != nil {
		serialize(rw, req, ErrorStoreUnavailable().WithMessage(err.Error()))
		return
	}
	if !asCSV {
		serialize(rw, req, rows)
		return
	}
	rw.Header().Set(httpz.HeaderContentType, httpz.ContentTypeCSV)
	rw.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="api-observatory-%s-%d.csv"`, domain, s.clock.Now().UnixMilli()))
	rw.WriteHeader(http.StatusOK)
	if err := WriteGroupedCSV(rw, rows); err != nil {
		slog.Error("writing grouped csv failed", slog.String("domain", domain), slog.Any("err", err))
	}
}

// ServerStatus is the body of the status endpoint.
type ServerStatus struct {
	Version  string        `json:"version"`
	Sessions int           `json:"sessions"`
	Batcher  BatcherStatus `json:"batcher"`
}

func (s *Server) getStatus(rw http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	serialize(rw, req, ServerStatus{
		Version:  Version,
		Sessions: s.aggregator.Sessions().Len(),
		Batcher:  s.aggregator.Batcher().Status(),
	})
}

func (s *Server) healthz(rw http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	rw.Header().Set(httpz.HeaderContentType, httpz.ContentTypeText)
	rw.WriteHeader(http.StatusOK)
	_, _ = rw.Write([]byte("ok\n"))
}

func (s *Server) domainParam(rw http.ResponseWriter, req *http.Request, params httprouter.Params) (string, bool) {
	raw := params.ByName("domain")
	domain := strings.ToLower(strings.TrimSpace(raw))
	if domain == "" || DomainOf("http://"+domain) != domain {
		serialize(rw, req, ErrorInvalidDomain().WithMessagef("Invalid domain %q", raw))
		return "", false
	}
	return domain, true
}

func (s *Server) unknownPath(rw http.ResponseWriter, req *http.Request) {
	serialize(rw, req, ErrorNotFound().WithMessagef("Path not found: %s", req.URL.Path))
}

func (s *Server) unknownMethod(rw http.ResponseWriter, req *http.Request) {
	serialize(rw, req, ErrorMethodNotAllowed().WithMessagef("Method %s not allowed for %s", req.Method, req.URL.Path))
}

func (s *Server) panicked(rw http.ResponseWriter, req *http.Request, recovered any) {
	slog.Error("http handler panicked", slog.String("path", req.URL.Path), slog.Any("panic", recovered))
	serialize(rw, req, ErrorInternalServer().WithMessage("Internal server error"))
}

func deserialize[V any](req *http.Request) (*V, *Error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	var value V
	if err := json.NewDecoder(req.Body).Decode(&value); err != nil {
		return nil, ErrorInvalidInput().WithMessagef("Deserializing input failed: %v", err)
	}
	return &value, nil
}

func serialize(rw http.ResponseWriter, _ *http.Request, res any) {
	rw.Header().Set(httpz.HeaderContentType, httpz.ContentTypeApplicationJSON)
	if commonError, ok := res.(*Error); ok {
		rw.WriteHeader(commonError.StatusCode)
	} else {
		rw.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(rw).Encode(res)
}
