// Package api serves the device table over HTTP: a JSON API, a
// WebSocket snapshot stream, an echarts analytics page, and the
// embedded dashboard.
package api

import (
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/presence.report/internal/config"
	"github.com/banshee-data/presence.report/internal/httputil"
	"github.com/banshee-data/presence.report/internal/monitor"
	"github.com/banshee-data/presence.report/internal/monitoring"
	"github.com/banshee-data/presence.report/internal/timeutil"
	"github.com/banshee-data/presence.report/internal/track"
	"github.com/banshee-data/presence.report/internal/units"
	"github.com/banshee-data/presence.report/internal/version"
)

//go:embed static
var staticFS embed.FS

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	registry  *track.Registry
	store     *config.Store
	analytics *monitor.Analytics
	clock     timeutil.Clock
	units     string
	source    string
}

// NewServer wires the serving layer. units is the default display unit
// for distances ("m" or "ft"); source names the active scan source for
// /api/config.
func NewServer(registry *track.Registry, store *config.Store, analytics *monitor.Analytics, clock timeutil.Clock, displayUnits, source string) *Server {
	return &Server{
		registry:  registry,
		store:     store,
		analytics: analytics,
		clock:     clock,
		units:     displayUnits,
		source:    source,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("/", http.FileServer(http.FS(static)))

	mux.HandleFunc("/api/devices", s.listDevices)
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.HandleFunc("/api/analytics", s.showAnalytics)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/ws", s.handleWebSocket)
	mux.HandleFunc("/analytics/charts", s.showCharts)
	return mux
}

// deviceAPI is the wire form of one tracked device. Distances are
// converted to the requested units at this edge; everything upstream
// is meters.
type deviceAPI struct {
	MACAddress   string  `json:"mac_address"`
	Distance     float64 `json:"distance"`
	RSSI         float64 `json:"rssi"`
	SSID         string  `json:"ssid,omitempty"`
	Hostname     string  `json:"hostname,omitempty"`
	IPAddress    string  `json:"ip_address,omitempty"`
	Manufacturer string  `json:"manufacturer,omitempty"`
	DeviceType   string  `json:"device_type"`
	FirstSeen    string  `json:"first_seen"`
	LastSeen     string  `json:"last_seen"`
}

func deviceToAPI(d track.DeviceState, targetUnits string) deviceAPI {
	return deviceAPI{
		MACAddress:   d.MAC,
		Distance:     units.ConvertDistance(d.DistanceM, targetUnits),
		RSSI:         d.SmoothedRSSI,
		SSID:         d.SSID,
		Hostname:     d.Hostname,
		IPAddress:    d.IPAddress,
		Manufacturer: d.Manufacturer,
		DeviceType:   d.DeviceType,
		FirstSeen:    d.FirstSeen.UTC().Format(time.RFC3339),
		LastSeen:     d.LastSeen.UTC().Format(time.RFC3339),
	}
}

// devicesPayload builds the /api/devices response body: the tracked
// devices within the configured distance threshold, keyed by MAC.
func (s *Server) devicesPayload(targetUnits string) map[string]interface{} {
	threshold := s.store.Current().GetDistanceThreshold()

	devices := make(map[string]deviceAPI)
	for mac, d := range s.registry.Snapshot() {
		// The threshold is compared in meters before conversion.
		if d.DistanceM > threshold {
			continue
		}
		devices[mac] = deviceToAPI(d, targetUnits)
	}

	return map[string]interface{}{
		"devices": devices,
		"count":   len(devices),
		"units":   targetUnits,
	}
}

func (s *Server) listDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	targetUnits := s.units
	if u := r.URL.Query().Get("units"); u != "" {
		if err := units.ValidateUnits(u); err != nil {
			httputil.BadRequest(w, "Invalid 'units' parameter")
			return
		}
		targetUnits = u
	}

	httputil.WriteJSONOK(w, s.devicesPayload(targetUnits))
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, s.store.Current().Snapshot())

	case http.MethodPost:
		var partial config.Config
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&partial); err != nil {
			httputil.BadRequest(w, "Invalid settings payload: "+err.Error())
			return
		}

		updated, err := s.store.Update(&partial)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, updated.Snapshot())

	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) showAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	recent := 50
	if q := r.URL.Query().Get("recent"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < 1 {
			httputil.BadRequest(w, "Invalid 'recent' parameter")
			return
		}
		recent = v
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"summary": s.analytics.Summary(),
		"recent":  s.analytics.Recent(recent),
	})
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"units":   s.units,
		"source":  s.source,
		"version": version.Version,
	})
}
