package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/presence.report/internal/httputil"
)

// showCharts renders an HTML page of recent cycle analytics with
// go-echarts. Debugging aid, no auth. Query params:
//   - cycles (optional; default 100, max 500) history depth
func (s *Server) showCharts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	n := 100
	if q := r.URL.Query().Get("cycles"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < 1 || v > 500 {
			httputil.BadRequest(w, "Invalid 'cycles' parameter")
			return
		}
		n = v
	}

	recent := s.analytics.Recent(n)

	labels := make([]string, 0, len(recent))
	deviceCounts := make([]opts.LineData, 0, len(recent))
	durations := make([]opts.BarData, 0, len(recent))
	rejected := make([]opts.LineData, 0, len(recent))
	for _, c := range recent {
		labels = append(labels, c.StartedAt.Format("15:04:05"))
		deviceCounts = append(deviceCounts, opts.LineData{Value: c.Devices})
		durations = append(durations, opts.BarData{Value: c.Duration.Milliseconds()})
		rejected = append(rejected, opts.LineData{Value: c.RejectedLines})
	}

	devicesLine := charts.NewLine()
	devicesLine.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Presence Analytics", Theme: "dark", Width: "1200px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Devices per cycle", Subtitle: fmt.Sprintf("last %d cycles", len(recent))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "cycle"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "devices"}),
	)
	devicesLine.SetXAxis(labels).
		AddSeries("devices", deviceCounts).
		AddSeries("rejected lines", rejected)

	durationBar := charts.NewBar()
	durationBar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "1200px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Cycle duration"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ms"}),
	)
	durationBar.SetXAxis(labels).AddSeries("duration", durations)

	page := components.NewPage()
	page.SetPageTitle("Presence Analytics")
	page.AddCharts(devicesLine, durationBar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render charts: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
