package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/casebench/internal/metrics"
	"github.com/torosent/casebench/internal/runner"
)

const historySize = 100

// Snapshotter exposes the controller's current progress.
type Snapshotter interface {
	Snapshot() runner.Progress
}

// Settings holds run parameters for display.
type Settings struct {
	Name       string // Run name
	Target     string // Target URL (empty for the simulated target)
	Transport  string // sim, http or websocket
	Rate       int    // Issue-rate cap per second (0 = unlimited)
	Suites     int    // Number of suites in the run
	ConfigFile string // Path to config file if used
}

// Dashboard renders a live terminal UI over controller snapshots. It also
// observes finalized cases to chart per-case results.
type Dashboard struct {
	runner.NopObserver

	source       Snapshotter
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid          *ui.Grid
	summaryPara   *widgets.Paragraph
	inFlightGauge *widgets.Gauge
	countsPara    *widgets.Paragraph
	caseSparkle   *widgets.SparklineGroup
	caseList      *widgets.List
	errorList     *widgets.List

	qpsHistory     []float64
	latencyHistory []float64
	finished       []runner.CaseReport
	buckets        map[string]map[string]int
	peakInFlight   int
	startTime      time.Time
	settings       Settings
}

// New creates a new Dashboard. shutdownFunc is called when the user presses
// q or Ctrl-C.
func New(source Snapshotter, settings Settings, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	d := newDashboard(source, settings)
	d.shutdownFunc = shutdownFunc
	d.setupGrid()
	return d, nil
}

func newDashboard(source Snapshotter, settings Settings) *Dashboard {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		source:         source,
		ctx:            ctx,
		cancel:         cancel,
		qpsHistory:     make([]float64, 0, historySize),
		latencyHistory: make([]float64, 0, historySize),
		buckets:        make(map[string]map[string]int),
		startTime:      time.Now(),
		settings:       settings,
	}
	d.initWidgets()
	return d
}

// initWidgets initializes all dashboard widgets.
func (d *Dashboard) initWidgets() {
	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Run Summary"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.inFlightGauge = widgets.NewGauge()
	d.inFlightGauge.Title = "In-flight Requests"
	d.inFlightGauge.Percent = 0
	d.inFlightGauge.BarColor = ui.ColorBlue
	d.inFlightGauge.BorderStyle.Fg = ui.ColorCyan
	d.inFlightGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.countsPara = widgets.NewParagraph()
	d.countsPara.Title = "Current Case"
	d.countsPara.Text = "Waiting for the first case..."
	d.countsPara.BorderStyle.Fg = ui.ColorCyan

	qps := widgets.NewSparkline()
	qps.Title = "QPS per case"
	qps.LineColor = ui.ColorGreen
	qps.Data = []float64{0}
	latency := widgets.NewSparkline()
	latency.Title = "Avg latency (ms) per case"
	latency.LineColor = ui.ColorYellow
	latency.Data = []float64{0}

	d.caseSparkle = widgets.NewSparklineGroup(qps, latency)
	d.caseSparkle.Title = "Finished Cases"
	d.caseSparkle.BorderStyle.Fg = ui.ColorCyan

	d.caseList = widgets.NewList()
	d.caseList.Title = "Cases"
	d.caseList.Rows = []string{"No finished cases"}
	d.caseList.TextStyle = ui.NewStyle(ui.ColorCyan)
	d.caseList.BorderStyle.Fg = ui.ColorCyan

	d.errorList = widgets.NewList()
	d.errorList.Title = "Status Buckets"
	d.errorList.Rows = []string{"No failures"}
	d.errorList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.errorList.BorderStyle.Fg = ui.ColorCyan
}

// setupGrid configures the layout grid.
func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.14,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.22,
			ui.NewCol(0.4, d.inFlightGauge),
			ui.NewCol(0.6, d.countsPara),
		),
		ui.NewRow(0.28,
			ui.NewCol(1.0, d.caseSparkle),
		),
		ui.NewRow(0.36,
			ui.NewCol(0.65, d.caseList),
			ui.NewCol(0.35, d.errorList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// CaseFinalized records a finished case for the charts and the case list.
func (d *Dashboard) CaseFinalized(report runner.CaseReport) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.finished = append(d.finished, report)
	d.qpsHistory = pushHistory(d.qpsHistory, report.Stats.QPS)
	d.latencyHistory = pushHistory(d.latencyHistory, report.Stats.AvgLatencyMs)
	for kind, codes := range report.Stats.StatusBuckets {
		if d.buckets[kind] == nil {
			d.buckets[kind] = make(map[string]int)
		}
		for code, n := range codes {
			d.buckets[kind][code] += n
		}
	}
}

// run is the main dashboard update loop.
func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			// Drain any remaining events
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Do not return here; wait for Stop() to cancel context
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update refreshes all widget data from the latest snapshot.
func (d *Dashboard) update() {
	snap := d.source.Snapshot()

	d.mu.Lock()
	defer d.mu.Unlock()

	if snap.InFlight > d.peakInFlight {
		d.peakInFlight = snap.InFlight
	}

	d.summaryPara.Text = d.formatSummary(snap, time.Since(d.startTime))
	d.countsPara.Text = formatCurrentCase(snap)

	capacity := snap.Case.Concurrency
	if capacity <= 0 {
		// Doubling mode has no fixed window; scale against the peak.
		capacity = d.peakInFlight
	}
	d.inFlightGauge.Percent = percent(snap.InFlight, capacity)
	d.inFlightGauge.Label = fmt.Sprintf("%d in flight", snap.InFlight)

	if len(d.qpsHistory) > 0 {
		d.caseSparkle.Sparklines[0].Data = d.qpsHistory
		d.caseSparkle.Sparklines[1].Data = d.latencyHistory
		last := d.finished[len(d.finished)-1]
		d.caseSparkle.Title = fmt.Sprintf("Finished Cases | Last: %s#%d %.2f qps, %s",
			last.Suite, last.ID, last.Stats.QPS, formatLatency(last.Stats))
	}

	d.caseList.Rows = formatCaseRows(d.finished, 20)
	d.errorList.Rows = formatStatusListRows(d.buckets)
}

// render draws all widgets to the screen.
func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func (d *Dashboard) formatSummary(snap runner.Progress, elapsed time.Duration) string {
	name := d.settings.Name
	if name == "" {
		name = "casebench"
	}
	target := d.settings.Target
	if target == "" {
		target = "(simulated)"
	}
	lines := []string{
		fmt.Sprintf("Run: %s | Target: %s", name, target),
	}
	if params := d.formatRunParams(); params != "" {
		lines = append(lines, params)
	}
	lines = append(lines, fmt.Sprintf("State: %s | Cases: %d/%d | Elapsed: %s",
		snap.State, snap.Cursor.Started, snap.TotalCases, elapsed.Round(time.Second)))
	return strings.Join(lines, "\n")
}

// formatRunParams formats the run configuration for display.
func (d *Dashboard) formatRunParams() string {
	var parts []string

	// Transport (only show if not the simulated target)
	if d.settings.Transport != "" && d.settings.Transport != "sim" {
		parts = append(parts, fmt.Sprintf("Transport: %s", d.settings.Transport))
	}

	if d.settings.Suites > 0 {
		parts = append(parts, fmt.Sprintf("Suites: %d", d.settings.Suites))
	}

	if d.settings.Rate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %d/s", d.settings.Rate))
	} else {
		parts = append(parts, "Rate: unlimited")
	}

	if d.settings.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", d.settings.ConfigFile))
	}

	return strings.Join(parts, " | ")
}

func formatCurrentCase(snap runner.Progress) string {
	if snap.Case.ID == 0 {
		return "Waiting for the first case..."
	}
	info := snap.Case
	qps := 0.0
	if secs := snap.Elapsed.Seconds(); secs > 0 {
		qps = float64(snap.Counts.Successes) / secs
	}
	return fmt.Sprintf(
		"Case:         %s #%d (%s)\nConcurrency:  %d\nTimeout:      %dms\nPayload:      %d bytes\nIssued:       %d\ntmo/err/suc:  %d/%d/%d\nLive QPS:     %.2f",
		info.Suite, info.ID, info.Mode,
		info.Concurrency,
		info.TimeoutMs,
		info.PayloadBytes,
		snap.Issued,
		snap.Counts.Timeouts, snap.Counts.Errors, snap.Counts.Successes,
		qps,
	)
}

// formatCaseRows lists the most recent finished cases first.
func formatCaseRows(cases []runner.CaseReport, limit int) []string {
	if len(cases) == 0 {
		return []string{"[No finished cases](fg:green)"}
	}
	rows := make([]string, 0, min(len(cases), limit))
	for i := len(cases) - 1; i >= 0 && len(rows) < limit; i-- {
		c := cases[i]
		color := "cyan"
		if c.Stats.Errors > 0 || c.Stats.Timeouts > 0 {
			color = "yellow"
		}
		if c.Stats.Total > 0 && c.Stats.Successes == 0 {
			color = "red"
		}
		rows = append(rows, fmt.Sprintf("[%s#%d](fg:%s) c=%d t=%dms p=%dB | %d/%d/%d | %s | %.2f qps",
			c.Suite, c.ID, color,
			c.Concurrency, c.TimeoutMs, c.PayloadBytes,
			c.Stats.Timeouts, c.Stats.Errors, c.Stats.Successes,
			formatLatency(c.Stats),
			c.Stats.QPS,
		))
	}
	return rows
}

func formatLatency(s metrics.CaseStats) string {
	if !s.HasLatency {
		return "avg n/a"
	}
	return fmt.Sprintf("avg %.2fms", s.AvgLatencyMs)
}

func formatStatusListRows(buckets map[string]map[string]int) []string {
	rows := metrics.FlattenStatusBuckets(buckets)
	if len(rows) == 0 {
		return []string{"[No failures](fg:green)"}
	}
	maxRows := len(rows)
	if maxRows > 10 {
		maxRows = 10
	}
	formatted := make([]string, 0, maxRows)
	for i := 0; i < maxRows; i++ {
		row := rows[i]
		formatted = append(formatted, fmt.Sprintf("[%s %s](fg:red) %d", strings.ToUpper(row.Kind), row.Code, row.Count))
	}
	return formatted
}

func pushHistory(history []float64, v float64) []float64 {
	history = append(history, v)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

func percent(n, capacity int) int {
	if capacity <= 0 || n <= 0 {
		return 0
	}
	p := n * 100 / capacity
	if p > 100 {
		p = 100
	}
	return p
}
