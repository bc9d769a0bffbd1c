package output

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/torosent/casebench/internal/runner"
	"github.com/torosent/casebench/internal/threshold"
)

// HTMLReportData contains all data needed for the HTML report template.
type HTMLReportData struct {
	GeneratedAt      string
	Report           runner.RunReport
	Totals           CaseTotals
	ThresholdSummary *ThresholdSummary
	ChartJSON        string
	Metadata         ReportMetadata
}

// ReportMetadata contains configuration information about the run.
type ReportMetadata struct {
	TargetURL string
	Transport string
}

// CaseTotals sums the outcome counters of every case in a run.
type CaseTotals struct {
	Total     int64
	Successes int64
	Timeouts  int64
	Errors    int64
}

type chartPoint struct {
	Label string  `json:"label"`
	QPS   float64 `json:"qps"`
	AvgMs float64 `json:"avg_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// GenerateHTMLReport generates a standalone HTML report with a per-case table
// and embedded charts.
func GenerateHTMLReport(w io.Writer, report runner.RunReport, thresholdResults []threshold.Result, metadata ReportMetadata) error {
	var totals CaseTotals
	points := make([]chartPoint, 0, len(report.Cases))
	for _, c := range report.Cases {
		totals.Total += c.Stats.Total
		totals.Successes += c.Stats.Successes
		totals.Timeouts += c.Stats.Timeouts
		totals.Errors += c.Stats.Errors
		points = append(points, chartPoint{
			Label: fmt.Sprintf("%s#%d", c.Suite, c.ID),
			QPS:   c.Stats.QPS,
			AvgMs: c.Stats.AvgLatencyMs,
			P99Ms: c.Stats.P99LatencyMs,
		})
	}

	chartJSON, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("failed to marshal chart data: %w", err)
	}

	data := HTMLReportData{
		GeneratedAt:      time.Now().Format(time.RFC3339),
		Report:           report,
		Totals:           totals,
		ThresholdSummary: summarizeThresholds(thresholdResults),
		ChartJSON:        string(chartJSON),
		Metadata:         metadata,
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatDuration": func(d time.Duration) string {
			return d.String()
		},
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
		"formatPercent": func(part, total int64) string {
			if total == 0 {
				return "0.0"
			}
			return fmt.Sprintf("%.1f", (float64(part)/float64(total))*100)
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Casebench Run Report</title>
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #f5f7fa;
            color: #2c3e50;
            line-height: 1.6;
            padding: 20px;
        }
        .container {
            max-width: 1400px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            overflow: hidden;
        }
        header {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            padding: 30px 40px;
        }
        header h1 {
            font-size: 2rem;
            margin-bottom: 10px;
        }
        header .meta {
            opacity: 0.9;
            font-size: 0.9rem;
        }
        .content {
            padding: 40px;
        }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
            gap: 20px;
            margin-bottom: 40px;
        }
        .card {
            background: #f8f9fa;
            border-radius: 8px;
            padding: 20px;
            border-left: 4px solid #667eea;
        }
        .card h3 {
            font-size: 0.9rem;
            color: #6c757d;
            text-transform: uppercase;
            letter-spacing: 0.5px;
            margin-bottom: 10px;
        }
        .card .value {
            font-size: 2rem;
            font-weight: bold;
            color: #2c3e50;
        }
        .card .subvalue {
            font-size: 0.85rem;
            color: #6c757d;
            margin-top: 5px;
        }
        .card.success {
            border-left-color: #10b981;
        }
        .card.error {
            border-left-color: #ef4444;
        }
        .card.warning {
            border-left-color: #f59e0b;
        }
        .section {
            margin-bottom: 40px;
        }
        .section h2 {
            font-size: 1.5rem;
            margin-bottom: 20px;
            padding-bottom: 10px;
            border-bottom: 2px solid #e5e7eb;
        }
        .chart-container {
            background: white;
            border-radius: 8px;
            padding: 20px;
            margin-bottom: 30px;
            border: 1px solid #e5e7eb;
        }
        .chart-container h3 {
            font-size: 1.1rem;
            margin-bottom: 15px;
            color: #4b5563;
        }
        .chart {
            width: 100%;
            height: 300px;
        }
        table {
            width: 100%;
            border-collapse: collapse;
            background: white;
        }
        th, td {
            text-align: left;
            padding: 12px;
            border-bottom: 1px solid #e5e7eb;
        }
        th {
            background: #f8f9fa;
            font-weight: 600;
            color: #4b5563;
            font-size: 0.9rem;
            text-transform: uppercase;
            letter-spacing: 0.5px;
        }
        tr:hover {
            background: #f8f9fa;
        }
        .badge {
            display: inline-block;
            padding: 4px 12px;
            border-radius: 12px;
            font-size: 0.85rem;
            font-weight: 600;
        }
        .badge-success {
            background: #d1fae5;
            color: #065f46;
        }
        .badge-error {
            background: #fee2e2;
            color: #991b1b;
        }
        .latency-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(150px, 1fr));
            gap: 15px;
            margin-top: 20px;
        }
        .latency-item {
            background: #f8f9fa;
            padding: 15px;
            border-radius: 6px;
            text-align: center;
        }
        .latency-item .label {
            font-size: 0.85rem;
            color: #6c757d;
            margin-bottom: 5px;
        }
        .latency-item .value {
            font-size: 1.3rem;
            font-weight: bold;
            color: #2c3e50;
        }
        .no-data {
            text-align: center;
            padding: 40px;
            color: #6c757d;
            font-style: italic;
        }
    </style>
    <script src="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.iife.min.js"></script>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.min.css">
</head>
<body>
    <div class="container">
        <header>
            <h1>Casebench Run Report{{if .Report.Name}}: {{.Report.Name}}{{end}}</h1>
            {{if .Metadata.TargetURL}}
            <div class="meta" style="margin-top: 5px;">Target: <a href="{{.Metadata.TargetURL}}" style="color: white; text-decoration: underline;">{{.Metadata.TargetURL}}</a></div>
            {{end}}
            <div class="meta">Run {{.Report.ID}} | Generated: {{.GeneratedAt}} | Duration: {{formatDuration .Report.Duration}}{{if .Metadata.Transport}} | Transport: {{.Metadata.Transport}}{{end}}</div>
        </header>

        <div class="content">
            <!-- Summary Cards -->
            <div class="grid">
                <div class="card">
                    <h3>Cases</h3>
                    <div class="value">{{len .Report.Cases}}/{{.Report.TotalCases}}</div>
                    {{if .Report.Interrupted}}<div class="subvalue">interrupted</div>{{end}}
                </div>
                <div class="card success">
                    <h3>Successful</h3>
                    <div class="value">{{.Totals.Successes}}</div>
                    <div class="subvalue">{{formatPercent .Totals.Successes .Totals.Total}}%</div>
                </div>
                <div class="card warning">
                    <h3>Timeouts</h3>
                    <div class="value">{{.Totals.Timeouts}}</div>
                    <div class="subvalue">{{formatPercent .Totals.Timeouts .Totals.Total}}%</div>
                </div>
                <div class="card error">
                    <h3>Errors</h3>
                    <div class="value">{{.Totals.Errors}}</div>
                    <div class="subvalue">{{formatPercent .Totals.Errors .Totals.Total}}%</div>
                </div>
            </div>

            {{if .Report.Cases}}
            <div class="section">
                <h2>Cases</h2>
                <div class="chart-container">
                    <h3>Queries Per Second</h3>
                    <div id="qps-chart" class="chart"></div>
                </div>
                <div class="chart-container">
                    <h3>Latency (ms)</h3>
                    <div id="latency-chart" class="chart"></div>
                </div>
                <table>
                    <thead>
                        <tr>
                            <th>Case</th>
                            <th>Concurrency</th>
                            <th>Timeout (ms)</th>
                            <th>Payload (bytes)</th>
                            <th>tmo/err/suc</th>
                            <th>Avg/Min/Max (ms)</th>
                            <th>P50/P90/P99 (ms)</th>
                            <th>QPS</th>
                            <th>MB/s</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .Report.Cases}}
                        <tr>
                            <td><strong>{{.Suite}}</strong> {{.ID}}/{{.TotalCases}}{{if .Interrupted}} <span class="badge badge-error">interrupted</span>{{end}}</td>
                            <td>{{.Concurrency}} ({{.Mode}})</td>
                            <td>{{.TimeoutMs}}</td>
                            <td>{{.PayloadBytes}}</td>
                            <td>{{.Stats.Timeouts}}/{{.Stats.Errors}}/{{.Stats.Successes}}</td>
                            {{if .Stats.HasLatency}}
                            <td>{{formatFloat .Stats.AvgLatencyMs}}/{{formatFloat .Stats.MinLatencyMs}}/{{formatFloat .Stats.MaxLatencyMs}}</td>
                            <td>{{formatFloat .Stats.P50LatencyMs}}/{{formatFloat .Stats.P90LatencyMs}}/{{formatFloat .Stats.P99LatencyMs}}</td>
                            {{else}}
                            <td>n/a</td>
                            <td>n/a</td>
                            {{end}}
                            <td>{{formatFloat .Stats.QPS}}</td>
                            <td>{{formatFloat .Stats.ThroughputMiBps}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{else}}
            <div class="no-data">No case finished.</div>
            {{end}}

            <!-- Thresholds -->
            {{if .ThresholdSummary}}
            <div class="section">
                <h2>Thresholds ({{.ThresholdSummary.Passed}}/{{.ThresholdSummary.Total}} Passed)</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Case</th>
                            <th>Threshold</th>
                            <th>Metric</th>
                            <th>Expected</th>
                            <th>Actual</th>
                            <th>Status</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .ThresholdSummary.Results}}
                        <tr>
                            <td>{{.Suite}} #{{.CaseID}}</td>
                            <td>{{.Threshold}}</td>
                            <td>{{.Metric}} ({{.Aggregate}})</td>
                            <td>{{.Operator}} {{formatFloat .Expected}}</td>
                            <td>{{formatFloat .Actual}}</td>
                            <td>
                                {{if .Pass}}
                                <span class="badge badge-success">✓ PASS</span>
                                {{else}}
                                <span class="badge badge-error">✗ FAIL</span>
                                {{end}}
                            </td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}
        </div>
    </div>

    {{if .Report.Cases}}
    <script>
        const chartJSON = {{.ChartJSON}};
        const points = JSON.parse(chartJSON);

        if (points && points.length > 0) {
            const xs = points.map((_, i) => i + 1);

            new uPlot({
                title: "Queries Per Second",
                width: document.getElementById('qps-chart').offsetWidth,
                height: 300,
                scales: { x: { time: false } },
                series: [
                    { label: "Case" },
                    {
                        label: "QPS",
                        stroke: "#667eea",
                        fill: "rgba(102, 126, 234, 0.1)",
                        width: 2
                    }
                ],
                axes: [
                    { label: "Case", values: (u, vals) => vals.map(v => points[v - 1] ? points[v - 1].label : "") },
                    { label: "Successes/sec" }
                ]
            }, [xs, points.map(p => p.qps)], document.getElementById('qps-chart'));

            new uPlot({
                title: "Latency",
                width: document.getElementById('latency-chart').offsetWidth,
                height: 300,
                scales: { x: { time: false } },
                series: [
                    { label: "Case" },
                    {
                        label: "Avg",
                        stroke: "#10b981",
                        width: 2
                    },
                    {
                        label: "P99",
                        stroke: "#ef4444",
                        width: 2
                    }
                ],
                axes: [
                    { label: "Case", values: (u, vals) => vals.map(v => points[v - 1] ? points[v - 1].label : "") },
                    { label: "Latency (ms)" }
                ]
            }, [xs, points.map(p => p.avg_ms), points.map(p => p.p99_ms)], document.getElementById('latency-chart'));
        }
    </script>
    {{end}}
</body>
</html>
`
