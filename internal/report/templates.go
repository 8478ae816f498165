package report

// htmlTemplate is the main HTML template for the report
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Name}} - Collector Simulation Report</title>
    <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
    <style>
        :root {
            --bg-primary: #ffffff;
            --bg-secondary: #f8fafc;
            --bg-card: #ffffff;
            --text-primary: #1e293b;
            --text-secondary: #64748b;
            --text-muted: #94a3b8;
            --border-color: #e2e8f0;
            --accent-primary: #0ea5e9;
            --accent-success: #22c55e;
            --accent-warning: #f59e0b;
            --accent-error: #ef4444;
            --shadow: 0 1px 3px rgba(0, 0, 0, 0.1);
        }

        [data-theme="dark"] {
            --bg-primary: #0f172a;
            --bg-secondary: #1e293b;
            --bg-card: #1e293b;
            --text-primary: #f1f5f9;
            --text-secondary: #94a3b8;
            --text-muted: #64748b;
            --border-color: #334155;
            --shadow: 0 1px 3px rgba(0, 0, 0, 0.3);
        }

        * { margin: 0; padding: 0; box-sizing: border-box; }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background-color: var(--bg-secondary);
            color: var(--text-primary);
            line-height: 1.6;
        }

        .container { max-width: 1400px; margin: 0 auto; padding: 2rem; }

        .header {
            background: var(--bg-card);
            border-radius: 12px;
            padding: 2rem;
            margin-bottom: 2rem;
            box-shadow: var(--shadow);
            display: flex;
            justify-content: space-between;
            align-items: center;
            flex-wrap: wrap;
            gap: 1rem;
        }

        .header h1 { font-size: 1.75rem; font-weight: 700; }
        .header .description { color: var(--text-secondary); }
        .header .meta { display: flex; gap: 2rem; margin-top: 0.75rem; font-size: 0.875rem; color: var(--text-muted); }

        .status { padding: 0.75rem 1.5rem; border-radius: 8px; font-weight: 600; }
        .status.pass { background: rgba(34, 197, 94, 0.1); color: var(--accent-success); }
        .status.fail { background: rgba(239, 68, 68, 0.1); color: var(--accent-error); }

        .theme-toggle {
            background: var(--bg-secondary);
            border: 1px solid var(--border-color);
            border-radius: 8px;
            padding: 0.5rem 0.75rem;
            cursor: pointer;
            color: var(--text-primary);
        }

        .metrics-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(200px, 1fr));
            gap: 1rem;
            margin-bottom: 2rem;
        }

        .metric-card { background: var(--bg-card); border-radius: 12px; padding: 1.5rem; box-shadow: var(--shadow); }
        .metric-card .label { font-size: 0.8rem; color: var(--text-secondary); text-transform: uppercase; letter-spacing: 0.05em; }
        .metric-card .value { font-size: 1.75rem; font-weight: 700; }
        .metric-card .unit { font-size: 0.9rem; color: var(--text-muted); margin-left: 0.25rem; }

        .section { background: var(--bg-card); border-radius: 12px; padding: 1.5rem; margin-bottom: 2rem; box-shadow: var(--shadow); }
        .section-title { font-size: 1.15rem; font-weight: 600; margin-bottom: 1rem; }

        .chart-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(450px, 1fr)); gap: 1.5rem; }
        .chart-title { font-size: 0.9rem; color: var(--text-secondary); margin-bottom: 0.5rem; }
        .chart-wrapper { position: relative; height: 280px; }

        .stats-table { width: 100%; border-collapse: collapse; font-size: 0.875rem; }
        .stats-table th, .stats-table td { padding: 0.6rem 0.75rem; text-align: right; border-bottom: 1px solid var(--border-color); }
        .stats-table th:first-child, .stats-table td:first-child { text-align: left; }
        .stats-table th { color: var(--text-secondary); font-weight: 600; }
        .stats-table tr.pause td:first-child { font-weight: 600; }

        .threshold-item { display: flex; align-items: center; gap: 1rem; padding: 0.75rem 0; border-bottom: 1px solid var(--border-color); }
        .threshold-icon.pass { color: var(--accent-success); }
        .threshold-icon.fail { color: var(--accent-error); }
        .threshold-info { flex: 1; }
        .threshold-metric { font-weight: 600; }
        .threshold-expression { font-family: monospace; color: var(--text-secondary); }
        .threshold-value { font-size: 0.875rem; color: var(--text-secondary); }

        .footer { text-align: center; color: var(--text-muted); font-size: 0.8rem; padding: 1rem; }
    </style>
</head>
<body>
    <div class="container">
        <header class="header">
            <div>
                <h1>{{.Name}}</h1>
                {{if .Description}}<p class="description">{{.Description}}</p>{{end}}
                <div class="meta">
                    <span>{{.StartTime.Format "2006-01-02 15:04:05"}}</span>
                    <span>{{formatDuration .Duration}}</span>
                    <span>mode: {{.Mode}}</span>
                </div>
            </div>
            <div>
                <div class="status {{if .Passed}}pass{{else}}fail{{end}}">
                    {{if .Passed}}PASSED{{else}}FAILED{{end}}
                </div>
                <button class="theme-toggle" onclick="toggleTheme()" title="Toggle dark mode">theme</button>
            </div>
        </header>

        <div class="metrics-grid">
            <div class="metric-card">
                <div class="label">Cycles</div>
                <div class="value">{{formatNumber .Cycles}}</div>
            </div>
            <div class="metric-card">
                <div class="label">Pauses</div>
                <div class="value">{{formatNumber .Pause.Count}}</div>
            </div>
            <div class="metric-card">
                <div class="label">P99 Pause</div>
                <div class="value">{{formatLatency .Pause.P99}}</div>
            </div>
            <div class="metric-card">
                <div class="label">Max Pause</div>
                <div class="value">{{formatLatency .Pause.Max}}</div>
            </div>
            <div class="metric-card">
                <div class="label">Allocations</div>
                <div class="value">{{formatNumber .Allocations}}</div>
            </div>
            <div class="metric-card">
                <div class="label">Heap Used</div>
                <div class="value">{{printf "%.1f" (percent .Heap.Used .Heap.Capacity)}}<span class="unit">%</span></div>
            </div>
        </div>

        <section class="section">
            <h2 class="section-title">Cycle Outcomes</h2>
            <table class="stats-table">
                <thead><tr><th>Outcome</th><th>Count</th></tr></thead>
                <tbody>
                    {{range $name, $count := .Outcomes}}
                    <tr><td>{{$name}}</td><td>{{formatNumber $count}}</td></tr>
                    {{end}}
                    <tr><td>cancelled concurrent</td><td>{{formatNumber .Collector.Cancelled}}</td></tr>
                    <tr><td>upgrades to full</td><td>{{formatNumber .Collector.Upgrades}}</td></tr>
                    <tr><td>uncommits</td><td>{{formatNumber .Collector.Uncommits}}</td></tr>
                    <tr><td>root scan tasks</td><td>{{formatNumber .Collector.RootTasks}} ({{formatLatency .Collector.RootWorkTime}})</td></tr>
                </tbody>
            </table>
        </section>

        {{if .Events}}
        <section class="section">
            <h2 class="section-title">Cycles Over Time</h2>
            <div class="chart-grid">
                <div>
                    <div class="chart-title">Cycle and Pause Time (ms)</div>
                    <div class="chart-wrapper"><canvas id="cycleChart"></canvas></div>
                </div>
                <div>
                    <div class="chart-title">Heap Used Before and After (words)</div>
                    <div class="chart-wrapper"><canvas id="heapChart"></canvas></div>
                </div>
            </div>
        </section>
        {{end}}

        {{if .Phases}}
        <section class="section">
            <h2 class="section-title">Phase Timings</h2>
            <table class="stats-table">
                <thead>
                    <tr><th>Phase</th><th>Count</th><th>Total</th><th>Min</th><th>Mean</th><th>P50</th><th>P90</th><th>P99</th><th>Max</th></tr>
                </thead>
                <tbody>
                    {{range .Phases}}
                    <tr class="{{if eq .Key "total_pause"}}pause{{end}}">
                        <td>{{.Name}}</td>
                        <td>{{formatNumber .Count}}</td>
                        <td>{{formatLatency .Total}}</td>
                        <td>{{formatLatency .Min}}</td>
                        <td>{{formatLatency .Mean}}</td>
                        <td>{{formatLatency .P50}}</td>
                        <td>{{formatLatency .P90}}</td>
                        <td>{{formatLatency .P99}}</td>
                        <td>{{formatLatency .Max}}</td>
                    </tr>
                    {{end}}
                </tbody>
            </table>
        </section>
        {{end}}

        {{if .AllocRows}}
        <section class="section">
            <h2 class="section-title">Allocation Latency</h2>
            <table class="stats-table">
                <thead>
                    <tr><th>Request Type</th><th>Count</th><th>Words</th><th>Min</th><th>Mean</th><th>P50</th><th>P99</th><th>Max</th></tr>
                </thead>
                <tbody>
                    {{range .AllocRows}}
                    <tr>
                        <td>{{.TypeName}}</td>
                        <td>{{formatNumber .Count}}</td>
                        <td>{{formatWords .TotalSize}}</td>
                        <td>{{formatLatency .Min}}</td>
                        <td>{{formatLatency .Mean}}</td>
                        <td>{{formatLatency .P50}}</td>
                        <td>{{formatLatency .P99}}</td>
                        <td>{{formatLatency .Max}}</td>
                    </tr>
                    {{end}}
                </tbody>
            </table>
        </section>
        {{end}}

        <section class="section">
            <h2 class="section-title">Memory Managers</h2>
            <table class="stats-table">
                <thead><tr><th>Manager</th><th>Collections</th><th>Accumulated GC Time</th></tr></thead>
                <tbody>
                    {{range .Managers}}
                    <tr><td>{{.Name}}</td><td>{{formatNumber .Collections}}</td><td>{{formatLatency .AccumulatedGCTime}}</td></tr>
                    {{end}}
                </tbody>
            </table>
        </section>

        {{if .Mutators}}
        <section class="section">
            <h2 class="section-title">Mutators</h2>
            <table class="stats-table">
                <thead><tr><th>Thread</th><th>Allocations</th><th>Words</th><th>GC Waits</th><th>Out of Memory</th></tr></thead>
                <tbody>
                    {{range .Mutators}}
                    <tr>
                        <td>{{.Name}}</td>
                        <td>{{formatNumber .Allocations}}</td>
                        <td>{{formatWords .Words}}</td>
                        <td>{{formatNumber .GCWaits}}</td>
                        <td>{{formatNumber .OutOfMemory}}</td>
                    </tr>
                    {{end}}
                </tbody>
            </table>
        </section>
        {{end}}

        {{if .Thresholds}}
        <section class="section">
            <h2 class="section-title">Threshold Results</h2>
            {{range .Thresholds}}
            <div class="threshold-item">
                <span class="threshold-icon {{if .Passed}}pass{{else}}fail{{end}}">{{if .Passed}}PASS{{else}}FAIL{{end}}</span>
                <div class="threshold-info">
                    <div class="threshold-metric">{{.Metric}}</div>
                    <div class="threshold-expression">{{.Expression}}</div>
                </div>
                <div class="threshold-value">
                    Actual: {{.Value}}
                    {{if .Message}}<br><span style="color: var(--accent-error);">{{.Message}}</span>{{end}}
                </div>
            </div>
            {{end}}
        </section>
        {{end}}

        <footer class="footer">
            <p>Generated by gcscope &middot; allocation trace {{if .Tunables.AllocationTrace}}on{{else}}off{{end}}, stall threshold {{formatLatency .Tunables.AllocationStallThreshold}} &middot; {{.EndTime.Format "2006-01-02 15:04:05 MST"}}</p>
        </footer>
    </div>

    <script>
        function toggleTheme() {
            const html = document.documentElement;
            const next = html.getAttribute('data-theme') === 'dark' ? 'light' : 'dark';
            html.setAttribute('data-theme', next);
            localStorage.setItem('theme', next);
        }
        document.documentElement.setAttribute('data-theme', localStorage.getItem('theme') || 'light');

        const cycleData = {{.CycleJSON}};

        document.addEventListener('DOMContentLoaded', function() {
            if (!cycleData || cycleData.length === 0) {
                return;
            }
            const labels = cycleData.map(d => 'GC(' + d.id + ')');
            const line = (label, data, color) => ({
                label: label, data: data, borderColor: color, backgroundColor: 'transparent',
                tension: 0.3, pointRadius: 2, borderWidth: 2,
            });
            const options = { responsive: true, maintainAspectRatio: false, scales: { y: { beginAtZero: true } } };

            new Chart(document.getElementById('cycleChart').getContext('2d'), {
                type: 'line',
                data: { labels: labels, datasets: [
                    line('Cycle', cycleData.map(d => d.durationMs), '#0ea5e9'),
                    line('Sum of pauses', cycleData.map(d => d.pauseMs), '#f59e0b'),
                    line('Longest pause', cycleData.map(d => d.longestMs), '#ef4444'),
                ]},
                options: options
            });

            new Chart(document.getElementById('heapChart').getContext('2d'), {
                type: 'bar',
                data: { labels: labels, datasets: [
                    { label: 'Before GC', data: cycleData.map(d => d.usedBefore), backgroundColor: '#94a3b8' },
                    { label: 'After GC', data: cycleData.map(d => d.usedAfter), backgroundColor: '#22c55e' },
                ]},
                options: options
            });
        });
    </script>
</body>
</html>`
