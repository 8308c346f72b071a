package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/cloudcover-switch/internal/status"
	"github.com/sweeney/cloudcover-switch/internal/store"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"onOff": func(b bool) string {
		if b {
			return "ON"
		}
		return "OFF"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{if .Config.DeviceName}}{{.Config.DeviceName}}{{else}}Cloudcover Switch{{end}}</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.failed { color: red; }
</style>
</head>
<body>
<h1>{{if .Config.DeviceName}}{{.Config.DeviceName}}{{else}}Cloudcover Switch{{end}}</h1>

<h2>Outputs</h2>
<table>
{{with .LastCycle}}
<tr><th>Main</th><td id="main-state" class="{{if .Decision.ActivateMain}}on{{else}}off{{end}}">{{onOff .Decision.ActivateMain}}</td></tr>
<tr><th>Indicators</th><td>{{.Decision.IndicatorCount}} / {{$.Config.TotalIndicators}}</td></tr>
<tr><th>Pin off</th><td>{{.State.PinOffHour}}:00</td></tr>
<tr><th>Cloud cover</th><td>{{printf "%.1f" .State.CurrentCloudCover}}%</td></tr>
<tr><th>Fetched today</th><td>{{if .State.WeatherFetchedToday}}yes{{else}}no{{end}}</td></tr>
{{else}}
<tr><th>Main</th><td id="main-state" class="unknown">UNKNOWN</td></tr>
{{end}}
</table>

<h2>Last cycle</h2>
<table>
{{with .LastCycle}}
<tr><th>Local time</th><td>{{.Local.Time.Format "2006-01-02 15:04:05"}} {{.Zone}}</td></tr>
<tr><th>Fetch</th><td class="{{if eq (printf "%s" .Fetch) "FAILED"}}failed{{end}}">{{.Fetch}}{{if .FetchError}} ({{.FetchError}}){{end}}</td></tr>
<tr><th>Sleep</th><td>{{.SleepSeconds}}s{{if .SleepFallback}} (fallback){{end}}</td></tr>
{{else}}
<tr><th>Local time</th><td>no cycle yet</td></tr>
{{end}}
{{if not .NextWake.IsZero}}<tr><th>Next wake</th><td>{{.NextWake.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>{{end}}
<tr><th>Cycles</th><td>{{.Cycles}}</td></tr>
<tr><th>Fetch failures</th><td>{{.FetchFailures}}</td></tr>
{{if .LastError}}<tr><th>Last error</th><td class="failed">{{.LastError}}</td></tr>{{end}}
</table>

{{if .History}}
<h2>History</h2>
<table>
<tr><th>Local time</th><th>Main</th><th>Fetch</th></tr>
{{range .History}}<tr><td>{{.LocalTime}}</td><td>{{onOff .Active}}</td><td>{{.Fetch}}</td></tr>
{{end}}
</table>
{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Timezone</th><td>{{.Config.Timezone}}</td></tr>
<tr><th>Location</th><td>{{.Config.Latitude}}, {{.Config.Longitude}}</td></tr>
<tr><th>Window start</th><td>{{.Config.ActivationStartHour}}:00</td></tr>
<tr><th>Forecast check</th><td>{{.Config.WeatherCheckHour}}:00</td></tr>
<tr><th>State</th><td>{{.Config.StateDriver}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/cycles.json">Cycles</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, history []store.CycleRecord) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime  time.Duration
		History []store.CycleRecord
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		History:  history,
	}
	indexTmpl.Execute(w, data)
}
