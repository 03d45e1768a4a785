package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/morezero/record-plugins/pkg/registration"
)

// HealthOutput is the /health response body.
type HealthOutput struct {
	Status    string       `json:"status"`
	Plugin    string       `json:"plugin"`
	Subject   string       `json:"subject"`
	Checks    HealthChecks `json:"checks"`
	Timestamp string       `json:"timestamp"`
}

// HealthChecks reports each dependency. Database is nil when trace persistence is off.
type HealthChecks struct {
	Comms    bool  `json:"comms"`
	Database *bool `json:"database,omitempty"`
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome())
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.HandleFunc("/registration", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, redacted(s.reg))
	})
	return mux
}

// redacted returns a copy of reg without its secure configuration.
func redacted(reg *registration.Registration) registration.Registration {
	out := *reg
	out.SecureConfiguration = ""
	return out
}

func (s *Server) health(ctx context.Context) *HealthOutput {
	out := &HealthOutput{
		Status:    "healthy",
		Plugin:    s.reg.Name,
		Subject:   s.subject,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	out.Checks.Comms = s.connected != nil && s.connected()
	if !out.Checks.Comms {
		out.Status = "unhealthy"
	}
	if s.db != nil {
		ok := s.db.Ping(ctx) == nil
		out.Checks.Database = &ok
		if !ok {
			out.Status = "unhealthy"
		}
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
	defer cancel()

	h := s.health(ctx)
	status := http.StatusOK
	if h.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(fmt.Sprintf("%s - json encode: %v", logPrefix, err))
	}
}

// homePageTemplate renders the plugin, its health and its registered steps.
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Health.Plugin}} – Plugin Host</title>
  <style>
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    h1, h2 { color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
    table { border-collapse: collapse; max-width: 900px; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; }
    th { background: #f0f4f8; color: #0066cc; }
  </style>
</head>
<body>
  <h1>{{.Health.Plugin}} {{.Version}}</h1>
  {{if .Description}}<p>{{.Description}}</p>{{end}}
  <p>Subject: {{.Health.Subject}}</p>
  <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>

  <h2>Steps</h2>
  {{if not .Steps}}
  <p>No steps registered; every message is accepted.</p>
  {{else}}
  <table>
    <thead><tr><th>Message</th><th>Primary entity</th><th>Stage</th></tr></thead>
    <tbody>
      {{range .Steps}}
      <tr><td>{{.Message}}</td><td>{{if .PrimaryEntity}}{{.PrimaryEntity}}{{else}}*{{end}}</td><td>{{.Stage}}</td></tr>
      {{end}}
    </tbody>
  </table>
  {{end}}
</body>
</html>
`

func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()

		data := struct {
			Health      *HealthOutput
			Version     string
			Description string
			Steps       []registration.Step
		}{s.health(ctx), s.reg.Version, s.reg.Description, s.reg.Steps}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", logPrefix, err))
		}
	}
}
