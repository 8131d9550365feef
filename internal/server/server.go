// Package server is the read-only dashboard over the pipeline
// artifacts. It never mutates them.
package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/yuin/goldmark"

	"marketintel/internal/config"
	"marketintel/internal/database"
	"marketintel/internal/dataset"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Server is the HTTP server for the market dashboard.
type Server struct {
	db    *database.DB
	paths config.Paths
	pages map[string]*template.Template
	mux   *http.ServeMux
}

// New creates a new Server over the database and artifact paths.
func New(db *database.DB, paths config.Paths) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"derefStr": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"deref": func(v *float64) string {
			if v == nil {
				return ""
			}
			return fmt.Sprintf("%.2f", *v)
		},
		"derefInt": func(v *int64) string {
			if v == nil {
				return ""
			}
			return fmt.Sprintf("%d", *v)
		},
		"pct": func(v float64) string {
			return fmt.Sprintf("%.1f%%", v*100)
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"index.html", "apps.html", "insights.html", "d2c.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, paths: paths, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Routes
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/apps", s.handleApps)
	s.mux.HandleFunc("/insights", s.handleInsights)
	s.mux.HandleFunc("/d2c", s.handleD2C)
	s.mux.HandleFunc("/download/merged.csv", s.downloadHandler(s.paths.MergedApps, "merged_apps.csv"))
	s.mux.HandleFunc("/download/d2c.csv", s.downloadHandler(s.paths.D2CCleaned, "d2c_cleaned.csv"))
}

// categoryBar is one row of the overview category chart. Width is a
// percentage of the largest category.
type categoryBar struct {
	Category string
	Count    int
	Width    int
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	stats, err := s.db.GetStats()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	runs, _ := s.db.GetRecentRuns(10)

	apps := s.readMerged()
	matched := 0
	for _, a := range apps {
		if a.OnBothStores {
			matched++
		}
	}

	s.render(w, "index.html", map[string]any{
		"Stats":      stats,
		"Runs":       runs,
		"TotalApps":  len(apps),
		"Matched":    matched,
		"Categories": categoryBars(apps, 10),
	})
}

func (s *Server) handleApps(w http.ResponseWriter, r *http.Request) {
	apps := s.readMerged()

	category := strings.TrimSpace(r.URL.Query().Get("category"))
	platform := r.URL.Query().Get("platform")

	var filtered []dataset.MergedApp
	for _, a := range apps {
		if category != "" && !strings.EqualFold(a.Category, category) {
			continue
		}
		if platform == "both" && !a.OnBothStores {
			continue
		}
		filtered = append(filtered, a)
	}

	s.render(w, "apps.html", map[string]any{
		"Apps":       filtered,
		"Total":      len(apps),
		"Category":   category,
		"Platform":   platform,
		"Categories": categoryNames(apps),
	})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	report, _ := s.db.GetInsightReport(database.TrackApps)
	s.render(w, "insights.html", map[string]any{
		"Report": report,
	})
}

func (s *Server) handleD2C(w http.ResponseWriter, r *http.Request) {
	report, _ := s.db.GetInsightReport(database.TrackD2C)

	var records []dataset.CampaignRecord
	if _, err := os.Stat(s.paths.D2CCleaned); err == nil {
		records, _ = dataset.ReadCampaignCSV(s.paths.D2CCleaned)
	}

	s.render(w, "d2c.html", map[string]any{
		"Report":    report,
		"Campaigns": records,
	})
}

// downloadHandler serves a pipeline artifact as a CSV attachment.
func (s *Server) downloadHandler(path, filename string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := os.Stat(path); err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		http.ServeFile(w, r, path)
	}
}

// readMerged loads the merged dataset, empty when the merge phase has
// not run yet.
func (s *Server) readMerged() []dataset.MergedApp {
	if _, err := os.Stat(s.paths.MergedApps); err != nil {
		return nil
	}
	apps, err := dataset.ReadMergedCSV(s.paths.MergedApps)
	if err != nil {
		log.Printf("Failed to read merged dataset: %v", err)
		return nil
	}
	return apps
}

func categoryBars(apps []dataset.MergedApp, n int) []categoryBar {
	counts := make(map[string]int)
	for _, a := range apps {
		if a.Category != "" {
			counts[a.Category]++
		}
	}

	bars := make([]categoryBar, 0, len(counts))
	for c, count := range counts {
		bars = append(bars, categoryBar{Category: c, Count: count})
	}
	sort.Slice(bars, func(i, j int) bool {
		if bars[i].Count != bars[j].Count {
			return bars[i].Count > bars[j].Count
		}
		return bars[i].Category < bars[j].Category
	})
	if len(bars) > n {
		bars = bars[:n]
	}
	if len(bars) > 0 {
		max := bars[0].Count
		for i := range bars {
			bars[i].Width = bars[i].Count * 100 / max
		}
	}
	return bars
}

func categoryNames(apps []dataset.MergedApp) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, a := range apps {
		if a.Category == "" {
			continue
		}
		if _, ok := seen[a.Category]; ok {
			continue
		}
		seen[a.Category] = struct{}{}
		names = append(names, a.Category)
	}
	sort.Strings(names)
	return names
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, paths config.Paths, port int) error {
	srv, err := New(db, paths)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Dashboard listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
