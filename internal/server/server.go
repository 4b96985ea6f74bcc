package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/jwhitaker/patternmine/internal/database"
	"github.com/jwhitaker/patternmine/internal/mining"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

const defaultInsightLimit = 20

// insightTypes are the insight families shown on the niche pages.
var insightTypes = []string{
	mining.TypePhrasePattern,
	mining.TypeStyleEffectiveness,
	mining.TypeSeasonalTrend,
	mining.TypeListingStructure,
	mining.TypeNicheFusion,
}

// Server is the HTTP retrieval server for mined insights.
type Server struct {
	db    *database.DB
	pages map[string]*template.Template
	mux   *http.ServeMux
}

// New creates a new Server.
func New(db *database.DB) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"pct": func(f float64) string {
			return fmt.Sprintf("%.0f%%", f*100)
		},
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"index.html", "niche.html"}
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

	s := &Server{db: db, pages: pages, mux: http.NewServeMux()}
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

	// HTML pages
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/niche/", s.handleNichePage)

	// JSON API
	s.mux.HandleFunc("/api/insights", s.handleInsights)
	s.mux.HandleFunc("/api/niches/", s.handleNiche)
	s.mux.HandleFunc("/api/fusion", s.handleFusion)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	runs, err := s.db.GetRecentRuns(10)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	insights, err := s.db.ListActiveInsights(defaultInsightLimit)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	aggregates, _ := s.db.ListNicheAggregates()

	s.render(w, "index.html", map[string]any{
		"Runs":       runs,
		"Insights":   insights,
		"Aggregates": aggregates,
	})
}

func (s *Server) handleNichePage(w http.ResponseWriter, r *http.Request) {
	niche := strings.ToLower(strings.TrimPrefix(r.URL.Path, "/niche/"))
	if niche == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	detail, err := s.nicheDetail(niche)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "niche.html", map[string]any{
		"Niche":     niche,
		"Aggregate": detail.Aggregate,
		"Fusion":    detail.Fusion,
		"Insights":  detail.Insights,
	})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	insightType := r.URL.Query().Get("type")
	niche := strings.ToLower(r.URL.Query().Get("niche"))
	limit := defaultInsightLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	var insights []database.Insight
	var err error
	if insightType == "" {
		insights, err = s.db.ListActiveInsights(limit)
	} else {
		insights, err = s.db.GetTopInsights(insightType, niche, limit)
	}
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if niche != "" {
		s.bumpQueryCount(niche)
	}

	writeJSON(w, map[string]any{"insights": insights})
}

// nicheDetail is the combined niche view served on the API and the page.
type nicheDetail struct {
	Aggregate *database.NicheAggregate      `json:"aggregate"`
	Fusion    []database.FusionCandidate    `json:"fusion"`
	Insights  map[string][]database.Insight `json:"insights"`
}

func (s *Server) nicheDetail(niche string) (*nicheDetail, error) {
	agg, err := s.db.GetNicheAggregate(niche)
	if err != nil {
		return nil, err
	}
	fusion, err := s.db.GetFusionForNiche(niche)
	if err != nil {
		return nil, err
	}

	insights := make(map[string][]database.Insight)
	for _, it := range insightTypes {
		top, err := s.db.GetTopInsights(it, niche, 5)
		if err != nil {
			return nil, err
		}
		if len(top) > 0 {
			insights[it] = top
		}
	}

	s.bumpQueryCount(niche)
	return &nicheDetail{Aggregate: agg, Fusion: fusion, Insights: insights}, nil
}

func (s *Server) handleNiche(w http.ResponseWriter, r *http.Request) {
	niche := strings.ToLower(strings.TrimPrefix(r.URL.Path, "/api/niches/"))
	if niche == "" || strings.Contains(niche, "/") {
		http.Error(w, "missing niche", http.StatusBadRequest)
		return
	}

	detail, err := s.nicheDetail(niche)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if detail.Aggregate == nil && len(detail.Fusion) == 0 && len(detail.Insights) == 0 {
		http.Error(w, "unknown niche", http.StatusNotFound)
		return
	}
	writeJSON(w, detail)
}

func (s *Server) handleFusion(w http.ResponseWriter, r *http.Request) {
	niche := strings.ToLower(r.URL.Query().Get("niche"))

	var candidates []database.FusionCandidate
	var err error
	if niche == "" {
		candidates, err = s.db.ListFusionCandidates()
	} else {
		candidates, err = s.db.GetFusionForNiche(niche)
		s.bumpQueryCount(niche)
	}
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"fusion": candidates})
}

// bumpQueryCount tracks retrieval interest per niche. Failures are
// logged, never surfaced.
func (s *Server) bumpQueryCount(niche string) {
	if err := s.db.IncrementNicheQueryCount(niche); err != nil {
		log.Printf("bump query count for %s: %v", niche, err)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("encode response: %v", err)
	}
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
func Serve(db *database.DB, port int) error {
	srv, err := New(db)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
