package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	"beacon/internal/domain"
	"beacon/internal/ports"
	"beacon/internal/services/analytics"
	"beacon/internal/services/scanner"
	scanrunner "beacon/internal/workers/scanrunner"
)

const (
	defaultWaitTimeout = 120
	maxWaitTimeout     = 900
)

// Competitors lists tracked competitors for a brand domain.
type Competitors interface {
	List(ctx context.Context, brandDomain string) ([]domain.CompetitorRecord, error)
}

// Analytics serves derived views over completed scans.
type Analytics interface {
	ShareOfVoice(ctx context.Context, domain string) (analytics.ShareOfVoice, error)
	CompareProviders(ctx context.Context, domain string) ([]analytics.ProviderComparison, error)
	ScoreDelta(ctx context.Context, domain string) (analytics.ScoreDelta, error)
}

type Server struct {
	scanner     ports.Scanner
	profiles    ports.Profiles
	competitors Competitors
	analytics   Analytics
	jobs        ports.JobRepository
	processor   scanrunner.ScanProcessor
	log         *slog.Logger
}

func New(scanner ports.Scanner, profiles ports.Profiles, competitors Competitors, analytics Analytics,
	jobs ports.JobRepository, processor scanrunner.ScanProcessor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		scanner:     scanner,
		profiles:    profiles,
		competitors: competitors,
		analytics:   analytics,
		jobs:        jobs,
		processor:   processor,
		log:         logger.With("module", "http"),
	}
}

// Routes returns a chi.Router with every API endpoint mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.Get("/healthz", s.getHealthz)
	r.Post("/scans", s.postScan)
	r.Get("/scans/{id}", s.getScan)
	r.Get("/profiles/{domain}", s.getProfile)
	r.Get("/competitors/{domain}", s.getCompetitors)
	r.Route("/analytics/{domain}", func(r chi.Router) {
		r.Get("/share-of-voice", s.getShareOfVoice)
		r.Get("/providers", s.getProviders)
		r.Get("/delta", s.getDelta)
	})
	return r
}

func (s *Server) getHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) postScan(w http.ResponseWriter, r *http.Request) {
	var body ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, &runtimeError{code: http.StatusBadRequest, msg: "invalid body"})
		return
	}
	if body.URL == "" {
		s.writeError(w, r, &runtimeError{code: http.StatusBadRequest, msg: "missing url"})
		return
	}
	var wait *bool
	if err := runtime.BindQueryParameter("form", true, false, "wait", r.URL.Query(), &wait); err != nil {
		s.writeError(w, r, &runtimeError{code: http.StatusBadRequest, msg: "invalid wait: " + err.Error()})
		return
	}
	var timeout *int
	if err := runtime.BindQueryParameter("form", true, false, "timeout", r.URL.Query(), &timeout); err != nil {
		s.writeError(w, r, &runtimeError{code: http.StatusBadRequest, msg: "invalid timeout: " + err.Error()})
		return
	}

	id, err := s.scanner.Enqueue(r.Context(), body.URL, body.Form, body.Plan)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if wait == nil || !*wait {
		writeJSON(w, http.StatusAccepted, ScanAccepted{ScanID: id})
		return
	}

	// Blocking path: run the scan here with the worker's processor.
	secs := defaultWaitTimeout
	if timeout != nil && *timeout > 0 {
		secs = min(*timeout, maxWaitTimeout)
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(secs)*time.Second)
	defer cancel()
	if err := scanrunner.ProcessInline(ctx, s.jobs, s.processor, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// A background worker claimed the job first.
			writeJSON(w, http.StatusAccepted, ScanAccepted{ScanID: id})
			return
		}
		s.log.WarnContext(r.Context(), "inline scan failed", "scan_id", id, "error", err)
	}
	scan, err := s.scanner.Get(context.WithoutCancel(ctx), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newScanView(scan))
}

func (s *Server) getScan(w http.ResponseWriter, r *http.Request) {
	var id string
	if err := bindPath(r, "id", &id); err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := uuid.Parse(id); err != nil {
		s.writeError(w, r, &runtimeError{code: http.StatusBadRequest, msg: "invalid scan id"})
		return
	}
	scan, err := s.scanner.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newScanView(scan))
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	var name string
	if err := bindPath(r, "domain", &name); err != nil {
		s.writeError(w, r, err)
		return
	}
	scan, err := s.profiles.GetLatest(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileView(scan))
}

func (s *Server) getCompetitors(w http.ResponseWriter, r *http.Request) {
	var name string
	if err := bindPath(r, "domain", &name); err != nil {
		s.writeError(w, r, err)
		return
	}
	records, err := s.competitors.List(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CompetitorList{Domain: domain.Registrable(name), Competitors: records})
}

func (s *Server) getShareOfVoice(w http.ResponseWriter, r *http.Request) {
	var name string
	if err := bindPath(r, "domain", &name); err != nil {
		s.writeError(w, r, err)
		return
	}
	sov, err := s.analytics.ShareOfVoice(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sov)
}

func (s *Server) getProviders(w http.ResponseWriter, r *http.Request) {
	var name string
	if err := bindPath(r, "domain", &name); err != nil {
		s.writeError(w, r, err)
		return
	}
	cmp, err := s.analytics.CompareProviders(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProviderList{Domain: domain.Registrable(name), Providers: cmp})
}

func (s *Server) getDelta(w http.ResponseWriter, r *http.Request) {
	var name string
	if err := bindPath(r, "domain", &name); err != nil {
		s.writeError(w, r, err)
		return
	}
	delta, err := s.analytics.ScoreDelta(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, delta)
}

func bindPath(r *http.Request, name string, dest *string) error {
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return &runtimeError{code: http.StatusBadRequest, msg: "invalid " + name + ": " + err.Error()}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	msg := "internal error"
	var rt *runtimeError
	switch {
	case errors.As(err, &rt):
		code, msg = rt.code, rt.msg
	case errors.Is(err, domain.ErrNotFound):
		code, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, scanner.ErrInvalidURL):
		code, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		code, msg = http.StatusGatewayTimeout, "timed out"
	}
	fields := []any{"path", r.URL.Path, "status_code", code, "request_id", middleware.GetReqID(r.Context()), "error", err}
	if code >= 500 {
		s.log.ErrorContext(r.Context(), "http request failed", fields...)
	} else {
		s.log.WarnContext(r.Context(), "http request failed", fields...)
	}
	writeJSON(w, code, ErrorResponse{Error: msg})
}

type runtimeError struct {
	code int
	msg  string
}

func (e *runtimeError) Error() string { return e.msg }
