package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"call-intel-go/internal/aggregator"
	"call-intel-go/internal/apperrors"
	"call-intel-go/internal/events"
	"call-intel-go/internal/logger"
	"call-intel-go/internal/metrics"
	"call-intel-go/internal/processor"
	"call-intel-go/internal/types"
)

// Store is the read side of the Analysis Store plus the CRM context writer.
type Store interface {
	GetAnalysis(ctx context.Context, callID string) (types.CallAnalysis, error)
	ListAnalysesByRep(ctx context.Context, repID string, limit int) ([]types.CallAnalysis, error)
	ListCoachingSessions(ctx context.Context, repID string, limit int) ([]types.CoachingSession, error)
	SaveContext(ctx context.Context, cc types.CallContext) error
}

type EventHandler interface {
	HandleEvent(ctx context.Context, ev types.RecordingEvent) (processor.Result, error)
}

// rollupWindow is how many recent analyses feed a rep summary.
const rollupWindow = 200

type Server struct {
	store    Store
	events   EventHandler
	gatherer prometheus.Gatherer
	log      *logger.Logger
}

// NewServer wires the HTTP surface. events may be nil, in which case the
// webhook route is not registered.
func NewServer(store Store, ev EventHandler, gatherer prometheus.Gatherer, log *logger.Logger) *Server {
	if log == nil {
		log = logger.New()
	}
	return &Server{store: store, events: ev, gatherer: gatherer, log: log.Component("api")}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})
	if s.gatherer != nil {
		mux.Handle("GET /metrics", metrics.Handler(s.gatherer))
	}
	mux.HandleFunc("GET /analyses/{callId}", s.getAnalysis)
	mux.HandleFunc("GET /reps/{repId}/summary", s.repSummary)
	mux.HandleFunc("GET /reps/{repId}/coaching", s.repCoaching)
	mux.HandleFunc("PUT /calls/{callId}/context", s.putContext)
	if s.events != nil {
		mux.HandleFunc("POST /events/recording-completed", s.recordingCompleted)
	}
	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			return
		}
		s.log.WithRequest(r).WithField("duration_ms", time.Since(start).Milliseconds()).Info("request handled")
	})
}

func (s *Server) getAnalysis(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.GetAnalysis(r.Context(), r.PathValue("callId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) repSummary(w http.ResponseWriter, r *http.Request) {
	repID := r.PathValue("repId")
	limit := queryInt(r, "limit", aggregator.DefaultLimit)
	analyses, err := s.store.ListAnalysesByRep(r.Context(), repID, rollupWindow)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, aggregator.Summarize(repID, analyses, limit))
}

func (s *Server) repCoaching(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListCoachingSessions(r.Context(), r.PathValue("repId"), queryInt(r, "limit", 20))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// putContext records what the CRM knows about a call so the processor can
// attribute it to a rep. It is expected before the recording completes.
func (s *Server) putContext(w http.ResponseWriter, r *http.Request) {
	var cc types.CallContext
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&cc); err != nil {
		s.writeError(w, r, apperrors.Wrap(apperrors.ErrValidation, "api.put_context", err))
		return
	}
	cc.CallID = r.PathValue("callId")
	if err := s.store.SaveContext(r.Context(), cc); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cc)
}

// recordingCompleted accepts the provider's status callback as JSON or as a
// form post.
func (s *Server) recordingCompleted(w http.ResponseWriter, r *http.Request) {
	var ev types.RecordingEvent
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			s.writeError(w, r, apperrors.Wrap(apperrors.ErrValidation, "api.recording_completed", err))
			return
		}
		if ev, err = events.Decode(body); err != nil {
			s.writeError(w, r, err)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			s.writeError(w, r, apperrors.Wrap(apperrors.ErrValidation, "api.recording_completed", err))
			return
		}
		secs, _ := strconv.Atoi(r.PostForm.Get("RecordingDuration"))
		ev = types.RecordingEvent{
			CallSid:          r.PostForm.Get("CallSid"),
			RecordingSid:     r.PostForm.Get("RecordingSid"),
			AccountSid:       r.PostForm.Get("AccountSid"),
			RecordingStatus:  strings.ToLower(r.PostForm.Get("RecordingStatus")),
			RecordingSeconds: secs,
		}
	}

	res, err := s.events.HandleEvent(r.Context(), ev)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrTranscription):
		status = http.StatusBadGateway
	}
	if status >= 500 {
		s.log.WithRequest(r).WithField("error", err.Error()).Error("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
