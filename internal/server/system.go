package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"modelkeep/internal/api"
	"modelkeep/internal/logging"
	"modelkeep/internal/version"
)

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	s.startMaintenance(w, s.maint.StartCheck, "Check started")
}

func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	s.startMaintenance(w, s.maint.StartClean, "Clean started")
}

// Busy and genuine failures both land as err in the body; the original
// surface never distinguished them with status codes.
func (s *Server) startMaintenance(w http.ResponseWriter, start func(context.Context) error, msg string) {
	if err := start(s.baseCtx); err != nil {
		s.writeJSON(w, http.StatusOK, api.CommonResponse{Err: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, api.CommonResponse{Msg: msg})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListJobs(r.Context(), 100)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, api.CommonResponse{Err: err.Error()})
		return
	}
	infos := make([]api.JobInfo, 0, len(jobs))
	for _, job := range jobs {
		infos = append(infos, api.JobInfo{
			ID:          job.ID,
			Description: job.Description,
			Error:       job.Error,
			State:       string(job.State),
			CreatedAt:   job.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:   job.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: infos})
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.store.ListTags(r.Context())
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, api.CommonResponse{Err: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, api.TagListResponse{Tags: tags})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, api.CommonResponse{Err: err.Error()})
		return
	}

	roots := make([]api.RootStatus, 0, len(s.cfg.Library.Roots))
	for _, label := range s.cfg.SortedLabels() {
		root, _ := s.cfg.RootFor(label)
		status := api.RootStatus{Label: label, Path: root}
		var fs unix.Statfs_t
		if err := unix.Statfs(root, &fs); err == nil {
			status.FreeBytes = fs.Bavail * uint64(fs.Bsize)
		}
		roots = append(roots, status)
	}

	s.writeJSON(w, http.StatusOK, api.StatusResponse{
		Version:         version.Version,
		PID:             os.Getpid(),
		UptimeSeconds:   int64(time.Since(s.startedAt).Seconds()),
		DatabasePath:    s.cfg.DatabasePath(),
		TotalEntries:    stats.TotalEntries,
		LiveEntries:     stats.LiveEntries,
		DuplicateGroups: stats.DuplicateGroups,
		RunningJobs:     stats.RunningJobs,
		Roots:           roots,
	})
}

// handleEvents bridges the hub onto an SSE stream: the greeting arrives as
// the first data frame, probes render as comment lines so clients see
// traffic without parsing events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sub)

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, open := <-sub.C():
			if !open {
				return
			}
			if frame.Ping {
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				flusher.Flush()
				continue
			}
			data, err := json.Marshal(api.EventMessage{
				Level: string(frame.Msg.Level),
				Text:  frame.Msg.Text,
			})
			if err != nil {
				s.logger.Warn("encode event", logging.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
