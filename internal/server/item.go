package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"modelkeep/internal/api"
	"modelkeep/internal/catalog"
	"modelkeep/internal/downloads"
	"modelkeep/internal/fileutil"
	"modelkeep/internal/logging"
)

// videoExts are probed in order for a sibling preview clip.
var videoExts = []string{"mp4", "webm"}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if idStr := strings.TrimSpace(query.Get("id")); idStr != "" {
		s.searchByID(w, r, idStr)
		return
	}

	limit := s.pageSize()
	if count, err := strconv.ParseInt(query.Get("count"), 10, 64); err == nil && count > 0 {
		limit = count
	}
	page, _ := strconv.ParseInt(query.Get("page"), 10, 64)
	if page < 1 {
		page = 1
	}

	result, err := s.store.Search(r.Context(), catalog.SearchParams{
		Text:          query.Get("search"),
		Limit:         limit,
		Offset:        (page - 1) * limit,
		TagOnly:       boolParam(query.Get("tag_only")),
		DuplicateOnly: boolParam(query.Get("duplicate_only")),
	})
	if err != nil {
		s.logger.Error("search failed", logging.Error(err))
		s.writeJSON(w, http.StatusOK, api.SearchResponse{Items: []api.ModelInfo{}, Err: err.Error()})
		return
	}

	items := make([]api.ModelInfo, 0, len(result.Entries))
	ids := make([]int64, 0, len(result.Entries))
	for _, entry := range result.Entries {
		items = append(items, s.modelInfo(entry))
		ids = append(ids, entry.ID)
	}

	tags, err := s.store.TagsForEntries(r.Context(), ids)
	if err != nil {
		s.logger.Warn("aggregate result tags", logging.Error(err))
	}

	s.writeJSON(w, http.StatusOK, api.SearchResponse{
		Items:     items,
		TotalPage: result.ApproxTotal/limit + 1,
		Tags:      tags,
	})
}

func (s *Server) searchByID(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeJSON(w, http.StatusOK, api.SearchResponse{Items: []api.ModelInfo{}, Err: "invalid id"})
		return
	}
	entry, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeJSON(w, http.StatusOK, api.SearchResponse{Items: []api.ModelInfo{}, Err: err.Error()})
		return
	}

	tags, err := s.store.TagsForEntries(r.Context(), []int64{entry.ID})
	if err != nil {
		s.logger.Warn("aggregate result tags", logging.Error(err))
	}
	s.writeJSON(w, http.StatusOK, api.SearchResponse{
		Items:     []api.ModelInfo{s.modelInfo(*entry)},
		TotalPage: 1,
		Tags:      tags,
	})
}

// modelInfo enriches one entry with whatever sidecar material is on disk.
// Missing sidecars leave their fields empty rather than failing the request.
func (s *Server) modelInfo(entry catalog.Entry) api.ModelInfo {
	info := api.ModelInfo{
		ID:   entry.ID,
		Name: entry.Name,
		Note: entry.Note,
	}
	if entry.ModelName != "" {
		info.Name = entry.ModelName
	}

	root, ok := s.cfg.RootFor(entry.BaseLabel)
	if !ok {
		info.Path = entry.Path
		return info
	}
	abs := filepath.Join(root, entry.Path)
	info.Path = abs

	if data, err := os.ReadFile(fileutil.SwapExt(abs, "json")); err == nil {
		info.Info = string(data)
	}
	if data, err := os.ReadFile(fileutil.SwapExt(abs, "model.json")); err == nil {
		var model struct {
			Description string `json:"description"`
		}
		if json.Unmarshal(data, &model) == nil {
			info.Description = model.Description
		}
	}

	if previewPath := fileutil.SwapExt(abs, "jpeg"); fileExists(previewPath) {
		info.Preview = servedPath(entry.BaseLabel, fileutil.SwapExt(entry.Path, "jpeg"))
	}
	for _, ext := range videoExts {
		if fileExists(fileutil.SwapExt(abs, ext)) {
			info.VideoPreview = servedPath(entry.BaseLabel, fileutil.SwapExt(entry.Path, ext))
			break
		}
	}
	return info
}

func (s *Server) handleSavedLocation(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	dir, downloaded, err := s.downloader.SavedLocation(r.Context(), query.Get("model_type"), query.Get("blake3"))
	if err != nil {
		s.writeJSON(w, http.StatusOK, api.CommonResponse{Err: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, api.SavedLocationResponse{
		SavedLocation: dir,
		IsDownloaded:  downloaded,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := downloads.Request{
		URL:       query.Get("url"),
		Name:      query.Get("name"),
		Hash:      query.Get("blake3"),
		Dest:      query.Get("dest"),
		ModelType: query.Get("model_type"),
	}

	// Deliberately the daemon context: the transfer must outlive this
	// request.
	if err := s.downloader.Start(s.baseCtx, req); err != nil {
		s.writeJSON(w, http.StatusOK, api.CommonResponse{Err: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, api.CommonResponse{Msg: "Downloading in background"})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()["id"]
	if len(values) == 0 {
		s.writeJSON(w, http.StatusOK, api.CommonResponse{Err: "no ids given"})
		return
	}
	ids := make([]int64, 0, len(values))
	for _, value := range values {
		id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			s.writeJSON(w, http.StatusOK, api.CommonResponse{Err: "invalid id " + value})
			return
		}
		ids = append(ids, id)
	}

	if err := s.maint.Remove(r.Context(), ids); err != nil {
		s.writeJSON(w, http.StatusOK, api.CommonResponse{Err: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, api.CommonResponse{Msg: "Removed"})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var update api.ItemUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.writeJSON(w, http.StatusOK, api.CommonResponse{Err: "invalid request body"})
		return
	}

	if err := s.store.UpdateNote(r.Context(), update.ItemID, update.Note); err != nil {
		s.writeJSON(w, http.StatusOK, api.CommonResponse{Err: err.Error()})
		return
	}
	if err := s.store.ReplaceTags(r.Context(), update.ItemID, strings.Fields(update.Tags)); err != nil {
		s.writeJSON(w, http.StatusOK, api.CommonResponse{Err: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, api.CommonResponse{Msg: "Updated"})
}

func servedPath(label, rel string) string {
	return "/files/" + label + "/" + filepath.ToSlash(rel)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func boolParam(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
