package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bryan-buckman/crabnews/internal/app"
	"github.com/bryan-buckman/crabnews/internal/config"
	"github.com/bryan-buckman/crabnews/internal/model"
	"github.com/go-chi/chi/v5"
)

// --- View Handlers ---

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.host.Current())
}

// handleEvents streams every rendered view as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	views, cancel := s.host.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	send := func(v app.ViewModel) bool {
		data, err := json.Marshal(v)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "event: view\ndata: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}
	if !send(s.host.Current()) {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case v := <-views:
			if !send(v) {
				return
			}
		}
	}
}

func (s *Server) handleSetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs := s.host.Current().Preferences
	if !decode(w, r, &prefs) {
		return
	}
	if err := config.ValidatePreferences(prefs); err != nil {
		http.Error(w, fmt.Sprintf("Invalid preferences: %v", err), http.StatusBadRequest)
		return
	}
	s.dispatch(w, r, app.SetPreferences{Preferences: prefs})
}

// --- Account Handlers ---

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type string `json:"type"`
	}
	if !decode(w, r, &req) {
		return
	}
	t, err := model.ParseAccountType(req.Type)
	if err != nil {
		// Let the core report the unknown type.
		t = model.AccountType(req.Type)
	}
	s.dispatch(w, r, app.CreateAccount{Type: t})
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, app.DeleteAccount{Account: accountParam(r)})
}

func (s *Server) handleRenameAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.dispatch(w, r, app.RenameAccount{Account: accountParam(r), Name: model.AccountName(req.Name)})
}

func (s *Server) handleSelectAccount(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, app.SelectAccount{Account: accountParam(r)})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, _, err := r.FormFile("opml")
	if err != nil {
		http.Error(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	text, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read upload", http.StatusBadRequest)
		return
	}
	s.dispatch(w, r, app.ImportDocument{Account: accountParam(r), Text: string(text)})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, app.ExportSubscriptions{Account: accountParam(r)})
}

// handleDownload returns the account's OPML as an attachment.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := accountParam(r)
	snaps, err := s.host.Snapshot(r.Context())
	if err != nil {
		http.Error(w, "Failed to export", http.StatusInternalServerError)
		return
	}
	for _, snap := range snaps {
		if snap.Name != name {
			continue
		}
		w.Header().Set("Content-Type", "application/xml")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name.String()+".opml"))
		_, _ = w.Write(snap.OPML)
		return
	}
	http.Error(w, "Account not found", http.StatusNotFound)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, app.RefreshAccount{Account: accountParam(r)})
}

// --- Folder Handlers ---

func (s *Server) handleAddFolder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.dispatch(w, r, app.AddFolder{Account: accountParam(r), Folder: model.FolderName(req.Name)})
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, app.DeleteFolder{Account: accountParam(r), Folder: model.FolderName(chi.URLParam(r, "folder"))})
}

func (s *Server) handleRenameFolder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.dispatch(w, r, app.RenameFolder{
		Account: accountParam(r),
		Old:     model.OldFolderName(chi.URLParam(r, "folder")),
		New:     model.NewFolderName(req.Name),
	})
}

// --- Subscription Handlers ---

func (s *Server) handleAddSubscription(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Folder string `json:"folder"`
		Title  string `json:"title"`
		Link   string `json:"link"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.dispatch(w, r, app.AddSubscription{
		Account: accountParam(r),
		Folder:  model.FolderPtr(req.Folder),
		Title:   model.SubscriptionTitle(req.Title),
		Link:    model.SubscriptionLink(req.Link),
	})
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, app.DeleteSubscription{
		Account: accountParam(r),
		Folder:  folderQuery(r),
		Title:   model.SubscriptionTitle(chi.URLParam(r, "title")),
	})
}

func (s *Server) handleRenameSubscription(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Folder string `json:"folder"`
		Link   string `json:"link"`
		Name   string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.dispatch(w, r, app.RenameSubscription{
		Account: accountParam(r),
		Folder:  model.FolderPtr(req.Folder),
		Link:    model.SubscriptionLink(req.Link),
		Old:     model.OldSubscriptionName(chi.URLParam(r, "title")),
		New:     model.NewSubscriptionName(req.Name),
	})
}

func (s *Server) handleMoveSubscription(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.dispatch(w, r, app.MoveSubscription{
		Account: accountParam(r),
		Title:   model.SubscriptionTitle(chi.URLParam(r, "title")),
		From:    model.FolderPtr(req.From),
		To:      model.FolderPtr(req.To),
	})
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, app.FetchFeed{
		Account: accountParam(r),
		Folder:  folderQuery(r),
		Title:   model.SubscriptionTitle(chi.URLParam(r, "title")),
	})
}

// --- Helpers ---

// dispatch sends ev and answers with the resulting view. Domain failures are
// carried in the view's notification, not in the status code.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, ev app.Event) {
	view, err := s.host.Dispatch(r.Context(), ev)
	if err != nil {
		s.logger.Error().Err(err).Str("event", fmt.Sprintf("%T", ev)).Msg("dispatch failed")
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func accountParam(r *http.Request) model.AccountName {
	return model.AccountName(chi.URLParam(r, "account"))
}

// folderQuery reads ?folder=; absent or empty means root.
func folderQuery(r *http.Request) *model.FolderName {
	return model.FolderPtr(r.URL.Query().Get("folder"))
}
