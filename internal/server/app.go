package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/model"
	"github.com/RegistryAccord/vidhub-go/internal/present"
	"github.com/RegistryAccord/vidhub-go/internal/upload"
	"github.com/RegistryAccord/vidhub-go/internal/views"
)

// handleLanding is the public landing page.
func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	st := providerFrom(r.Context()).Current()
	s.writePage(w, r, map[string]interface{}{
		"signedIn": st.SignedIn(),
		"enter":    "/app",
	})
}

// handleAuth tells the client where to go after signing in.
func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	redirect := r.URL.Query().Get("redirect")
	if !strings.HasPrefix(redirect, "/") || strings.HasPrefix(redirect, "//") {
		redirect = "/app"
	}
	if providerFrom(r.Context()).Current().SignedIn() && wantsHTML(r) {
		http.Redirect(w, r, redirect, http.StatusSeeOther)
		return
	}
	s.writePage(w, r, map[string]string{"redirect": redirect})
}

type homePage struct {
	views.HomeView
	Cards map[views.HomeSection][]present.VideoCard `json:"cards"`
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	h := views.NewHome(s.gw, s.logger)
	if err := h.Load(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	snap := h.Snapshot()
	now := time.Now()
	cards := make(map[views.HomeSection][]present.VideoCard, len(snap.Groups))
	for section, g := range snap.Groups {
		cards[section] = present.Cards(g.Videos, now)
	}
	s.writePage(w, r, homePage{HomeView: snap, Cards: cards})
}

type videoPage struct {
	views.VideoView
	Comments *views.CommentThreadView `json:"comments,omitempty"`
	ShareURL string                   `json:"shareUrl"`
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	v := views.NewVideo(s.gw, providerFrom(r.Context()), s.logger)
	if err := v.Load(r.Context(), id, r.URL.Query().Get("comment") == "true"); err != nil {
		s.writeError(w, r, err)
		return
	}
	out := videoPage{VideoView: v.Snapshot(), ShareURL: present.ShareURL(s.baseURL, id)}
	if out.ShowComments && v.Comments != nil {
		c := v.Comments.Snapshot()
		out.Comments = &c
	}
	s.writePage(w, r, out)
}

// handleUpdateVideo lets the owner edit a video's details.
func (s *Server) handleUpdateVideo(w http.ResponseWriter, r *http.Request) {
	user, _ := providerFrom(r.Context()).Require()
	var req model.VideoUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Title != nil {
		if err := upload.CheckTitle(*req.Title); err != nil {
			s.writeError(w, r, err)
			return
		}
		title := strings.TrimSpace(*req.Title)
		req.Title = &title
	}
	id := chi.URLParam(r, "id")
	v, err := s.gw.GetVideo(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if v.UserID != user.ID {
		s.writeError(w, r, errordefs.New(errordefs.VH_AUTHZ, "Only the owner can edit this video", ""))
		return
	}
	updated, err := s.gw.UpdateVideo(r.Context(), id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, updated)
}

type commentsPage struct {
	views.CommentThreadView
	Tree []present.CommentNode `json:"tree"`
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	t := views.NewCommentThread(s.gw, providerFrom(r.Context()), chi.URLParam(r, "id"), r.URL.Query().Get("parent"), s.logger)
	if err := t.Load(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	snap := t.Snapshot()
	s.writePage(w, r, commentsPage{CommentThreadView: snap, Tree: present.CommentTree(snap.Comments)})
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content  string `json:"content"`
		ParentID string `json:"parentId"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	t := views.NewCommentThread(s.gw, providerFrom(r.Context()), chi.URLParam(r, "id"), req.ParentID, s.logger)
	t.SetDraft(req.Content)
	c, err := t.Submit(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSuccess(w, http.StatusCreated, c)
}

type toggleResult struct {
	State model.Toggled `json:"state"`
	Count int64         `json:"count"`
}

// handleLike toggles the viewer's like. It talks to the gateway directly
// because loading the watch page would count a view.
func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	user, _ := providerFrom(r.Context()).Require()
	id := chi.URLParam(r, "id")
	t, err := s.gw.ToggleLike(r.Context(), id, user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	v, err := s.gw.GetVideo(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, toggleResult{State: t, Count: v.Likes})
}

func (s *Server) handleVideoSubscribe(w http.ResponseWriter, r *http.Request) {
	v, err := s.gw.GetVideo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.toggleSubscription(w, r, v.UserID)
}

func (s *Server) toggleSubscription(w http.ResponseWriter, r *http.Request, channelID string) {
	user, _ := providerFrom(r.Context()).Require()
	t, err := s.gw.ToggleSubscription(r.Context(), channelID, user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.gw.GetProfile(r.Context(), channelID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, toggleResult{State: t, Count: p.TotalSubscribers})
}

func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	c := views.NewChannel(s.gw, providerFrom(r.Context()), s.logger)
	if err := c.Load(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writePage(w, r, c.Snapshot())
}

func (s *Server) handleChannelSubscribe(w http.ResponseWriter, r *http.Request) {
	c := views.NewChannel(s.gw, providerFrom(r.Context()), s.logger)
	if err := c.Load(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := c.ToggleSubscribe(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, c.Snapshot())
}

func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	p := views.NewPlaylist(s.gw, providerFrom(r.Context()), s.logger)
	if err := p.Load(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writePage(w, r, p.Snapshot())
}

func (s *Server) handleAddToPlaylist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VideoID string `json:"videoId"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p := views.NewPlaylist(s.gw, providerFrom(r.Context()), s.logger)
	if err := p.Load(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := p.AddVideo(r.Context(), req.VideoID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSuccess(w, http.StatusCreated, p.Snapshot())
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	c := views.NewSubscriptions(s.gw, providerFrom(r.Context()), s.logger)
	if err := c.Load(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	c.SetFilter(r.URL.Query().Get("channel"))
	s.writePage(w, r, c.Snapshot())
}
