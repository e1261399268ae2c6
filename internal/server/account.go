package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/model"
	"github.com/RegistryAccord/vidhub-go/internal/views"
)

func (s *Server) handleChatList(w http.ResponseWriter, r *http.Request) {
	c := views.NewChat(s.gw, providerFrom(r.Context()), s.logger)
	if err := c.Load(r.Context(), ""); err != nil {
		s.writeError(w, r, err)
		return
	}
	c.SetSearch(r.URL.Query().Get("q"))
	s.writePage(w, r, c.Snapshot())
}

func (s *Server) handleChatThread(w http.ResponseWriter, r *http.Request) {
	c := views.NewChat(s.gw, providerFrom(r.Context()), s.logger)
	if err := c.Load(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writePage(w, r, c.Snapshot())
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c := views.NewChat(s.gw, providerFrom(r.Context()), s.logger)
	if err := c.Load(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := c.Send(r.Context(), req.Content); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSuccess(w, http.StatusCreated, c.Snapshot())
}

func (s *Server) handleStartConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c := views.NewChat(s.gw, providerFrom(r.Context()), s.logger)
	chat, err := c.StartConversation(r.Context(), req.Username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, chat)
}

func (s *Server) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	c := views.NewChat(s.gw, providerFrom(r.Context()), s.logger)
	out, err := c.SearchUsers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if out == nil {
		out = []model.Profile{}
	}
	s.writeSuccess(w, http.StatusOK, out)
}

func (s *Server) wallet(r *http.Request) (*views.Wallet, error) {
	c := views.NewWallet(s.gw, providerFrom(r.Context()), s.processor, s.logger)
	return c, c.Load(r.Context())
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	c, err := s.wallet(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writePage(w, r, c.Snapshot())
}

type moneyRequest struct {
	Amount string `json:"amount"`
	Method string `json:"method,omitempty"`
}

type moneyResult struct {
	Transaction *model.Transaction `json:"transaction"`
	Wallet      views.WalletView   `json:"wallet"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req moneyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.wallet(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	txn, err := c.Deposit(r.Context(), req.Amount, req.Method)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSuccess(w, http.StatusCreated, moneyResult{Transaction: txn, Wallet: c.Snapshot()})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req moneyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.wallet(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	txn, err := c.Withdraw(r.Context(), req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSuccess(w, http.StatusCreated, moneyResult{Transaction: txn, Wallet: c.Snapshot()})
}

func (s *Server) settings(r *http.Request) (*views.Settings, error) {
	c := views.NewSettings(s.gw, providerFrom(r.Context()), s.logger)
	return c, c.Load(r.Context())
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	c, err := s.settings(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writePage(w, r, c.Snapshot())
}

func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	var form views.ProfileForm
	if err := decodeJSON(w, r, &form); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.settings(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := c.SaveProfile(r.Context(), form); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, c.Snapshot())
}

// handleProfileImage accepts a multipart "file" part for the avatar or banner.
func (s *Server) handleProfileImage(w http.ResponseWriter, r *http.Request) {
	max := s.uploads.Limits.MaxImageSize
	if max > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, max+multipartOverrun)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.writeError(w, r, errordefs.New(errordefs.VH_MEDIA_SIZE, "image is too large", ""))
			return
		}
		s.writeError(w, r, badRequest("multipart field \"file\" is required"))
		return
	}
	defer file.Close()
	if max > 0 && header.Size > max {
		s.writeError(w, r, errordefs.New(errordefs.VH_MEDIA_SIZE, "image is too large", ""))
		return
	}

	c, err := s.settings(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := c.UploadImage(r.Context(), chi.URLParam(r, "kind"), file, header.Size, header.Header.Get("Content-Type")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, c.Snapshot())
}

func (s *Server) handleSavePreferences(w http.ResponseWriter, r *http.Request) {
	var prefs model.Preferences
	if err := decodeJSON(w, r, &prefs); err != nil {
		s.writeError(w, r, err)
		return
	}
	c := views.NewSettings(s.gw, providerFrom(r.Context()), s.logger)
	saved, err := c.SavePreferences(r.Context(), prefs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, saved)
}

// handleSignOut ends the session and clears the session cookie, even when the
// remote revocation fails.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	c := views.NewSettings(s.gw, providerFrom(r.Context()), s.logger)
	err := c.SignOut(r.Context())
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if wantsHTML(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.writeSuccess(w, http.StatusOK, map[string]bool{"signedOut": true})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	c := views.NewNotifications(s.gw, providerFrom(r.Context()), s.logger)
	if err := c.Load(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writePage(w, r, c.Snapshot())
}

// handleOpenNotification marks a notification read and returns its target.
func (s *Server) handleOpenNotification(w http.ResponseWriter, r *http.Request) {
	c := views.NewNotifications(s.gw, providerFrom(r.Context()), s.logger)
	if err := c.Load(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	link, err := c.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, map[string]interface{}{"link": link, "unread": c.Unread()})
}
