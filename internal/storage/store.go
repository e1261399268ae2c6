// Package storage provides the remote backend boundary: entity tables plus the
// atomic procedures (view increment, like toggle, subscription toggle, wallet
// transaction) that VidHub delegates counter mutations to.
// Both an in-memory and a PostgreSQL implementation are provided.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/RegistryAccord/vidhub-go/internal/model"
)

// Standard errors returned by the storage layer
var (
	ErrNotFound          = errors.New("not found")          // Returned when a row does not exist
	ErrConflict          = errors.New("conflict")           // Returned when a unique constraint is violated
	ErrInsufficientFunds = errors.New("insufficient funds") // Returned when a debit exceeds the balance
)

// Raw results of the toggle procedures, exactly as the backend reports them.
const (
	ResultLiked        = "liked"
	ResultUnliked      = "unliked"
	ResultSubscribed   = "subscribed"
	ResultUnsubscribed = "unsubscribed"
)

// VideoQuery is the backend-level listing query.
type VideoQuery struct {
	PublishedOnly bool
	Category      string
	IsShort       *bool
	UserID        string
	Order         model.Order
	Limit         int // 0 means no limit
}

// PlaylistQuery filters playlist listings.
type PlaylistQuery struct {
	UserID     string
	PublicOnly bool
}

// Store defines the backend operations consumed by the gateway.
type Store interface {
	// Profiles
	CreateProfile(ctx context.Context, p model.Profile) (*model.Profile, error)
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	FindProfileByUsername(ctx context.Context, username string) (*model.Profile, error)
	SearchProfiles(ctx context.Context, prefix string, limit int) ([]model.Profile, error)
	UpdateProfile(ctx context.Context, id string, u model.ProfileUpdate) (*model.Profile, error)

	// Videos
	ListVideos(ctx context.Context, q VideoQuery) ([]model.Video, error)
	GetVideo(ctx context.Context, id string) (*model.Video, error)
	CreateVideo(ctx context.Context, v model.NewVideo) (*model.Video, error)
	UpdateVideo(ctx context.Context, id string, u model.VideoUpdate) (*model.Video, error)
	PublishDueVideos(ctx context.Context, now time.Time) ([]model.Video, error)

	// Atomic procedures
	IncrementVideoView(ctx context.Context, videoID string) error
	ToggleVideoLike(ctx context.Context, videoID, userID string) (string, error)
	ToggleSubscription(ctx context.Context, channelID, subscriberID string) (string, error)
	HasLikedVideo(ctx context.Context, videoID, userID string) (bool, error)
	IsSubscribed(ctx context.Context, channelID, subscriberID string) (bool, error)

	// Comments; parentID "" lists top-level comments
	ListComments(ctx context.Context, videoID, parentID string) ([]model.Comment, error)
	CreateComment(ctx context.Context, c model.NewComment) (*model.Comment, error)

	// Subscriptions
	ListSubscriptions(ctx context.Context, subscriberID string) ([]model.Subscription, error)

	// Playlists
	CreatePlaylist(ctx context.Context, p model.Playlist) (*model.Playlist, error)
	GetPlaylist(ctx context.Context, id string) (*model.Playlist, error)
	ListPlaylists(ctx context.Context, q PlaylistQuery) ([]model.Playlist, error)
	ListPlaylistVideos(ctx context.Context, playlistID string) ([]model.PlaylistVideo, error)
	AddPlaylistVideo(ctx context.Context, playlistID, videoID string) (*model.PlaylistVideo, error)

	// Notifications
	ListNotifications(ctx context.Context, userID string) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) (*model.Notification, error)

	// Chats
	ListChats(ctx context.Context, userID string) ([]model.Chat, error)
	GetChat(ctx context.Context, id string) (*model.Chat, error)
	FindDirectChat(ctx context.Context, userA, userB string) (*model.Chat, error)
	CreateChat(ctx context.Context, c model.NewChat) (*model.Chat, error)
	ListMessages(ctx context.Context, chatID string) ([]model.Message, error)
	CreateMessage(ctx context.Context, m model.NewMessage) (*model.Message, error)

	// Wallets
	CreateWallet(ctx context.Context, w model.Wallet) (*model.Wallet, error)
	GetWalletByUser(ctx context.Context, userID string) (*model.Wallet, error)
	ListTransactions(ctx context.Context, walletID string) ([]model.Transaction, error)
	ApplyTransaction(ctx context.Context, t model.NewTransaction) (*model.Wallet, *model.Transaction, error)

	// Preferences
	GetPreferences(ctx context.Context, userID string) (model.Preferences, error)
	SavePreferences(ctx context.Context, userID string, p model.Preferences) (model.Preferences, error)

	// Ping reports backend reachability for readiness checks.
	Ping(ctx context.Context) error
}
