package views

import (
	"context"

	"github.com/RegistryAccord/vidhub-go/internal/config"
	"github.com/RegistryAccord/vidhub-go/internal/media"
	"github.com/RegistryAccord/vidhub-go/internal/model"
)

// Backend is the gateway surface the controllers call. *gateway.Gateway
// implements it.
type Backend interface {
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	FindProfileByUsername(ctx context.Context, username string) (*model.Profile, error)
	SearchProfiles(ctx context.Context, prefix string, limit int) ([]model.Profile, error)
	GetPreferences(ctx context.Context, userID string) (model.Preferences, error)
	SavePreferences(ctx context.Context, userID string, p model.Preferences) (model.Preferences, error)

	ListVideos(ctx context.Context, opts model.VideoListOptions) ([]model.Video, error)
	GetVideo(ctx context.Context, id string) (*model.Video, error)
	IncrementView(ctx context.Context, videoID string) error
	ToggleLike(ctx context.Context, videoID, userID string) (model.Toggled, error)
	ToggleSubscription(ctx context.Context, channelID, subscriberID string) (model.Toggled, error)
	HasLiked(ctx context.Context, videoID, userID string) (bool, error)
	IsSubscribed(ctx context.Context, channelID, subscriberID string) (bool, error)

	ListComments(ctx context.Context, videoID, parentID string) ([]model.Comment, error)
	AddComment(ctx context.Context, nc model.NewComment) (*model.Comment, error)
	ListSubscriptions(ctx context.Context, userID string) ([]model.Subscription, error)

	GetPlaylist(ctx context.Context, id string) (*model.Playlist, error)
	ListPlaylists(ctx context.Context, userID string, publicOnly bool) ([]model.Playlist, error)
	ListPlaylistVideos(ctx context.Context, playlistID string) ([]model.PlaylistVideo, error)
	AddPlaylistVideo(ctx context.Context, playlistID, videoID string) (*model.PlaylistVideo, error)

	ListNotifications(ctx context.Context, userID string) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) (*model.Notification, error)

	ListChats(ctx context.Context, userID string) ([]model.Chat, error)
	ListMessages(ctx context.Context, chatID string) ([]model.Message, error)
	SendMessage(ctx context.Context, nm model.NewMessage) (*model.Message, error)
	CreateOrGetDirectConversation(ctx context.Context, userID, otherID string) (*model.Chat, error)

	GetWallet(ctx context.Context, userID string) (*model.Wallet, error)
	ListTransactions(ctx context.Context, walletID string) ([]model.Transaction, error)
	RecordWalletTransaction(ctx context.Context, nt model.NewTransaction) (*model.Wallet, *model.Transaction, error)

	UploadObject(ctx context.Context, in media.UploadInput) (string, error)
	Buckets() config.Buckets
}
