package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/RegistryAccord/vidhub-go/internal/model"
)

// summaryColumns selects a nullable joined profile under alias.
func summaryColumns(alias string) string {
	return strings.NewReplacer("a.", alias+".").Replace(`COALESCE(a.id, ''), COALESCE(a.username, ''),
	COALESCE(a.full_name, ''), COALESCE(a.avatar_url, ''), COALESCE(a.is_verified, FALSE), COALESCE(a.total_subscribers, 0)`)
}

// summaryDest returns scan targets for summaryColumns.
func summaryDest(s *model.ProfileSummary) []any {
	return []any{&s.ID, &s.Username, &s.FullName, &s.AvatarURL, &s.IsVerified, &s.TotalSubscribers}
}

func summaryOrNil(s model.ProfileSummary) *model.ProfileSummary {
	if s.ID == "" {
		return nil
	}
	return &s
}

// ---- comments ----

var commentSelect = `SELECT c.id, c.video_id, c.user_id, COALESCE(c.parent_id, ''), c.content, c.likes, c.dislikes,
	c.is_pinned, c.created_at, c.updated_at, ` + summaryColumns("a") + `
	FROM comments c LEFT JOIN profiles a ON a.id = c.user_id`

func scanComment(row pgx.Row) (*model.Comment, error) {
	var c model.Comment
	var author model.ProfileSummary
	dest := append([]any{&c.ID, &c.VideoID, &c.UserID, &c.ParentID, &c.Content, &c.Likes, &c.Dislikes,
		&c.IsPinned, &c.CreatedAt, &c.UpdatedAt}, summaryDest(&author)...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	c.Author = summaryOrNil(author)
	return &c, nil
}

func (p *postgres) ListComments(ctx context.Context, videoID, parentID string) ([]model.Comment, error) {
	query := commentSelect + ` WHERE c.video_id = $1 AND c.parent_id IS NULL ORDER BY c.created_at DESC`
	args := []any{videoID}
	if parentID != "" {
		query = commentSelect + ` WHERE c.video_id = $1 AND c.parent_id = $2 ORDER BY c.created_at DESC`
		args = append(args, parentID)
	}
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr("list comments", err)
	}
	defer rows.Close()

	out := make([]model.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, mapErr("scan comment", err)
		}
		out = append(out, *c)
	}
	return out, mapErr("list comments", rows.Err())
}

func (p *postgres) CreateComment(ctx context.Context, nc model.NewComment) (*model.Comment, error) {
	id := uuid.NewString()
	_, err := p.db.Exec(ctx, `INSERT INTO comments (id, video_id, user_id, parent_id, content)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)`, id, nc.VideoID, nc.UserID, nc.ParentID, nc.Content)
	if err != nil {
		return nil, mapErr("create comment", err)
	}
	c, err := scanComment(p.db.QueryRow(ctx, commentSelect+` WHERE c.id = $1`, id))
	return c, mapErr("create comment", err)
}

// ---- subscriptions ----

func (p *postgres) ListSubscriptions(ctx context.Context, subscriberID string) ([]model.Subscription, error) {
	rows, err := p.db.Query(ctx, `SELECT s.id, s.subscriber_id, s.channel_id, s.notification_level, s.created_at, `+
		summaryColumns("a")+`
		FROM subscriptions s LEFT JOIN profiles a ON a.id = s.channel_id
		WHERE s.subscriber_id = $1 ORDER BY s.created_at DESC`, subscriberID)
	if err != nil {
		return nil, mapErr("list subscriptions", err)
	}
	defer rows.Close()

	out := make([]model.Subscription, 0)
	for rows.Next() {
		var s model.Subscription
		var channel model.ProfileSummary
		dest := append([]any{&s.ID, &s.SubscriberID, &s.ChannelID, &s.NotificationLevel, &s.CreatedAt},
			summaryDest(&channel)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, mapErr("scan subscription", err)
		}
		s.Channel = summaryOrNil(channel)
		out = append(out, s)
	}
	return out, mapErr("list subscriptions", rows.Err())
}

// ---- playlists ----

var playlistSelect = `SELECT pl.id, pl.user_id, pl.title, COALESCE(pl.description, ''), COALESCE(pl.thumbnail_url, ''),
	pl.is_public, pl.created_at, pl.updated_at, ` + summaryColumns("a") + `
	FROM playlists pl LEFT JOIN profiles a ON a.id = pl.user_id`

func scanPlaylist(row pgx.Row) (*model.Playlist, error) {
	var pl model.Playlist
	var owner model.ProfileSummary
	dest := append([]any{&pl.ID, &pl.UserID, &pl.Title, &pl.Description, &pl.ThumbnailURL,
		&pl.IsPublic, &pl.CreatedAt, &pl.UpdatedAt}, summaryDest(&owner)...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	pl.Owner = summaryOrNil(owner)
	return &pl, nil
}

func (p *postgres) CreatePlaylist(ctx context.Context, pl model.Playlist) (*model.Playlist, error) {
	if pl.ID == "" {
		pl.ID = uuid.NewString()
	}
	_, err := p.db.Exec(ctx, `INSERT INTO playlists (id, user_id, title, description, thumbnail_url, is_public)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)`,
		pl.ID, pl.UserID, pl.Title, pl.Description, pl.ThumbnailURL, pl.IsPublic)
	if err != nil {
		return nil, mapErr("create playlist", err)
	}
	return p.GetPlaylist(ctx, pl.ID)
}

func (p *postgres) GetPlaylist(ctx context.Context, id string) (*model.Playlist, error) {
	pl, err := scanPlaylist(p.db.QueryRow(ctx, playlistSelect+` WHERE pl.id = $1`, id))
	return pl, mapErr("get playlist", err)
}

func (p *postgres) ListPlaylists(ctx context.Context, q PlaylistQuery) ([]model.Playlist, error) {
	query := playlistSelect + ` WHERE ($1 = '' OR pl.user_id = $1) AND (NOT $2 OR pl.is_public)
		ORDER BY pl.created_at DESC`
	rows, err := p.db.Query(ctx, query, q.UserID, q.PublicOnly)
	if err != nil {
		return nil, mapErr("list playlists", err)
	}
	defer rows.Close()

	out := make([]model.Playlist, 0)
	for rows.Next() {
		pl, err := scanPlaylist(rows)
		if err != nil {
			return nil, mapErr("scan playlist", err)
		}
		out = append(out, *pl)
	}
	return out, mapErr("list playlists", rows.Err())
}

func (p *postgres) ListPlaylistVideos(ctx context.Context, playlistID string) ([]model.PlaylistVideo, error) {
	rows, err := p.db.Query(ctx, `SELECT id, playlist_id, video_id, position, added_at
		FROM playlist_videos WHERE playlist_id = $1 ORDER BY position ASC`, playlistID)
	if err != nil {
		return nil, mapErr("list playlist videos", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.PlaylistVideo, error) {
		var item model.PlaylistVideo
		err := row.Scan(&item.ID, &item.PlaylistID, &item.VideoID, &item.Position, &item.AddedAt)
		return item, err
	})
	if err != nil {
		return nil, mapErr("list playlist videos", err)
	}
	if len(items) == 0 {
		return items, nil
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.VideoID
	}
	rows, err = p.db.Query(ctx, videoSelect+` WHERE v.id = ANY($1)`, ids)
	if err != nil {
		return nil, mapErr("list playlist videos", err)
	}
	videos, err := collectVideos(rows)
	if err != nil {
		return nil, mapErr("list playlist videos", err)
	}
	byID := make(map[string]*model.Video, len(videos))
	for i := range videos {
		byID[videos[i].ID] = &videos[i]
	}
	for i := range items {
		items[i].Video = byID[items[i].VideoID]
	}
	return items, nil
}

func (p *postgres) AddPlaylistVideo(ctx context.Context, playlistID, videoID string) (*model.PlaylistVideo, error) {
	item := model.PlaylistVideo{ID: uuid.NewString(), PlaylistID: playlistID, VideoID: videoID}
	err := pgx.BeginFunc(ctx, p.db, func(tx pgx.Tx) error {
		// Lock the playlist row so concurrent appends get distinct positions.
		if _, err := tx.Exec(ctx, `SELECT 1 FROM playlists WHERE id = $1 FOR UPDATE`, playlistID); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, `INSERT INTO playlist_videos (id, playlist_id, video_id, position)
			SELECT $1, $2, $3, COALESCE(MAX(position) + 1, 0) FROM playlist_videos WHERE playlist_id = $2
			RETURNING position, added_at`, item.ID, playlistID, videoID).Scan(&item.Position, &item.AddedAt); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE playlists SET updated_at = NOW() WHERE id = $1`, playlistID)
		return err
	})
	if err != nil {
		return nil, mapErr("add playlist video", err)
	}
	if v, err := p.GetVideo(ctx, videoID); err == nil {
		item.Video = v
	}
	return &item, nil
}

// ---- notifications ----

var notificationSelect = `SELECT n.id, n.user_id, COALESCE(n.sender_id, ''), COALESCE(n.video_id, ''), n.type,
	n.content, n.is_read, n.created_at, ` + summaryColumns("a") + `
	FROM notifications n LEFT JOIN profiles a ON a.id = n.sender_id`

func scanNotification(row pgx.Row) (*model.Notification, error) {
	var n model.Notification
	var sender model.ProfileSummary
	dest := append([]any{&n.ID, &n.UserID, &n.SenderID, &n.VideoID, &n.Type,
		&n.Content, &n.IsRead, &n.CreatedAt}, summaryDest(&sender)...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	n.Sender = summaryOrNil(sender)
	return &n, nil
}

func (p *postgres) ListNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	rows, err := p.db.Query(ctx, notificationSelect+` WHERE n.user_id = $1 ORDER BY n.created_at DESC`, userID)
	if err != nil {
		return nil, mapErr("list notifications", err)
	}
	defer rows.Close()

	out := make([]model.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, mapErr("scan notification", err)
		}
		out = append(out, *n)
	}
	return out, mapErr("list notifications", rows.Err())
}

func (p *postgres) MarkNotificationRead(ctx context.Context, id string) (*model.Notification, error) {
	tag, err := p.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return nil, mapErr("mark notification read", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	n, err := scanNotification(p.db.QueryRow(ctx, notificationSelect+` WHERE n.id = $1`, id))
	return n, mapErr("mark notification read", err)
}

// ---- chats ----

const chatColumns = `c.id, c.is_group, COALESCE(c.group_name, ''), COALESCE(c.group_avatar_url, ''), c.created_at, c.updated_at`

func scanChat(row pgx.Row) (model.Chat, error) {
	var c model.Chat
	err := row.Scan(&c.ID, &c.IsGroup, &c.GroupName, &c.GroupAvatarURL, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// hydrateChats loads participants and the latest message for each chat.
func (p *postgres) hydrateChats(ctx context.Context, chats []model.Chat) error {
	if len(chats) == 0 {
		return nil
	}
	ids := make([]string, len(chats))
	index := make(map[string]int, len(chats))
	for i, c := range chats {
		ids[i] = c.ID
		index[c.ID] = i
		chats[i].Participants = []model.ChatParticipant{}
	}

	rows, err := p.db.Query(ctx, `SELECT cp.id, cp.chat_id, cp.user_id, cp.is_admin, cp.joined_at, `+
		summaryColumns("a")+`
		FROM chat_participants cp LEFT JOIN profiles a ON a.id = cp.user_id
		WHERE cp.chat_id = ANY($1) ORDER BY cp.joined_at, cp.id`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var cp model.ChatParticipant
		var prof model.ProfileSummary
		dest := append([]any{&cp.ID, &cp.ChatID, &cp.UserID, &cp.IsAdmin, &cp.JoinedAt}, summaryDest(&prof)...)
		if err := rows.Scan(dest...); err != nil {
			rows.Close()
			return err
		}
		cp.Profile = summaryOrNil(prof)
		i := index[cp.ChatID]
		chats[i].Participants = append(chats[i].Participants, cp)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = p.db.Query(ctx, `SELECT DISTINCT ON (m.chat_id) `+messageColumns+`
		FROM messages m LEFT JOIN profiles a ON a.id = m.sender_id
		WHERE m.chat_id = ANY($1) AND NOT m.is_deleted
		ORDER BY m.chat_id, m.created_at DESC`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return err
		}
		chats[index[msg.ChatID]].LastMessage = msg
	}
	return rows.Err()
}

func (p *postgres) ListChats(ctx context.Context, userID string) ([]model.Chat, error) {
	rows, err := p.db.Query(ctx, `SELECT `+chatColumns+` FROM chats c
		WHERE EXISTS (SELECT 1 FROM chat_participants cp WHERE cp.chat_id = c.id AND cp.user_id = $1)
		ORDER BY c.updated_at DESC`, userID)
	if err != nil {
		return nil, mapErr("list chats", err)
	}
	chats, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Chat, error) { return scanChat(row) })
	if err != nil {
		return nil, mapErr("list chats", err)
	}
	return chats, mapErr("list chats", p.hydrateChats(ctx, chats))
}

func (p *postgres) GetChat(ctx context.Context, id string) (*model.Chat, error) {
	c, err := scanChat(p.db.QueryRow(ctx, `SELECT `+chatColumns+` FROM chats c WHERE c.id = $1`, id))
	if err != nil {
		return nil, mapErr("get chat", err)
	}
	chats := []model.Chat{c}
	if err := p.hydrateChats(ctx, chats); err != nil {
		return nil, mapErr("get chat", err)
	}
	return &chats[0], nil
}

func (p *postgres) FindDirectChat(ctx context.Context, userA, userB string) (*model.Chat, error) {
	var id string
	err := p.db.QueryRow(ctx, `SELECT c.id FROM chats c
		WHERE NOT c.is_group
		  AND (SELECT COUNT(*) FROM chat_participants cp WHERE cp.chat_id = c.id) = 2
		  AND EXISTS (SELECT 1 FROM chat_participants cp WHERE cp.chat_id = c.id AND cp.user_id = $1)
		  AND EXISTS (SELECT 1 FROM chat_participants cp WHERE cp.chat_id = c.id AND cp.user_id = $2)
		ORDER BY c.created_at LIMIT 1`, userA, userB).Scan(&id)
	if err != nil {
		return nil, mapErr("find direct chat", err)
	}
	return p.GetChat(ctx, id)
}

func (p *postgres) CreateChat(ctx context.Context, nc model.NewChat) (*model.Chat, error) {
	id := uuid.NewString()
	members := uniqueIDs(append([]string{nc.CreatorID}, nc.ParticipantIDs...))
	err := pgx.BeginFunc(ctx, p.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO chats (id, is_group, group_name) VALUES ($1, $2, NULLIF($3, ''))`,
			id, nc.IsGroup, nc.GroupName); err != nil {
			return err
		}
		for _, member := range members {
			if _, err := tx.Exec(ctx, `INSERT INTO chat_participants (id, chat_id, user_id, is_admin)
				VALUES ($1, $2, $3, $4)`, uuid.NewString(), id, member, member == nc.CreatorID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, mapErr("create chat", err)
	}
	return p.GetChat(ctx, id)
}

var messageColumns = `m.id, m.chat_id, m.sender_id, COALESCE(m.content, ''), COALESCE(m.media_url, ''),
	COALESCE(m.media_type, ''), m.is_read, m.is_deleted, COALESCE(m.reply_to, ''), m.is_forwarded, m.is_starred,
	m.disappears_at, m.created_at, ` + summaryColumns("a")

func scanMessage(row pgx.Row) (*model.Message, error) {
	var m model.Message
	var sender model.ProfileSummary
	dest := append([]any{&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.MediaURL,
		&m.MediaType, &m.IsRead, &m.IsDeleted, &m.ReplyTo, &m.IsForwarded, &m.IsStarred,
		&m.DisappearsAt, &m.CreatedAt}, summaryDest(&sender)...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	m.Sender = summaryOrNil(sender)
	return &m, nil
}

func (p *postgres) ListMessages(ctx context.Context, chatID string) ([]model.Message, error) {
	var exists bool
	if err := p.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM chats WHERE id = $1)`, chatID).Scan(&exists); err != nil {
		return nil, mapErr("list messages", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	rows, err := p.db.Query(ctx, `SELECT `+messageColumns+`
		FROM messages m LEFT JOIN profiles a ON a.id = m.sender_id
		WHERE m.chat_id = $1 AND NOT m.is_deleted ORDER BY m.created_at ASC`, chatID)
	if err != nil {
		return nil, mapErr("list messages", err)
	}
	defer rows.Close()

	out := make([]model.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, mapErr("scan message", err)
		}
		out = append(out, *msg)
	}
	return out, mapErr("list messages", rows.Err())
}

func (p *postgres) CreateMessage(ctx context.Context, nm model.NewMessage) (*model.Message, error) {
	id := uuid.NewString()
	err := pgx.BeginFunc(ctx, p.db, func(tx pgx.Tx) error {
		var member bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM chat_participants WHERE chat_id = $1 AND user_id = $2)`,
			nm.ChatID, nm.SenderID).Scan(&member); err != nil {
			return err
		}
		if !member {
			return fmt.Errorf("sender %s is not a participant of chat %s", nm.SenderID, nm.ChatID)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO messages (id, chat_id, sender_id, content, media_url, media_type, reply_to)
			VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''))`,
			id, nm.ChatID, nm.SenderID, nm.Content, nm.MediaURL, nm.MediaType, nm.ReplyTo); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE chats SET updated_at = NOW() WHERE id = $1`, nm.ChatID)
		return err
	})
	if err != nil {
		return nil, mapErr("create message", err)
	}
	msg, err := scanMessage(p.db.QueryRow(ctx, `SELECT `+messageColumns+`
		FROM messages m LEFT JOIN profiles a ON a.id = m.sender_id WHERE m.id = $1`, id))
	return msg, mapErr("create message", err)
}

// ---- wallets ----

// Money columns travel as text so decimal precision is never routed through float64.
const walletColumns = `id, user_id, balance::text, is_kyc_verified, created_at, updated_at`

func scanWallet(row pgx.Row) (*model.Wallet, error) {
	var w model.Wallet
	var balance string
	if err := row.Scan(&w.ID, &w.UserID, &balance, &w.IsKYCVerified, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if w.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	return &w, nil
}

const transactionColumns = `id, wallet_id, amount::text, type, status, COALESCE(reference_id, ''),
	COALESCE(description, ''), created_at, updated_at`

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var t model.Transaction
	var amount string
	if err := row.Scan(&t.ID, &t.WalletID, &amount, &t.Type, &t.Status, &t.ReferenceID,
		&t.Description, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	return &t, nil
}

func (p *postgres) CreateWallet(ctx context.Context, w model.Wallet) (*model.Wallet, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	out, err := scanWallet(p.db.QueryRow(ctx, `INSERT INTO wallets (id, user_id, balance, is_kyc_verified)
		VALUES ($1, $2, $3::numeric, $4) RETURNING `+walletColumns,
		w.ID, w.UserID, w.Balance.String(), w.IsKYCVerified))
	return out, mapErr("create wallet", err)
}

func (p *postgres) GetWalletByUser(ctx context.Context, userID string) (*model.Wallet, error) {
	w, err := scanWallet(p.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID))
	return w, mapErr("get wallet", err)
}

func (p *postgres) ListTransactions(ctx context.Context, walletID string) ([]model.Transaction, error) {
	rows, err := p.db.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE wallet_id = $1 ORDER BY created_at DESC`, walletID)
	if err != nil {
		return nil, mapErr("list transactions", err)
	}
	defer rows.Close()

	out := make([]model.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, mapErr("scan transaction", err)
		}
		out = append(out, *t)
	}
	return out, mapErr("list transactions", rows.Err())
}

// ApplyTransaction inserts the ledger row and adjusts the balance in one
// database transaction. The balance CHECK constraint rejects overdrafts.
func (p *postgres) ApplyTransaction(ctx context.Context, nt model.NewTransaction) (*model.Wallet, *model.Transaction, error) {
	if !nt.Amount.IsPositive() {
		return nil, nil, fmt.Errorf("amount must be positive")
	}
	delta := decimal.Zero
	if nt.Status != model.StatusFailed {
		delta = nt.Amount
		if !nt.Type.Credit() {
			delta = delta.Neg()
		}
	}

	var wallet *model.Wallet
	var txn *model.Transaction
	err := pgx.BeginFunc(ctx, p.db, func(tx pgx.Tx) error {
		var err error
		wallet, err = scanWallet(tx.QueryRow(ctx, `UPDATE wallets SET balance = balance + $2::numeric, updated_at = NOW()
			WHERE id = $1 RETURNING `+walletColumns, nt.WalletID, delta.String()))
		if err != nil {
			return err
		}
		txn, err = scanTransaction(tx.QueryRow(ctx, `INSERT INTO transactions
			(id, wallet_id, amount, type, status, reference_id, description)
			VALUES ($1, $2, $3::numeric, $4, $5, NULLIF($6, ''), NULLIF($7, ''))
			RETURNING `+transactionColumns,
			uuid.NewString(), nt.WalletID, nt.Amount.String(), nt.Type, nt.Status, nt.ReferenceID, nt.Description))
		return err
	})
	if err != nil {
		return nil, nil, mapErr("apply transaction", err)
	}
	return wallet, txn, nil
}

// ---- preferences ----

func (p *postgres) GetPreferences(ctx context.Context, userID string) (model.Preferences, error) {
	var raw []byte
	err := p.db.QueryRow(ctx, `SELECT prefs FROM user_preferences WHERE user_id = $1`, userID).Scan(&raw)
	if err == pgx.ErrNoRows {
		if _, err := p.GetProfile(ctx, userID); err != nil {
			return model.Preferences{}, err
		}
		return model.DefaultPreferences(), nil
	}
	if err != nil {
		return model.Preferences{}, mapErr("get preferences", err)
	}
	prefs := model.DefaultPreferences()
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return model.Preferences{}, fmt.Errorf("decode preferences: %w", err)
	}
	return prefs, nil
}

func (p *postgres) SavePreferences(ctx context.Context, userID string, prefs model.Preferences) (model.Preferences, error) {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return model.Preferences{}, err
	}
	_, err = p.db.Exec(ctx, `INSERT INTO user_preferences (user_id, prefs) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET prefs = EXCLUDED.prefs, updated_at = NOW()`, userID, raw)
	if err != nil {
		return model.Preferences{}, mapErr("save preferences", err)
	}
	return prefs, nil
}
