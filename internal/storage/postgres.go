package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RegistryAccord/vidhub-go/internal/model"
)

// postgres implements Store on PostgreSQL. Counter mutations run inside the
// plpgsql procedures created by initSchema.
type postgres struct {
	db *pgxpool.Pool // Connection pool to PostgreSQL database
}

// NewPostgres creates a new PostgreSQL storage implementation.
// It establishes a connection pool to the database and initializes the schema.
// Parameters:
//   - dsn: Database connection string in PostgreSQL format
//
// Returns:
//   - Store: Implementation of the storage interface
//   - func(): Closes the connection pool
//   - error: Any error that occurred during initialization
func NewPostgres(ctx context.Context, dsn string) (Store, func(), error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid database DSN: %w", err)
	}

	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &postgres{db: pool}, pool.Close, nil
}

func (p *postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

// mapErr translates driver errors into the storage sentinels.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return ErrConflict
		case "23503", "P0002": // foreign_key_violation, no_data_found
			return ErrNotFound
		case "23514": // check_violation
			if strings.Contains(pgErr.ConstraintName, "balance") {
				return ErrInsufficientFunds
			}
		}
		return fmt.Errorf("%s: %s", op, pgErr.Message)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ---- profiles ----

const profileColumns = `id, username, COALESCE(full_name, ''), COALESCE(avatar_url, ''), COALESCE(banner_url, ''),
	COALESCE(bio, ''), COALESCE(channel_url, ''), is_verified, total_subscribers, total_views,
	is_premium, premium_since, join_date, created_at, updated_at`

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var prof model.Profile
	err := row.Scan(&prof.ID, &prof.Username, &prof.FullName, &prof.AvatarURL, &prof.BannerURL,
		&prof.Bio, &prof.ChannelURL, &prof.IsVerified, &prof.TotalSubscribers, &prof.TotalViews,
		&prof.IsPremium, &prof.PremiumSince, &prof.JoinDate, &prof.CreatedAt, &prof.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &prof, nil
}

func (p *postgres) CreateProfile(ctx context.Context, prof model.Profile) (*model.Profile, error) {
	if prof.ID == "" {
		prof.ID = uuid.NewString()
	}
	joinDate := prof.JoinDate
	if joinDate.IsZero() {
		joinDate = time.Now().UTC()
	}
	query := `INSERT INTO profiles (id, username, full_name, avatar_url, banner_url, bio, channel_url,
		is_verified, is_premium, premium_since, join_date)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10, $11)
		RETURNING ` + profileColumns
	out, err := scanProfile(p.db.QueryRow(ctx, query, prof.ID, prof.Username, prof.FullName, prof.AvatarURL,
		prof.BannerURL, prof.Bio, prof.ChannelURL, prof.IsVerified, prof.IsPremium, prof.PremiumSince, joinDate))
	return out, mapErr("create profile", err)
}

func (p *postgres) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	out, err := scanProfile(p.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	return out, mapErr("get profile", err)
}

func (p *postgres) FindProfileByUsername(ctx context.Context, username string) (*model.Profile, error) {
	out, err := scanProfile(p.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE LOWER(username) = LOWER($1)`, strings.TrimSpace(username)))
	return out, mapErr("find profile", err)
}

func (p *postgres) SearchProfiles(ctx context.Context, prefix string, limit int) ([]model.Profile, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := escapeLike(strings.ToLower(strings.TrimSpace(prefix))) + "%"
	rows, err := p.db.Query(ctx, `SELECT `+profileColumns+` FROM profiles
		WHERE LOWER(username) LIKE $1 ORDER BY username LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, mapErr("search profiles", err)
	}
	defer rows.Close()

	out := make([]model.Profile, 0)
	for rows.Next() {
		prof, err := scanProfile(rows)
		if err != nil {
			return nil, mapErr("scan profile", err)
		}
		out = append(out, *prof)
	}
	return out, mapErr("search profiles", rows.Err())
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// setBuilder accumulates "column = $n" assignments for partial updates.
type setBuilder struct {
	sets []string
	args []any
}

func (b *setBuilder) add(column string, value any) {
	b.args = append(b.args, value)
	b.sets = append(b.sets, fmt.Sprintf("%s = $%d", column, len(b.args)))
}

func (p *postgres) UpdateProfile(ctx context.Context, id string, u model.ProfileUpdate) (*model.Profile, error) {
	var b setBuilder
	if u.Username != nil {
		b.add("username", *u.Username)
	}
	if u.FullName != nil {
		b.add("full_name", *u.FullName)
	}
	if u.Bio != nil {
		b.add("bio", *u.Bio)
	}
	if u.ChannelURL != nil {
		b.add("channel_url", *u.ChannelURL)
	}
	if u.AvatarURL != nil {
		b.add("avatar_url", *u.AvatarURL)
	}
	if u.BannerURL != nil {
		b.add("banner_url", *u.BannerURL)
	}
	if len(b.sets) == 0 {
		return p.GetProfile(ctx, id)
	}
	b.args = append(b.args, id)
	query := fmt.Sprintf(`UPDATE profiles SET %s, updated_at = NOW() WHERE id = $%d RETURNING %s`,
		strings.Join(b.sets, ", "), len(b.args), profileColumns)
	out, err := scanProfile(p.db.QueryRow(ctx, query, b.args...))
	return out, mapErr("update profile", err)
}

// ---- videos ----

const videoSelect = `SELECT v.id, v.user_id, v.title, COALESCE(v.description, ''), COALESCE(v.thumbnail_url, ''),
	v.video_url, v.duration, v.views, v.likes, v.dislikes, v.is_published, v.published_at, v.is_premium,
	v.is_short, COALESCE(v.category, ''), v.tags, COALESCE(v.language, ''), COALESCE(v.location, ''),
	v.allow_comments, v.monetization_enabled, v.created_at, v.updated_at,
	o.id, o.username, COALESCE(o.full_name, ''), COALESCE(o.avatar_url, ''), o.is_verified, o.total_subscribers
	FROM videos v JOIN profiles o ON o.id = v.user_id`

func scanVideo(row pgx.Row) (*model.Video, error) {
	var v model.Video
	var owner model.ProfileSummary
	err := row.Scan(&v.ID, &v.UserID, &v.Title, &v.Description, &v.ThumbnailURL,
		&v.VideoURL, &v.Duration, &v.Views, &v.Likes, &v.Dislikes, &v.IsPublished, &v.PublishedAt, &v.IsPremium,
		&v.IsShort, &v.Category, &v.Tags, &v.Language, &v.Location,
		&v.AllowComments, &v.MonetizationEnabled, &v.CreatedAt, &v.UpdatedAt,
		&owner.ID, &owner.Username, &owner.FullName, &owner.AvatarURL, &owner.IsVerified, &owner.TotalSubscribers)
	if err != nil {
		return nil, err
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	v.Owner = &owner
	return &v, nil
}

func collectVideos(rows pgx.Rows) ([]model.Video, error) {
	defer rows.Close()
	out := make([]model.Video, 0)
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// videoOrderColumns maps listing columns onto qualified SQL columns.
var videoOrderColumns = map[string]string{
	"created_at":   "v.created_at",
	"published_at": "v.published_at",
	"views":        "v.views",
	"likes":        "v.likes",
	"title":        "v.title",
	"duration":     "v.duration",
}

func (p *postgres) ListVideos(ctx context.Context, q VideoQuery) ([]model.Video, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if q.PublishedOnly {
		where = append(where, "v.is_published")
	}
	if q.Category != "" {
		where = append(where, "v.category = "+arg(q.Category))
	}
	if q.IsShort != nil {
		where = append(where, "v.is_short = "+arg(*q.IsShort))
	}
	if q.UserID != "" {
		where = append(where, "v.user_id = "+arg(q.UserID))
	}

	order := q.Order
	if order.Column == "" {
		order = model.DefaultOrder
	}
	column, ok := videoOrderColumns[order.Column]
	if !ok {
		return nil, fmt.Errorf("unsupported order column %q", order.Column)
	}
	dir := "ASC"
	if order.Desc {
		dir = "DESC"
	}

	var sb strings.Builder
	sb.WriteString(videoSelect)
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	fmt.Fprintf(&sb, " ORDER BY %s %s NULLS LAST, v.created_at %s", column, dir, dir)
	if q.Limit > 0 {
		sb.WriteString(" LIMIT " + arg(q.Limit))
	}

	rows, err := p.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, mapErr("list videos", err)
	}
	videos, err := collectVideos(rows)
	return videos, mapErr("list videos", err)
}

func (p *postgres) GetVideo(ctx context.Context, id string) (*model.Video, error) {
	v, err := scanVideo(p.db.QueryRow(ctx, videoSelect+` WHERE v.id = $1`, id))
	return v, mapErr("get video", err)
}

func (p *postgres) CreateVideo(ctx context.Context, nv model.NewVideo) (*model.Video, error) {
	id := uuid.NewString()
	publishedAt := nv.PublishedAt
	if publishedAt == nil && nv.IsPublished {
		now := time.Now().UTC()
		publishedAt = &now
	}
	tags := nv.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := p.db.Exec(ctx, `INSERT INTO videos (id, user_id, title, description, thumbnail_url, video_url,
		duration, is_published, published_at, is_premium, is_short, category, tags, language, location,
		allow_comments, monetization_enabled)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9, $10, $11, NULLIF($12, ''), $13,
		NULLIF($14, ''), NULLIF($15, ''), $16, $17)`,
		id, nv.UserID, nv.Title, nv.Description, nv.ThumbnailURL, nv.VideoURL,
		nv.Duration, nv.IsPublished, publishedAt, nv.IsPremium, nv.IsShort, nv.Category, tags,
		nv.Language, nv.Location, nv.AllowComments, nv.MonetizationEnabled)
	if err != nil {
		return nil, mapErr("create video", err)
	}
	return p.GetVideo(ctx, id)
}

func (p *postgres) UpdateVideo(ctx context.Context, id string, u model.VideoUpdate) (*model.Video, error) {
	var b setBuilder
	if u.Title != nil {
		b.add("title", *u.Title)
	}
	if u.Description != nil {
		b.add("description", *u.Description)
	}
	if u.ThumbnailURL != nil {
		b.add("thumbnail_url", *u.ThumbnailURL)
	}
	if u.Category != nil {
		b.add("category", *u.Category)
	}
	if u.Tags != nil {
		b.add("tags", *u.Tags)
	}
	if u.Language != nil {
		b.add("language", *u.Language)
	}
	if u.IsPublished != nil {
		b.add("is_published", *u.IsPublished)
	}
	if u.PublishedAt != nil {
		b.add("published_at", *u.PublishedAt)
	}
	if u.AllowComments != nil {
		b.add("allow_comments", *u.AllowComments)
	}
	if u.MonetizationEnabled != nil {
		b.add("monetization_enabled", *u.MonetizationEnabled)
	}
	if len(b.sets) > 0 {
		b.args = append(b.args, id)
		query := fmt.Sprintf(`UPDATE videos SET %s, updated_at = NOW() WHERE id = $%d`,
			strings.Join(b.sets, ", "), len(b.args))
		tag, err := p.db.Exec(ctx, query, b.args...)
		if err != nil {
			return nil, mapErr("update video", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, ErrNotFound
		}
	}
	return p.GetVideo(ctx, id)
}

func (p *postgres) PublishDueVideos(ctx context.Context, now time.Time) ([]model.Video, error) {
	rows, err := p.db.Query(ctx, `UPDATE videos SET is_published = TRUE, updated_at = NOW()
		WHERE NOT is_published AND published_at IS NOT NULL AND published_at <= $1
		RETURNING id`, now)
	if err != nil {
		return nil, mapErr("publish due videos", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, mapErr("publish due videos", err)
	}
	if len(ids) == 0 {
		return []model.Video{}, nil
	}
	rows, err = p.db.Query(ctx, videoSelect+` WHERE v.id = ANY($1) ORDER BY v.published_at`, ids)
	if err != nil {
		return nil, mapErr("publish due videos", err)
	}
	videos, err := collectVideos(rows)
	return videos, mapErr("publish due videos", err)
}

// ---- procedures ----

func (p *postgres) IncrementVideoView(ctx context.Context, videoID string) error {
	_, err := p.db.Exec(ctx, `SELECT increment_video_view($1)`, videoID)
	return mapErr("increment_video_view", err)
}

func (p *postgres) ToggleVideoLike(ctx context.Context, videoID, userID string) (string, error) {
	var result string
	err := p.db.QueryRow(ctx, `SELECT toggle_video_like($1, $2)`, videoID, userID).Scan(&result)
	return result, mapErr("toggle_video_like", err)
}

func (p *postgres) ToggleSubscription(ctx context.Context, channelID, subscriberID string) (string, error) {
	var result string
	err := p.db.QueryRow(ctx, `SELECT toggle_subscription($1, $2)`, channelID, subscriberID).Scan(&result)
	return result, mapErr("toggle_subscription", err)
}

func (p *postgres) HasLikedVideo(ctx context.Context, videoID, userID string) (bool, error) {
	var exists bool
	err := p.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM video_likes WHERE video_id = $1 AND user_id = $2)`,
		videoID, userID).Scan(&exists)
	return exists, mapErr("has liked", err)
}

func (p *postgres) IsSubscribed(ctx context.Context, channelID, subscriberID string) (bool, error) {
	var exists bool
	err := p.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM subscriptions WHERE channel_id = $1 AND subscriber_id = $2)`,
		channelID, subscriberID).Scan(&exists)
	return exists, mapErr("is subscribed", err)
}
