package storage

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaSQL creates every table, index, procedure and trigger if missing.
// Procedures report toggle outcomes as the literal strings the gateway maps.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS profiles (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL,
    full_name TEXT,
    avatar_url TEXT,
    banner_url TEXT,
    bio TEXT,
    channel_url TEXT,
    is_verified BOOLEAN NOT NULL DEFAULT FALSE,
    total_subscribers BIGINT NOT NULL DEFAULT 0,
    total_views BIGINT NOT NULL DEFAULT 0,
    is_premium BOOLEAN NOT NULL DEFAULT FALSE,
    premium_since TIMESTAMP WITH TIME ZONE,
    join_date TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_username ON profiles(LOWER(username));

CREATE TABLE IF NOT EXISTS videos (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    description TEXT,
    thumbnail_url TEXT,
    video_url TEXT NOT NULL,
    duration INTEGER NOT NULL DEFAULT 0,
    views BIGINT NOT NULL DEFAULT 0,
    likes BIGINT NOT NULL DEFAULT 0,
    dislikes BIGINT NOT NULL DEFAULT 0,
    is_published BOOLEAN NOT NULL DEFAULT TRUE,
    published_at TIMESTAMP WITH TIME ZONE,
    is_premium BOOLEAN NOT NULL DEFAULT FALSE,
    is_short BOOLEAN NOT NULL DEFAULT FALSE,
    category TEXT,
    tags TEXT[] NOT NULL DEFAULT '{}',
    language TEXT,
    location TEXT,
    allow_comments BOOLEAN NOT NULL DEFAULT TRUE,
    monetization_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_videos_published_created ON videos(is_published, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_videos_user ON videos(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_videos_scheduled ON videos(published_at) WHERE NOT is_published;

CREATE TABLE IF NOT EXISTS video_likes (
    video_id TEXT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    PRIMARY KEY (video_id, user_id)
);

CREATE TABLE IF NOT EXISTS subscriptions (
    id TEXT PRIMARY KEY,
    subscriber_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
    channel_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
    notification_level TEXT NOT NULL DEFAULT 'all',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    UNIQUE (subscriber_id, channel_id),
    CHECK (subscriber_id <> channel_id)
);

CREATE TABLE IF NOT EXISTS comments (
    id TEXT PRIMARY KEY,
    video_id TEXT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
    parent_id TEXT REFERENCES comments(id) ON DELETE CASCADE,
    content TEXT NOT NULL,
    likes BIGINT NOT NULL DEFAULT 0,
    dislikes BIGINT NOT NULL DEFAULT 0,
    is_pinned BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_comments_video ON comments(video_id, parent_id, created_at DESC);

CREATE TABLE IF NOT EXISTS playlists (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    description TEXT,
    thumbnail_url TEXT,
    is_public BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS playlist_videos (
    id TEXT PRIMARY KEY,
    playlist_id TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
    video_id TEXT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    added_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    UNIQUE (playlist_id, video_id)
);

CREATE TABLE IF NOT EXISTS notifications (
    id TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
    user_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
    sender_id TEXT REFERENCES profiles(id) ON DELETE SET NULL,
    video_id TEXT REFERENCES videos(id) ON DELETE CASCADE,
    type TEXT NOT NULL,
    content TEXT NOT NULL,
    is_read BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT clock_timestamp()
);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS chats (
    id TEXT PRIMARY KEY,
    is_group BOOLEAN NOT NULL DEFAULT FALSE,
    group_name TEXT,
    group_avatar_url TEXT,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS chat_participants (
    id TEXT PRIMARY KEY,
    chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
    is_admin BOOLEAN NOT NULL DEFAULT FALSE,
    joined_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    UNIQUE (chat_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_chat_participants_user ON chat_participants(user_id);

CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
    sender_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
    content TEXT,
    media_url TEXT,
    media_type TEXT,
    is_read BOOLEAN NOT NULL DEFAULT FALSE,
    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
    reply_to TEXT REFERENCES messages(id) ON DELETE SET NULL,
    is_forwarded BOOLEAN NOT NULL DEFAULT FALSE,
    is_starred BOOLEAN NOT NULL DEFAULT FALSE,
    disappears_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT clock_timestamp()
);
CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, created_at);

CREATE TABLE IF NOT EXISTS wallets (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL UNIQUE REFERENCES profiles(id) ON DELETE CASCADE,
    balance NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
    is_kyc_verified BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    wallet_id TEXT NOT NULL REFERENCES wallets(id) ON DELETE CASCADE,
    amount NUMERIC(14,2) NOT NULL CHECK (amount > 0),
    type TEXT NOT NULL,
    status TEXT NOT NULL,
    reference_id TEXT,
    description TEXT,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT clock_timestamp(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT clock_timestamp()
);
CREATE INDEX IF NOT EXISTS idx_transactions_wallet ON transactions(wallet_id, created_at DESC);

CREATE TABLE IF NOT EXISTS user_preferences (
    user_id TEXT PRIMARY KEY REFERENCES profiles(id) ON DELETE CASCADE,
    prefs JSONB NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE OR REPLACE FUNCTION increment_video_view(video_uuid TEXT) RETURNS VOID AS $$
DECLARE
    owner TEXT;
BEGIN
    UPDATE videos SET views = views + 1 WHERE id = video_uuid RETURNING user_id INTO owner;
    IF owner IS NULL THEN
        RAISE EXCEPTION 'video % not found', video_uuid USING ERRCODE = 'P0002';
    END IF;
    UPDATE profiles SET total_views = total_views + 1 WHERE id = owner;
END;
$$ LANGUAGE plpgsql;

CREATE OR REPLACE FUNCTION toggle_video_like(video_uuid TEXT, user_uuid TEXT) RETURNS TEXT AS $$
BEGIN
    DELETE FROM video_likes WHERE video_id = video_uuid AND user_id = user_uuid;
    IF FOUND THEN
        UPDATE videos SET likes = likes - 1 WHERE id = video_uuid;
        RETURN 'unliked';
    END IF;
    INSERT INTO video_likes (video_id, user_id) VALUES (video_uuid, user_uuid);
    UPDATE videos SET likes = likes + 1 WHERE id = video_uuid;
    RETURN 'liked';
END;
$$ LANGUAGE plpgsql;

CREATE OR REPLACE FUNCTION toggle_subscription(channel_uuid TEXT, subscriber_uuid TEXT) RETURNS TEXT AS $$
BEGIN
    DELETE FROM subscriptions WHERE channel_id = channel_uuid AND subscriber_id = subscriber_uuid;
    IF FOUND THEN
        UPDATE profiles SET total_subscribers = total_subscribers - 1 WHERE id = channel_uuid;
        RETURN 'unsubscribed';
    END IF;
    INSERT INTO subscriptions (id, subscriber_id, channel_id)
    VALUES (gen_random_uuid()::text, subscriber_uuid, channel_uuid);
    UPDATE profiles SET total_subscribers = total_subscribers + 1 WHERE id = channel_uuid;
    RETURN 'subscribed';
END;
$$ LANGUAGE plpgsql;

CREATE OR REPLACE FUNCTION notify_comment() RETURNS TRIGGER AS $$
DECLARE
    owner TEXT;
    video_title TEXT;
    author TEXT;
BEGIN
    SELECT user_id, title INTO owner, video_title FROM videos WHERE id = NEW.video_id;
    IF owner IS DISTINCT FROM NEW.user_id THEN
        SELECT username INTO author FROM profiles WHERE id = NEW.user_id;
        INSERT INTO notifications (user_id, sender_id, video_id, type, content)
        VALUES (owner, NEW.user_id, NEW.video_id, 'comment',
                author || ' commented on your video: ' || video_title);
    END IF;
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;
DROP TRIGGER IF EXISTS comments_notify ON comments;
CREATE TRIGGER comments_notify AFTER INSERT ON comments
    FOR EACH ROW EXECUTE FUNCTION notify_comment();

CREATE OR REPLACE FUNCTION notify_subscription() RETURNS TRIGGER AS $$
DECLARE
    subscriber TEXT;
BEGIN
    SELECT username INTO subscriber FROM profiles WHERE id = NEW.subscriber_id;
    INSERT INTO notifications (user_id, sender_id, type, content)
    VALUES (NEW.channel_id, NEW.subscriber_id, 'subscription', subscriber || ' subscribed to your channel');
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;
DROP TRIGGER IF EXISTS subscriptions_notify ON subscriptions;
CREATE TRIGGER subscriptions_notify AFTER INSERT ON subscriptions
    FOR EACH ROW EXECUTE FUNCTION notify_subscription();

CREATE OR REPLACE FUNCTION notify_upload() RETURNS TRIGGER AS $$
DECLARE
    uploader TEXT;
BEGIN
    IF NOT NEW.is_published OR (TG_OP = 'UPDATE' AND OLD.is_published) THEN
        RETURN NEW;
    END IF;
    SELECT username INTO uploader FROM profiles WHERE id = NEW.user_id;
    INSERT INTO notifications (user_id, sender_id, video_id, type, content)
    SELECT s.subscriber_id, NEW.user_id, NEW.id, 'upload', uploader || ' uploaded: ' || NEW.title
    FROM subscriptions s WHERE s.channel_id = NEW.user_id;
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;
DROP TRIGGER IF EXISTS videos_notify ON videos;
CREATE TRIGGER videos_notify AFTER INSERT OR UPDATE OF is_published ON videos
    FOR EACH ROW EXECUTE FUNCTION notify_upload();
`

// initSchema initializes the database schema.
// It is called automatically when creating a new PostgreSQL store.
func initSchema(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, schemaSQL)
	return err
}
