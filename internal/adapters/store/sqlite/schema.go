package sqlite

// Times are stored as Unix nanoseconds; 0 means unset.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id           TEXT PRIMARY KEY,
	username     TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'online'
);

CREATE TABLE IF NOT EXISTS auth_tokens (
	token   TEXT PRIMARY KEY,
	user_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS servers (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL,
	owner_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS server_members (
	server_id TEXT NOT NULL,
	user_id   TEXT NOT NULL,
	role      TEXT NOT NULL DEFAULT 'member',
	PRIMARY KEY (server_id, user_id)
);

CREATE TABLE IF NOT EXISTS channels (
	id         TEXT PRIMARY KEY,
	server_id  TEXT NOT NULL,
	name       TEXT NOT NULL,
	kind       TEXT NOT NULL,
	persistent INTEGER NOT NULL DEFAULT 1,
	locked     INTEGER NOT NULL DEFAULT 0,
	creator_id TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS channels_ephemeral ON channels (kind, persistent);

CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	channel_id  TEXT NOT NULL,
	sender_id   TEXT NOT NULL,
	sender_name TEXT NOT NULL DEFAULT '',
	content     TEXT NOT NULL,
	reply_to_id TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	edited_at   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS messages_channel ON messages (channel_id, created_at);

CREATE TABLE IF NOT EXISTS attachments (
	id           TEXT PRIMARY KEY,
	message_id   TEXT NOT NULL DEFAULT '',
	uploader_id  TEXT NOT NULL,
	filename     TEXT NOT NULL,
	url          TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	size         INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS attachments_message ON attachments (message_id);

CREATE TABLE IF NOT EXISTS reactions (
	message_id TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	emoji      TEXT NOT NULL,
	PRIMARY KEY (message_id, user_id, emoji)
);

CREATE TABLE IF NOT EXISTS dm_channels (
	id     TEXT PRIMARY KEY,
	user_a TEXT NOT NULL,
	user_b TEXT NOT NULL,
	UNIQUE (user_a, user_b)
);

CREATE TABLE IF NOT EXISTS dm_messages (
	id            TEXT PRIMARY KEY,
	dm_channel_id TEXT NOT NULL,
	sender_id     TEXT NOT NULL,
	sender_name   TEXT NOT NULL DEFAULT '',
	content       TEXT NOT NULL,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS dm_messages_channel ON dm_messages (dm_channel_id, created_at);

CREATE TABLE IF NOT EXISTS server_keys (
	server_id     TEXT NOT NULL,
	user_id       TEXT NOT NULL,
	encrypted_key TEXT NOT NULL,
	shared_by     TEXT NOT NULL,
	updated_at    INTEGER NOT NULL,
	PRIMARY KEY (server_id, user_id)
);

CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5 (
	message_id UNINDEXED,
	channel_id UNINDEXED,
	content
);
`
