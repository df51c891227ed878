package persist

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DirectoryRepo publishes this instance's room codes into the shared
// directory table so an external matchmaker can route joins by code.
// Rows are advisory: the in-process registry stays authoritative.
type DirectoryRepo struct {
	db         *DB
	instanceID uuid.UUID
}

func NewDirectoryRepo(db *DB) *DirectoryRepo {
	return &DirectoryRepo{db: db, instanceID: uuid.New()}
}

// InstanceID identifies this process in directory rows.
func (r *DirectoryRepo) InstanceID() uuid.UUID {
	return r.instanceID
}

// Publish upserts a room row. expires_at mirrors the absolute room TTL
// so a crashed instance cannot leave codes behind forever.
func (r *DirectoryRepo) Publish(ctx context.Context, roomCode string, createdAt time.Time, ttl time.Duration) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO room_directory (room_code, instance_id, player_count, created_at, expires_at)
		 VALUES ($1, $2, 0, $3, $4)
		 ON CONFLICT (room_code) DO UPDATE
		 SET instance_id = EXCLUDED.instance_id,
		     player_count = 0,
		     created_at = EXCLUDED.created_at,
		     expires_at = EXCLUDED.expires_at`,
		roomCode, r.instanceID, createdAt, createdAt.Add(ttl),
	)
	return err
}

// UpdatePlayerCount reflects a join or leave. Scoped to this instance
// so a recycled code on another instance is never touched.
func (r *DirectoryRepo) UpdatePlayerCount(ctx context.Context, roomCode string, players int) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE room_directory SET player_count = $1
		 WHERE room_code = $2 AND instance_id = $3`,
		players, roomCode, r.instanceID,
	)
	return err
}

// Delete drops a closed room's row.
func (r *DirectoryRepo) Delete(ctx context.Context, roomCode string) error {
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM room_directory WHERE room_code = $1 AND instance_id = $2`,
		roomCode, r.instanceID,
	)
	return err
}

// PurgeExpired sweeps rows past their TTL, this instance's or any dead
// instance's. Returns the number of rows removed.
func (r *DirectoryRepo) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM room_directory WHERE expires_at < now()`,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
