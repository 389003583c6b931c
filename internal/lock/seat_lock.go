// Package lock implements the distributed seat lock: a short-lived,
// Redis-backed mutual exclusion on (event, seat) pairs.  The lock is a
// fast-fail pre-check in front of the durable booking_seats constraint,
// not a source of truth; keys self-expire so a crashed holder can never
// block a seat for longer than the TTL.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSeatsLocked is returned by Acquire when at least one requested seat is
// already held by another holder.  Handlers should translate this into an
// HTTP 409 response.
var ErrSeatsLocked = errors.New("one or more seats already locked")

// SeatLock grants TTL-bounded holds on event seats.  The holder identity
// stored in each key is advisory: it aids diagnostics but is not checked on
// release, because the durable store is the authority on ownership and a
// stale key must always be deletable.
type SeatLock struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSeatLock returns a SeatLock with the given key TTL.  A TTL below one
// second is raised to one second so SET EX never receives zero.
func NewSeatLock(rdb *redis.Client, ttl time.Duration) *SeatLock {
	if ttl < time.Second {
		ttl = time.Second
	}
	return &SeatLock{rdb: rdb, ttl: ttl}
}

// Key builds the Redis key for one event seat.
func Key(eventID, eventSeatID uint64) string {
	return fmt.Sprintf("seatlock:%d:%d", eventID, eventSeatID)
}

// TTL reports the configured lock lifetime.
func (l *SeatLock) TTL() time.Duration { return l.ttl }

// Acquire attempts to take every requested seat for holderID in a single
// pipelined round trip of SET NX EX commands.  The call succeeds only when
// every key was newly set.  If any key already existed, all keys that this
// attempt did set are deleted before ErrSeatsLocked is returned, so a
// failed batch never leaves a partial acquire behind.
func (l *SeatLock) Acquire(ctx context.Context, eventID uint64, eventSeatIDs []uint64, holderID string) error {
	if len(eventSeatIDs) == 0 {
		return errors.New("no seats to lock")
	}

	pipe := l.rdb.TxPipeline()
	cmds := make([]*redis.BoolCmd, 0, len(eventSeatIDs))
	keys := make([]string, 0, len(eventSeatIDs))
	for _, sid := range eventSeatIDs {
		key := Key(eventID, sid)
		keys = append(keys, key)
		cmds = append(cmds, pipe.SetNX(ctx, key, holderID, l.ttl))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("seat lock pipeline: %w", err)
	}

	// Collect the keys this attempt actually set; if any SetNX lost the
	// race, those must be rolled back before reporting the conflict.
	acquired := make([]string, 0, len(cmds))
	conflict := false
	for i, cmd := range cmds {
		if cmd.Val() {
			acquired = append(acquired, keys[i])
		} else {
			conflict = true
		}
	}
	if !conflict {
		return nil
	}
	if len(acquired) > 0 {
		if err := l.rdb.Del(ctx, acquired...).Err(); err != nil {
			return fmt.Errorf("seat lock rollback: %w", err)
		}
	}
	return ErrSeatsLocked
}

// Release deletes the lock keys for the given seats unconditionally.
// Deleting an absent key is a no-op, so Release is idempotent and safe to
// call after the TTL has already expired the keys.
func (l *SeatLock) Release(ctx context.Context, eventID uint64, eventSeatIDs []uint64) error {
	if len(eventSeatIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(eventSeatIDs))
	for _, sid := range eventSeatIDs {
		keys = append(keys, Key(eventID, sid))
	}
	if err := l.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("seat lock release: %w", err)
	}
	return nil
}
