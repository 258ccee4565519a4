package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"labgate/internal/session"
	id "labgate/pkg/domain"
	dErrors "labgate/pkg/domain-errors"
)

const (
	sessionKeyPrefix = "session:"
	adminIdxPrefix   = "admin_sessions:"
	activeKeyPrefix  = "session_active:" // session_active:<admin>:<ip> -> session id

	// sessionRetention keeps deactivated sessions around for audit reads
	// before Redis reclaims them.
	sessionRetention = 7 * 24 * time.Hour
)

// sessionJSON is the JSON-serializable representation of a Session.
type sessionJSON struct {
	ID                string `json:"id"`
	AdminID           string `json:"admin_id"`
	IPAddress         string `json:"ip_address"`
	UserAgent         string `json:"user_agent"`
	DeviceDisplayName string `json:"device_display_name"`
	APIKey            string `json:"api_key"`
	AccessToken       string `json:"access_token"`
	RespID            string `json:"resp_id"`
	CreatedAt         int64  `json:"created_at"`         // Unix nano
	APIKeyExpiresAt   int64  `json:"api_key_expires_at"` // Unix nano
	ExpiresAt         int64  `json:"expires_at"`         // Unix nano
	LastUsageAt       int64  `json:"last_usage_at"`      // Unix nano
	UsageCount        int    `json:"usage_count"`
	Active            bool   `json:"active"`
}

func toJSON(s *session.Session) *sessionJSON {
	return &sessionJSON{
		ID:                s.ID.String(),
		AdminID:           s.AdminID.String(),
		IPAddress:         s.IPAddress,
		UserAgent:         s.UserAgent,
		DeviceDisplayName: s.DeviceDisplayName,
		APIKey:            s.APIKey,
		AccessToken:       s.AccessToken,
		RespID:            s.RespID,
		CreatedAt:         s.CreatedAt.UnixNano(),
		APIKeyExpiresAt:   s.APIKeyExpiresAt.UnixNano(),
		ExpiresAt:         s.ExpiresAt.UnixNano(),
		LastUsageAt:       s.LastUsageAt.UnixNano(),
		UsageCount:        s.UsageCount,
		Active:            s.Active,
	}
}

func fromJSON(j *sessionJSON) (*session.Session, error) {
	sid, err := uuid.Parse(j.ID)
	if err != nil {
		return nil, fmt.Errorf("parse session id: %w", err)
	}
	aid, err := uuid.Parse(j.AdminID)
	if err != nil {
		return nil, fmt.Errorf("parse admin id: %w", err)
	}
	return &session.Session{
		ID:                id.SessionID(sid),
		AdminID:           id.AdminID(aid),
		IPAddress:         j.IPAddress,
		UserAgent:         j.UserAgent,
		DeviceDisplayName: j.DeviceDisplayName,
		APIKey:            j.APIKey,
		AccessToken:       j.AccessToken,
		RespID:            j.RespID,
		CreatedAt:         time.Unix(0, j.CreatedAt),
		APIKeyExpiresAt:   time.Unix(0, j.APIKeyExpiresAt),
		ExpiresAt:         time.Unix(0, j.ExpiresAt),
		LastUsageAt:       time.Unix(0, j.LastUsageAt),
		UsageCount:        j.UsageCount,
		Active:            j.Active,
	}, nil
}

// RedisStore persists sessions in Redis.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedis constructs a Redis-backed session store.
func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(sid string) string { return sessionKeyPrefix + sid }
func adminKey(aid string) string   { return adminIdxPrefix + aid }
func activeKey(aid, ip string) string {
	return activeKeyPrefix + aid + ":" + ip
}

// ReplaceActive runs under WATCH on the (admin, IP) active pointer so two
// concurrent logins cannot both create a session for the same pair.
func (s *RedisStore) ReplaceActive(ctx context.Context, sess *session.Session) error {
	ak := activeKey(sess.AdminID.String(), sess.IPAddress)

	txn := func(tx *redis.Tx) error {
		oldID, err := tx.Get(ctx, ak).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("read active pointer: %w", err)
		}

		var oldPayload []byte
		if oldID != "" {
			raw, err := tx.Get(ctx, sessionKey(oldID)).Bytes()
			if err == nil {
				var j sessionJSON
				if jerr := json.Unmarshal(raw, &j); jerr == nil {
					j.Active = false
					oldPayload, _ = json.Marshal(&j)
				}
			}
		}

		payload, err := json.Marshal(toJSON(sess))
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if oldPayload != nil {
				pipe.Set(ctx, sessionKey(oldID), oldPayload, sessionRetention)
			}
			pipe.Set(ctx, sessionKey(sess.ID.String()), payload, sessionRetention)
			pipe.Set(ctx, ak, sess.ID.String(), sessionRetention)
			pipe.SAdd(ctx, adminKey(sess.AdminID.String()), sess.ID.String())
			pipe.Expire(ctx, adminKey(sess.AdminID.String()), sessionRetention)
			return nil
		})
		return err
	}

	for i := 0; i < 3; i++ {
		err := s.client.Watch(ctx, txn, ak)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "replace active session")
		}
	}
	return dErrors.New(dErrors.CodeConflict, "concurrent session creation, retry login")
}

func (s *RedisStore) FindByID(ctx context.Context, sessionID id.SessionID) (*session.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(sessionID.String())).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read session")
	}
	var j sessionJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "decode session")
	}
	return fromJSON(&j)
}

func (s *RedisStore) FindUsableByAdminIP(ctx context.Context, adminID id.AdminID, ip string, now time.Time) (*session.Session, error) {
	sid, err := s.client.Get(ctx, activeKey(adminID.String(), ip)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, dErrors.New(dErrors.CodeNotFound, "no usable session for admin at this IP")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read active pointer")
	}
	parsed, err := id.ParseSessionID(sid)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "corrupt active pointer")
	}
	sess, err := s.FindByID(ctx, parsed)
	if err != nil {
		return nil, err
	}
	if !sess.IsUsable(now) {
		return nil, dErrors.New(dErrors.CodeNotFound, "no usable session for admin at this IP")
	}
	return sess, nil
}

func (s *RedisStore) ListByAdmin(ctx context.Context, adminID id.AdminID) ([]*session.Session, error) {
	ids, err := s.client.SMembers(ctx, adminKey(adminID.String())).Result()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list admin sessions")
	}
	out := make([]*session.Session, 0, len(ids))
	for _, sid := range ids {
		parsed, err := id.ParseSessionID(sid)
		if err != nil {
			continue
		}
		sess, err := s.FindByID(ctx, parsed)
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			continue // expired out of retention
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

func (s *RedisStore) UpdateUsage(ctx context.Context, sess *session.Session) error {
	existing, err := s.FindByID(ctx, sess.ID)
	if err != nil {
		return err
	}
	existing.LastUsageAt = sess.LastUsageAt
	existing.UsageCount = sess.UsageCount
	payload, err := json.Marshal(toJSON(existing))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "marshal session")
	}
	if err := s.client.Set(ctx, sessionKey(sess.ID.String()), payload, sessionRetention).Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update session usage")
	}
	return nil
}

// DeactivateExpired is a no-op for Redis: expiry is evaluated on read and
// keys age out via retention TTLs.
func (s *RedisStore) DeactivateExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

var _ Store = (*RedisStore)(nil)
