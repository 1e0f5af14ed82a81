// File: internal/service/session.go
package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"key-custody/internal/apperr"
	"key-custody/internal/cache"
	"key-custody/internal/database"
	"key-custody/internal/model"
	"key-custody/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

const (
	sessionIssuer    = "key-custody"
	sessionKeyPrefix = "session:"
	// MinSessionSecretBytes HS256 金鑰的最小長度
	MinSessionSecretBytes = 32
)

var parseWithClaims = jwt.ParseWithClaims

var errNoSession = apperr.New(apperr.KindUnauthenticated, "no valid session")

// Session 發給用戶端的 token 與目前的到期時間
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// SessionAuthority 發行與驗證 session。
// token 是只帶隨機 session id（jti）的 HS256 JWT，不含任何權限；
// redis 中 session:<jti> 存放 "<user id>:<username>"，每次驗證都會延長 TTL。
// 綁定 user id，刪除後重建的同名帳號不會接手舊 session。
type SessionAuthority struct {
	cache   cache.Cache
	db      database.DB
	secret  []byte
	ttl     time.Duration
	timeout time.Duration
}

func NewSessionAuthority(c cache.Cache, db database.DB, secret []byte, ttl, timeout time.Duration) (*SessionAuthority, error) {
	if len(secret) < MinSessionSecretBytes {
		return nil, fmt.Errorf("session secret must be at least %d bytes", MinSessionSecretBytes)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	return &SessionAuthority{cache: c, db: db, secret: secret, ttl: ttl, timeout: timeout}, nil
}

// TTL 滑動到期時間
func (s *SessionAuthority) TTL() time.Duration { return s.ttl }

// Login 為已驗證的使用者建立 session
func (s *SessionAuthority) Login(ctx context.Context, username string) (*Session, error) {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()

	u, err := getUserByUsername(ctx, s.db, username, store.NoLock)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, errNoSession
		}
		return nil, classify(err)
	}

	raw := make([]byte, 32)
	if _, err := randRead(raw); err != nil {
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "generate session id")
	}
	id := base64.RawURLEncoding.EncodeToString(raw)

	now := timeNow()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:       id,
		Issuer:   sessionIssuer,
		IssuedAt: jwt.NewNumericDate(now),
	}).SignedString(s.secret)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "sign session token")
	}

	if err := s.cache.Set(ctx, sessionKeyPrefix+id, encodeSessionEntry(u.ID, u.Username), s.ttl).Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "store session")
	}
	return &Session{Token: token, ExpiresAt: now.Add(s.ttl)}, nil
}

type sessionEntry struct {
	userID   int64
	username string
}

func encodeSessionEntry(userID int64, username string) string {
	return strconv.FormatInt(userID, 10) + ":" + username
}

func decodeSessionEntry(v string) (sessionEntry, bool) {
	idPart, username, ok := strings.Cut(v, ":")
	if !ok || username == "" {
		return sessionEntry{}, false
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return sessionEntry{}, false
	}
	return sessionEntry{userID: id, username: username}, true
}

// sessionID 驗證簽章與簽發者後取出 jti；任何不合法的 token 都是 Unauthenticated
func (s *SessionAuthority) sessionID(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := parseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(sessionIssuer))
	if err != nil || parsed == nil || !parsed.Valid || claims.ID == "" {
		return "", errNoSession
	}
	return claims.ID, nil
}

// CurrentIdentity 回傳 session 對應的 username，並把到期時間往後延
func (s *SessionAuthority) CurrentIdentity(ctx context.Context, token string) (string, error) {
	entry, err := s.lookup(ctx, token)
	if err != nil {
		return "", err
	}
	return entry.username, nil
}

func (s *SessionAuthority) lookup(ctx context.Context, token string) (sessionEntry, error) {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()

	id, err := s.sessionID(token)
	if err != nil {
		return sessionEntry{}, err
	}
	v, err := s.cache.Get(ctx, sessionKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return sessionEntry{}, errNoSession
	}
	if err != nil {
		return sessionEntry{}, apperr.Wrap(apperr.KindInfrastructure, err, "read session")
	}
	entry, ok := decodeSessionEntry(v)
	if !ok {
		_ = s.cache.Del(ctx, sessionKeyPrefix+id).Err()
		return sessionEntry{}, errNoSession
	}
	if _, err := s.renew(ctx, id); err != nil {
		return sessionEntry{}, err
	}
	return entry, nil
}

// CurrentUser 依 session 綁定的 user id 重新讀取使用者；
// 使用者已刪除、被同名帳號取代或停用登入時會一併清除 session
func (s *SessionAuthority) CurrentUser(ctx context.Context, token string) (*model.User, error) {
	entry, err := s.lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()

	u, err := getUserByID(ctx, s.db, entry.userID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			_ = s.Purge(ctx, token)
			return nil, errNoSession
		}
		return nil, classify(err)
	}
	if u.Username != entry.username || !u.CanLogin {
		_ = s.Purge(ctx, token)
		return nil, errNoSession
	}
	return u, nil
}

// Renew 延長 session 並回傳新的到期時間
func (s *SessionAuthority) Renew(ctx context.Context, token string) (time.Time, error) {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()

	id, err := s.sessionID(token)
	if err != nil {
		return time.Time{}, err
	}
	return s.renew(ctx, id)
}

func (s *SessionAuthority) renew(ctx context.Context, id string) (time.Time, error) {
	ok, err := s.cache.Expire(ctx, sessionKeyPrefix+id, s.ttl).Result()
	if err != nil {
		return time.Time{}, apperr.Wrap(apperr.KindInfrastructure, err, "renew session")
	}
	if !ok {
		return time.Time{}, errNoSession
	}
	return timeNow().Add(s.ttl), nil
}

// Purge 登出；session 已不存在時視為成功
func (s *SessionAuthority) Purge(ctx context.Context, token string) error {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()

	id, err := s.sessionID(token)
	if err != nil {
		return err
	}
	if err := s.cache.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
		return apperr.Wrap(apperr.KindInfrastructure, err, "purge session")
	}
	return nil
}

// RequireAdmin 每次都從資料庫重新讀取管理員身分，不信任 session 建立時的狀態
func (s *SessionAuthority) RequireAdmin(ctx context.Context, token string) (*model.User, error) {
	u, err := s.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}
	if !u.IsActiveAdmin() {
		return nil, apperr.New(apperr.KindUnauthorized, "administrator privilege required")
	}
	return u, nil
}
