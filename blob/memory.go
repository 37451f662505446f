package blob

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/krisalay/marketplace/internal/logging"
	"github.com/krisalay/marketplace/types"
)

var (
	errNotFound      = errors.New("no such object")
	errBadSignature  = errors.New("signature mismatch")
	errExpiredURL    = errors.New("url expired")
	errMalformedLink = errors.New("malformed url")
)

// Config describes the bucket a MemoryStore emulates.
type Config struct {
	Endpoint   string
	Bucket     string
	Secret     []byte
	PresignTTL time.Duration
}

type object struct {
	contentType string
	data        []byte
}

// MemoryStore is an in-process object store keyed by opaque strings.
// Presigned URLs are HMAC-SHA256 signatures over bucket, key and expiry.
type MemoryStore struct {
	cfg   Config
	clock clockwork.Clock
	log   *logging.Logger

	mu      sync.RWMutex
	objects map[string]object
}

func NewMemoryStore(cfg Config, clock clockwork.Clock, log *logging.Logger) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logging.Discard()
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 15 * time.Minute
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &MemoryStore{
		cfg:     cfg,
		clock:   clock,
		log:     log,
		objects: make(map[string]object),
	}
}

// Upload stores f under a fresh key of the form "<uuid>_<filename>" and returns the key.
func (s *MemoryStore) Upload(ctx context.Context, f File) (string, error) {
	if f.Empty() {
		s.log.Errorf("refusing to upload empty file %q", f.Name)
		return "", &types.StorageError{Op: "upload", Key: f.Name, Err: ErrEmptyFile}
	}
	if err := ctx.Err(); err != nil {
		return "", &types.StorageError{Op: "upload", Key: f.Name, Err: err}
	}

	key := uuid.NewString() + "_" + f.baseName()
	data := make([]byte, len(f.Content))
	copy(data, f.Content)

	s.mu.Lock()
	s.objects[key] = object{contentType: f.ContentType, data: data}
	s.mu.Unlock()

	s.log.Infof("uploaded %s to bucket %s", key, s.cfg.Bucket)
	return key, nil
}

// Delete removes key. An empty key or a missing object is not an error.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return &types.StorageError{Op: "delete", Key: key, Err: err}
	}

	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()

	s.log.Infof("deleted %s from bucket %s", key, s.cfg.Bucket)
	return nil
}

// DeleteAll removes every key and stops at the first failure.
func (s *MemoryStore) DeleteAll(ctx context.Context, keys []string) error {
	for _, k := range keys {
		if err := s.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// Exists reports whether key is stored.
func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, &types.StorageError{Op: "stat", Key: key, Err: err}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

// Open returns a copy of the stored bytes.
func (s *MemoryStore) Open(ctx context.Context, key string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", &types.StorageError{Op: "open", Key: key, Err: err}
	}
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, "", &types.StorageError{Op: "open", Key: key, Err: errNotFound}
	}
	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	return data, obj.contentType, nil
}

// URL returns a presigned GET URL for key, or "" when no such object exists.
func (s *MemoryStore) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", &types.StorageError{Op: "presign", Err: errors.New("key is empty")}
	}
	ok, err := s.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		s.log.Warnf("picture %s does not exist in bucket %s", key, s.cfg.Bucket)
		return "", nil
	}

	expires := s.clock.Now().Add(s.cfg.PresignTTL).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", s.sign(key, expires))

	return fmt.Sprintf("%s/%s/%s?%s", s.cfg.Endpoint, s.cfg.Bucket, url.PathEscape(key), q.Encode()), nil
}

// Verify checks a URL produced by URL and returns the object key it grants.
func (s *MemoryStore) Verify(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", &types.StorageError{Op: "verify", Err: err}
	}

	prefix := "/" + s.cfg.Bucket + "/"
	p := u.EscapedPath()
	if !strings.HasPrefix(p, prefix) {
		return "", &types.StorageError{Op: "verify", Err: errMalformedLink}
	}
	key, err := url.PathUnescape(strings.TrimPrefix(p, prefix))
	if err != nil {
		return "", &types.StorageError{Op: "verify", Err: err}
	}

	expires, err := strconv.ParseInt(u.Query().Get("expires"), 10, 64)
	if err != nil {
		return "", &types.StorageError{Op: "verify", Key: key, Err: errMalformedLink}
	}
	if !hmac.Equal([]byte(u.Query().Get("signature")), []byte(s.sign(key, expires))) {
		return "", &types.StorageError{Op: "verify", Key: key, Err: errBadSignature}
	}
	if s.clock.Now().Unix() > expires {
		return "", &types.StorageError{Op: "verify", Key: key, Err: errExpiredURL}
	}
	return key, nil
}

func (s *MemoryStore) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.cfg.Secret)
	fmt.Fprintf(mac, "GET\n%s\n%s\n%d", s.cfg.Bucket, key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
