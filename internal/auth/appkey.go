package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/smallbiznis/catalog/internal/config"
	"golang.org/x/crypto/argon2"
)

const (
	appKeyTime    uint32 = 1
	appKeyMemory  uint32 = 64 * 1024
	appKeyThreads uint8  = 4
	appKeyLen     uint32 = 32
	appKeySaltLen        = 16
)

// HashAppKey encodes key as an argon2id PHC string suitable for APP_KEY_HASH.
func HashAppKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("app key is empty")
	}
	salt := make([]byte, appKeySaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	sum := argon2.IDKey([]byte(key), salt, appKeyTime, appKeyMemory, appKeyThreads, appKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, appKeyMemory, appKeyTime, appKeyThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

type argonHash struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	sum     []byte
}

func parseArgonHash(encoded string) (argonHash, error) {
	parts := strings.Split(strings.TrimSpace(encoded), "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return argonHash{}, fmt.Errorf("not an argon2id hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return argonHash{}, fmt.Errorf("unsupported argon2 version %q", parts[2])
	}

	var h argonHash
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.memory, &h.time, &h.threads); err != nil {
		return argonHash{}, fmt.Errorf("parse argon2 parameters: %w", err)
	}
	if h.memory == 0 || h.time == 0 || h.threads == 0 {
		return argonHash{}, fmt.Errorf("argon2 parameters must be positive")
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return argonHash{}, fmt.Errorf("decode salt: %w", err)
	}
	if h.sum, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return argonHash{}, fmt.Errorf("decode hash: %w", err)
	}
	if len(h.sum) == 0 {
		return argonHash{}, fmt.Errorf("hash is empty")
	}
	return h, nil
}

func (h argonHash) matches(key string) bool {
	sum := argon2.IDKey([]byte(key), h.salt, h.time, h.memory, h.threads, uint32(len(h.sum)))
	return subtle.ConstantTimeCompare(sum, h.sum) == 1
}

// AppKey verifies the bearer key of service-to-service calls. APP_KEY_HASH
// takes precedence over the plain APP_KEY. With neither set every key is
// rejected.
type AppKey struct {
	plain  []byte
	hashed *argonHash

	// digest of the last key that passed the argon2 check
	mu       sync.Mutex
	accepted []byte
}

func NewAppKey(cfg config.Config) (*AppKey, error) {
	k := &AppKey{}
	if encoded := strings.TrimSpace(cfg.AppKeyHash); encoded != "" {
		h, err := parseArgonHash(encoded)
		if err != nil {
			return nil, fmt.Errorf("APP_KEY_HASH: %w", err)
		}
		k.hashed = &h
		return k, nil
	}
	if plain := strings.TrimSpace(cfg.AppKey); plain != "" {
		k.plain = []byte(plain)
	}
	return k, nil
}

func (k *AppKey) Verify(key string) bool {
	if key == "" {
		return false
	}
	if k.hashed == nil {
		return len(k.plain) > 0 && subtle.ConstantTimeCompare([]byte(key), k.plain) == 1
	}

	digest := sha256.Sum256([]byte(key))
	k.mu.Lock()
	seen := k.accepted != nil && subtle.ConstantTimeCompare(digest[:], k.accepted) == 1
	k.mu.Unlock()
	if seen {
		return true
	}

	if !k.hashed.matches(key) {
		return false
	}
	k.mu.Lock()
	k.accepted = digest[:]
	k.mu.Unlock()
	return true
}
