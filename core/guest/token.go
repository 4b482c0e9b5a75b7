package guest

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const (
	InvitationTokenPrefix = "act_inv_"
	SessionTokenPrefix    = "stu_sess_"

	tokenBytes = 32
)

var (
	salt       = []byte("baraza.core.guest.token")
	randReader = rand.Reader // mockable
)

// IsSessionToken reports whether the bearer credential looks like a guest session token.
func IsSessionToken(token string) bool {
	return strings.HasPrefix(token, SessionTokenPrefix)
}

// makeToken returns prefix followed by 32 random bytes, base64url encoded.
func makeToken(prefix string) (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := io.ReadFull(randReader, b); err != nil {
		return "", errors.Wrap(err, "reading random bytes")
	}
	return prefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// hasher signs tokens so that only their keyed hash is ever stored.
type hasher struct {
	key [32]byte
}

func newHasher(secretKey string) hasher {
	return hasher{key: sha256.Sum256(append(append([]byte{}, salt...), secretKey...))}
}

func (h hasher) hash(token string) string {
	mac := hmac.New(sha256.New, h.key[:])
	_, _ = mac.Write([]byte(token))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
