package middleware

import (
	"bytes"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"bom-analytics-helper/config"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/blake2b"
)

// NonceAction is the action every status page request is bound to.
const NonceAction = "atum-pl-analytics"

const (
	nonceLength = 10

	// MinNonceLifetime is the shortest lifetime NewNonces accepts.
	MinNonceLifetime = time.Minute

	maxNonceBody = 64 << 10
)

var ErrInvalidNonce = errors.New("invalid nonce")

// Nonces issues short tokens bound to an action and a user. A nonce is valid
// for the tick it was made in and the one after, so between half and the full
// lifetime.
type Nonces struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

func NewNonces(secret string, lifetime time.Duration) *Nonces {
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}
	if lifetime < MinNonceLifetime {
		lifetime = MinNonceLifetime
	}
	return &Nonces{secret: []byte(secret), lifetime: lifetime, now: time.Now}
}

// NewNoncesFromSettings uses NONCE_SECRET and NONCE_LIFETIME.
func NewNoncesFromSettings(settings *config.Settings) *Nonces {
	return NewNonces(settings.NonceSecret, settings.NonceLifetime)
}

func (n *Nonces) tick() int64 {
	half := int64(n.lifetime / 2)
	return (n.now().UnixNano() + half - 1) / half
}

func (n *Nonces) hash(tick int64, action string, userID uint64) string {
	key := n.secret
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	h, err := blake2b.New256(key)
	if err != nil {
		// key is at most blake2b.Size bytes here.
		panic(err)
	}
	h.Write([]byte(strconv.FormatInt(tick, 10)))
	h.Write([]byte{'|'})
	h.Write([]byte(action))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatUint(userID, 10)))
	return hex.EncodeToString(h.Sum(nil))[:nonceLength]
}

// Create returns the nonce for action and user in the current tick.
func (n *Nonces) Create(action string, userID uint64) string {
	return n.hash(n.tick(), action, userID)
}

// Verify accepts nonces from the current or previous tick.
func (n *Nonces) Verify(nonce, action string, userID uint64) error {
	if len(nonce) != nonceLength || len(n.secret) == 0 {
		return ErrInvalidNonce
	}
	tick := n.tick()
	for _, t := range []int64{tick, tick - 1} {
		if subtle.ConstantTimeCompare([]byte(nonce), []byte(n.hash(t, action, userID))) == 1 {
			return nil
		}
	}
	return ErrInvalidNonce
}

// RequireNonce checks the "nonce" request field or the X-WP-Nonce header
// against action for the authenticated user.
func RequireNonce(nonces *Nonces, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		nonce := nonceFromRequest(c)
		if err := nonces.Verify(nonce, action, CurrentUserID(c)); err != nil {
			Deny(c, http.StatusForbidden, "Invalid security token.")
			return
		}
		c.Next()
	}
}

// nonceFromRequest reads the nonce from the form body, the query string or
// the X-WP-Nonce header. net/http only parses bodies of POST, PUT and PATCH,
// so other methods have their urlencoded body read here and put back.
func nonceFromRequest(c *gin.Context) string {
	if nonce := c.Request.FormValue("nonce"); nonce != "" {
		return nonce
	}
	if nonce := bodyNonce(c.Request); nonce != "" {
		return nonce
	}
	return c.GetHeader("X-WP-Nonce")
}

func bodyNonce(r *http.Request) string {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return ""
	}
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "application/x-www-form-urlencoded" {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxNonceBody))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(body), r.Body), r.Body}
	if err != nil {
		return ""
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return ""
	}
	return values.Get("nonce")
}
