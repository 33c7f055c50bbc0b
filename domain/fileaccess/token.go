package fileaccess

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// DefaultTokenTTL is the lifetime of a token minted without an explicit TTL.
const DefaultTokenTTL = 300 * time.Second

const recommendedSecretLen = 32

var encoding = base64.RawURLEncoding.Strict()

type TokenClaims struct {
	FileID    string
	UserID    string
	ExpiresAt int64
}

// Signer mints and verifies file access tokens of the form
// base64url(fileID:userID:expiresAt) "." base64url(hmac_sha256(secret, payload)).
type Signer struct {
	secret []byte
	now    func() time.Time
}

func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("file token secret is empty")
	}
	if len(secret) < recommendedSecretLen {
		slog.Warn("file token secret is shorter than recommended", slog.Int("length", len(secret)), slog.Int("recommended", recommendedSecretLen))
	}
	return &Signer{secret: []byte(secret), now: time.Now}, nil
}

func (s *Signer) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write(payload)
	return mac.Sum(nil)
}

func (s *Signer) Generate(fileID, userID string, ttl time.Duration) string {
	if ttl < 0 {
		ttl = 0
	}
	expiresAt := s.now().Unix() + int64(ttl/time.Second)
	payload := []byte(fileID + ":" + userID + ":" + strconv.FormatInt(expiresAt, 10))
	return encoding.EncodeToString(payload) + "." + encoding.EncodeToString(s.sign(payload))
}

// Verify returns the claims of a valid, unexpired token for expectedFileID.
// Every failure reports false without saying why.
func (s *Signer) Verify(token, expectedFileID string) (*TokenClaims, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, false
	}
	payload, err := encoding.DecodeString(parts[0])
	if err != nil {
		return nil, false
	}
	sig, err := encoding.DecodeString(parts[1])
	if err != nil {
		return nil, false
	}
	if !hmac.Equal(sig, s.sign(payload)) {
		return nil, false
	}

	fields := strings.Split(string(payload), ":")
	if len(fields) != 3 || fields[0] == "" || fields[1] == "" {
		return nil, false
	}
	expiresAt, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, false
	}
	if fields[0] != expectedFileID {
		return nil, false
	}
	if expiresAt < s.now().Unix() {
		return nil, false
	}
	return &TokenClaims{FileID: fields[0], UserID: fields[1], ExpiresAt: expiresAt}, true
}
