package token

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Signer signs session ids and hands the parser the key to check them with.
type Signer interface {
	Sign(claims jwt.MapClaims) (string, error)
	GetVerificationKey(token *jwt.Token) (any, error)
	GetSigningMethod() jwt.SigningMethod
}

// HMACSigner signs with the current secret and still accepts session ids
// signed with any of the previous ones, so the stub's secret can be rotated
// without logging everybody out. Each token names its secret in the kid header.
type HMACSigner struct {
	currentKID string
	keys       map[string][]byte
}

// NewHMACSigner signs with secret; previous secrets are accepted for verification only.
func NewHMACSigner(secret string, previous ...string) *HMACSigner {
	h := &HMACSigner{
		currentKID: keyID(secret),
		keys:       make(map[string][]byte, len(previous)+1),
	}
	for _, p := range previous {
		if p != "" {
			h.keys[keyID(p)] = []byte(p)
		}
	}
	h.keys[h.currentKID] = []byte(secret)
	return h
}

func (h *HMACSigner) Sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = h.currentKID
	signed, err := token.SignedString(h.keys[h.currentKID])
	if err != nil {
		return "", errors.Wrap(err, "signing session id")
	}
	return signed, nil
}

func (h *HMACSigner) GetVerificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	kid, _ := token.Header["kid"].(string)
	key, ok := h.keys[kid]
	if !ok {
		return nil, errors.Errorf("unknown signing key %q", kid)
	}
	return key, nil
}

func (h *HMACSigner) GetSigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodHS256
}

func keyID(secret string) string {
	sum := sha256.Sum256([]byte("session-signing-key:" + secret))
	return hex.EncodeToString(sum[:4])
}
