package causalchain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// Signer computes and verifies action signatures. The zero value is not
// usable; construct with NewSigner.
type Signer struct {
	mu              sync.RWMutex
	signingKey      string
	verificationKeys map[string]string
}

// NewSigner constructs a Signer with a freshly generated signing key, mirroring
// the original implementation's per-instance "key-<uuid>" scheme.
func NewSigner() *Signer {
	return &Signer{
		signingKey:       "key-" + uuid.NewString(),
		verificationKeys: map[string]string{},
	}
}

// NewSignerWithKey constructs a Signer using a caller-supplied signing key,
// useful for tests that need deterministic signatures.
func NewSignerWithKey(key string) *Signer {
	return &Signer{signingKey: key, verificationKeys: map[string]string{}}
}

// AddVerificationKey registers a public verification key under id.
func (s *Signer) AddVerificationKey(id, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verificationKeys[id] = key
}

// Sign computes signature = sha256(signing_key || action_id || timestamp || canonicalized_body).
func (s *Signer) Sign(a Action) string {
	s.mu.RLock()
	key := s.signingKey
	s.mu.RUnlock()

	h := sha256.New()
	h.Write([]byte(key))
	h.Write([]byte(a.ActionID))
	h.Write([]byte(strconv.FormatInt(a.Timestamp, 10)))
	body, _ := json.Marshal(a.canonical())
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether signature is the expected signature for a.
func (s *Signer) Verify(a Action, signature string) bool {
	return s.Sign(a) == signature
}
