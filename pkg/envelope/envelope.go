// Package envelope implements the optional symmetric encryption wrapper
// for agent RPC payloads. When an agent's credentials are configured,
// outbound payloads are wrapped as {encrypted_data, session_id}; inbound
// payloads shaped that way are unwrapped, with decryption failures
// folded into the same {exception: "CryptError: ..."} shape the rest of
// the agent client already knows how to handle, so error handling
// downstream stays uniform.
//
// The symmetric primitive is golang.org/x/crypto/nacl/secretbox.
package envelope

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/vvelazquez/bosh/pkg/director"
)

// CryptError describes why an inbound payload's encrypted_data field
// could not be decrypted. Decrypt does not return it as a Go error; its
// text becomes the exception field of the reply it hands back.
type CryptError struct {
	Reason string
}

func (e *CryptError) Error() string {
	return "CryptError: " + e.Reason
}

const nonceSize = 24

// Envelope wraps and unwraps payloads for a single agent's credentials.
type Envelope struct {
	creds *director.AgentCredentials
}

// New returns an Envelope with encryption disabled (a passthrough) when
// creds is nil, or keyed to creds otherwise.
func New(creds *director.AgentCredentials) *Envelope {
	return &Envelope{creds: creds}
}

// Enabled reports whether this envelope will actually encrypt/decrypt.
func (e *Envelope) Enabled() bool {
	return e.creds != nil
}

// Encrypt wraps payload as {encrypted_data, session_id}. If no credentials
// are configured, payload is returned unchanged.
func (e *Envelope) Encrypt(payload map[string]interface{}) (map[string]interface{}, error) {
	if !e.Enabled() {
		return payload, nil
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal payload for encryption")
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, errors.Wrap(err, "generate nonce")
	}

	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, &e.creds.Key)

	return map[string]interface{}{
		"encrypted_data": base64.StdEncoding.EncodeToString(sealed),
		"session_id":     uuid.New().String(),
	}, nil
}

// Decrypt unwraps an inbound reply. Replies without an encrypted_data key
// are returned unchanged (the outer shape did not opt into encryption).
// A decryption failure never returns a Go error: it is folded into
// {exception: "CryptError: ..."} so callers always look for errors in
// the same place.
func (e *Envelope) Decrypt(reply map[string]interface{}) map[string]interface{} {
	raw, ok := reply["encrypted_data"]
	if !ok {
		return reply
	}

	encoded, ok := raw.(string)
	if !ok {
		return cryptErrorReply("encrypted_data is not a string")
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return cryptErrorReply("invalid base64: " + err.Error())
	}
	if len(sealed) < nonceSize {
		return cryptErrorReply("ciphertext too short")
	}
	if !e.Enabled() {
		return cryptErrorReply("no credentials configured to decrypt")
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &e.creds.Key)
	if !ok {
		return cryptErrorReply("decryption failed")
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(plaintext, &decoded); err != nil {
		return cryptErrorReply("invalid plaintext: " + err.Error())
	}
	return decoded
}

func cryptErrorReply(reason string) map[string]interface{} {
	return map[string]interface{}{"exception": (&CryptError{Reason: reason}).Error()}
}
