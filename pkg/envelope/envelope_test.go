package envelope

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vvelazquez/bosh/pkg/director"
)

func TestNoCredentialsIsPassthrough(t *testing.T) {
	e := New(nil)
	require.False(t, e.Enabled())

	payload := map[string]interface{}{"method": "ping"}
	wrapped, err := e.Encrypt(payload)
	require.NoError(t, err)
	require.Equal(t, payload, wrapped)

	require.Equal(t, payload, e.Decrypt(payload))
}

func TestEncryptThenDecryptRoundTrips(t *testing.T) {
	creds := &director.AgentCredentials{}
	for i := range creds.Key {
		creds.Key[i] = byte(i)
	}
	e := New(creds)
	require.True(t, e.Enabled())

	payload := map[string]interface{}{"method": "apply", "arguments": []interface{}{"x"}}
	wrapped, err := e.Encrypt(payload)
	require.NoError(t, err)
	require.Contains(t, wrapped, "encrypted_data")
	require.Contains(t, wrapped, "session_id")

	decrypted := e.Decrypt(wrapped)
	require.Equal(t, "apply", decrypted["method"])
}

func TestDecryptWithWrongKeyYieldsCryptError(t *testing.T) {
	var key1, key2 director.AgentCredentials
	key1.Key[0] = 1
	key2.Key[0] = 2

	sender := New(&key1)
	wrapped, err := sender.Encrypt(map[string]interface{}{"method": "ping"})
	require.NoError(t, err)

	receiver := New(&key2)
	decrypted := receiver.Decrypt(wrapped)

	exception, ok := decrypted["exception"].(string)
	require.True(t, ok)
	require.Contains(t, exception, "CryptError")
}

func TestDecryptPlainReplyIsPassthrough(t *testing.T) {
	var creds director.AgentCredentials
	creds.Key[0] = 9
	e := New(&creds)

	plain := map[string]interface{}{"value": "pong"}
	require.Equal(t, plain, e.Decrypt(plain))
}

func TestDecryptUndecodableBase64YieldsCryptError(t *testing.T) {
	var creds director.AgentCredentials
	e := New(&creds)

	decrypted := e.Decrypt(map[string]interface{}{"encrypted_data": "not-valid-base64!!"})
	exception, ok := decrypted["exception"].(string)
	require.True(t, ok)
	require.Contains(t, exception, "CryptError")
}
