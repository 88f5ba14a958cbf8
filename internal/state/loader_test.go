// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"
)

// TestParse_PlainState verifies a plain JSON state document parses without
// consulting the passphrase resolver.
func TestParse_PlainState(t *testing.T) {
	t.Parallel()
	raw := []byte(`{"version":4,"resources":[]}`)

	doc, err := Parse(raw, func() (string, error) {
		t.Fatal("passphrase resolver should not be called for plain state")
		return "", nil
	})

	require.NoError(t, err)
	assert.Equal(t, float64(4), doc["version"])
	assert.Empty(t, doc["resources"])
}

// TestParse_EncryptedState verifies an OpenTofu encrypted state document is
// decrypted and parsed.
func TestParse_EncryptedState(t *testing.T) {
	t.Parallel()
	passphrase := "test-passphrase"
	plaintext := []byte(`{"version":4,"terraform_version":"1.5.0"}`)

	stateData := createEncryptedStateFile(t, plaintext, passphrase)

	doc, err := Parse(stateData, func() (string, error) {
		return passphrase, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "1.5.0", doc["terraform_version"])
}

// TestParse_EncryptedStateWrongPassphrase verifies decryption failure
// surfaces as an error.
func TestParse_EncryptedStateWrongPassphrase(t *testing.T) {
	t.Parallel()
	stateData := createEncryptedStateFile(t, []byte(`{"version":4}`), "right")

	_, err := Parse(stateData, func() (string, error) {
		return "wrong", nil
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "decrypt")
}

// TestParse_InvalidJSON verifies non-JSON input is rejected.
func TestParse_InvalidJSON(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte("not valid json"), nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parse state JSON")
}

// TestParse_EncryptedStateNoResolver verifies an encrypted document with no
// resolver is an error rather than a prompt.
func TestParse_EncryptedStateNoResolver(t *testing.T) {
	t.Parallel()
	stateData := createEncryptedStateFile(t, []byte(`{"version":4}`), "pass")

	_, err := Parse(stateData, nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no passphrase resolver")
}

// TestDefaultPassphrase_Env verifies the env var precedence of the default
// resolver.
func TestDefaultPassphrase_Env(t *testing.T) {
	t.Setenv("TFRUNNER_STATE_PASSPHRASE", "from-runner-env")
	t.Setenv("TF_VAR_passphrase", "from-tf-var")

	p, err := DefaultPassphrase()
	require.NoError(t, err)
	assert.Equal(t, "from-runner-env", p)

	t.Setenv("TFRUNNER_STATE_PASSPHRASE", "")

	p, err = DefaultPassphrase()
	require.NoError(t, err)
	assert.Equal(t, "from-tf-var", p)
}

// TestDecryptOpenTofuState_ValidEncryption verifies successful decryption of
// a properly encrypted OpenTofu state file with valid passphrase.
func TestDecryptOpenTofuState_ValidEncryption(t *testing.T) {
	t.Parallel()
	passphrase := "test-passphrase"
	plaintext := []byte(`{"version":4,"terraform_version":"1.5.0"}`)

	stateData := createEncryptedStateFile(t, plaintext, passphrase)

	result, err := DecryptOpenTofuState(stateData, passphrase)

	assert.NoError(t, err)
	assert.Equal(t, plaintext, result)
}

// TestDecryptOpenTofuState_WrongPassphrase verifies that decryption fails
// with wrong passphrase.
func TestDecryptOpenTofuState_WrongPassphrase(t *testing.T) {
	t.Parallel()
	passphrase := "correct-passphrase"
	plaintext := []byte(`{"version":4}`)

	stateData := createEncryptedStateFile(t, plaintext, passphrase)

	_, err := DecryptOpenTofuState(stateData, "wrong-passphrase")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "decrypt")
}

// TestDecryptOpenTofuState_MissingEncryptedData verifies error when the
// encrypted_data field is missing.
func TestDecryptOpenTofuState_MissingEncryptedData(t *testing.T) {
	t.Parallel()
	stateJSON := map[string]any{
		"meta": map[string]any{
			"key_provider.pbkdf2.mykey": "dGVzdA==",
		},
	}

	stateData, err := json.Marshal(stateJSON)
	require.NoError(t, err)

	result, err := DecryptOpenTofuState(stateData, "passphrase")

	assert.Error(t, err)
	assert.Nil(t, result)
}

// TestDecryptOpenTofuState_InvalidKeyProviderConfig verifies error when key
// provider config JSON is invalid.
func TestDecryptOpenTofuState_InvalidKeyProviderConfig(t *testing.T) {
	t.Parallel()
	stateJSON := map[string]any{
		"meta": map[string]any{
			"key_provider.pbkdf2.mykey": base64.StdEncoding.EncodeToString(
				[]byte("invalid json"),
			),
		},
		"encrypted_data": "dGVzdA==",
	}

	stateData, err := json.Marshal(stateJSON)
	require.NoError(t, err)

	result, err := DecryptOpenTofuState(stateData, "passphrase")

	assert.Error(t, err)
	assert.Nil(t, result)
}

// TestDecryptOpenTofuState_CorruptedCiphertext verifies error when the
// ciphertext is truncated.
func TestDecryptOpenTofuState_CorruptedCiphertext(t *testing.T) {
	t.Parallel()
	passphrase := "test-passphrase"
	plaintext := []byte(`{"version":4}`)

	stateData := createEncryptedStateFile(t, plaintext, passphrase)

	var state struct {
		Meta struct {
			Key string `json:"key_provider.pbkdf2.mykey"`
		} `json:"meta"`
		EncryptedData string `json:"encrypted_data"`
	}

	err := json.Unmarshal(stateData, &state)
	require.NoError(t, err)

	state.EncryptedData = state.EncryptedData[:len(state.EncryptedData)-10]

	corruptedData, err := json.Marshal(state)
	require.NoError(t, err)

	result, err := DecryptOpenTofuState(corruptedData, passphrase)

	assert.Error(t, err)
	assert.Nil(t, result)
}

// TestDecryptOpenTofuState_LargePlaintext verifies decryption of large
// plaintext.
func TestDecryptOpenTofuState_LargePlaintext(t *testing.T) {
	t.Parallel()
	passphrase := "test-passphrase"
	plaintext := bytes.Repeat([]byte("x"), 10000)

	stateData := createEncryptedStateFile(t, plaintext, passphrase)

	result, err := DecryptOpenTofuState(stateData, passphrase)

	assert.NoError(t, err)
	assert.Equal(t, plaintext, result)
}

// createEncryptedStateFile is a helper that creates a properly encrypted
// OpenTofu state file for testing.
func createEncryptedStateFile(t *testing.T, plaintext []byte, passphrase string) []byte {
	t.Helper()

	salt := make([]byte, 16)
	_, err := rand.Read(salt)
	require.NoError(t, err)

	kpConfig := map[string]any{
		"salt":          base64.StdEncoding.EncodeToString(salt),
		"iterations":    200000,
		"hash_function": "sha512",
		"key_length":    32,
	}
	kpConfigJSON, err := json.Marshal(kpConfig)
	require.NoError(t, err)

	key := pbkdf2.Key([]byte(passphrase), salt, 200000, 32, sha512.New)

	block, err := aes.NewCipher(key)
	require.NoError(t, err)

	aesGCM, err := cipher.NewGCM(block)
	require.NoError(t, err)

	nonce := make([]byte, aesGCM.NonceSize())
	_, err = rand.Read(nonce)
	require.NoError(t, err)

	ciphertext := aesGCM.Seal(nonce, nonce, plaintext, nil)

	stateJSON := map[string]any{
		"meta": map[string]any{
			"key_provider.pbkdf2.mykey": base64.StdEncoding.EncodeToString(
				kpConfigJSON,
			),
		},
		"encrypted_data": base64.StdEncoding.EncodeToString(ciphertext),
	}

	stateData, err := json.Marshal(stateJSON)
	require.NoError(t, err)

	return stateData
}
