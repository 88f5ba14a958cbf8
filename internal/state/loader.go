// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/term"
)

// PassphraseFunc resolves the passphrase for an encrypted state document.
// It is only consulted when the document is actually encrypted.
type PassphraseFunc func() (string, error)

// Parse unmarshals a raw state document into a generic JSON map. An
// OpenTofu document carrying an encrypted_data key is decrypted first
// using the passphrase resolver.
func Parse(raw []byte, passphrase PassphraseFunc) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse state JSON: %w", err)
	}

	if _, encrypted := doc["encrypted_data"]; !encrypted {
		return doc, nil
	}

	if passphrase == nil {
		return nil, fmt.Errorf("state is encrypted and no passphrase resolver was provided")
	}

	pass, err := passphrase()
	if err != nil {
		return nil, err
	}

	plain, err := DecryptOpenTofuState(raw, pass)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	doc = nil
	if err := json.Unmarshal(plain, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse decrypted state JSON: %w", err)
	}
	return doc, nil
}

// DefaultPassphrase resolves a passphrase from TFRUNNER_STATE_PASSPHRASE,
// then TF_VAR_passphrase, and finally an interactive prompt.
func DefaultPassphrase() (string, error) {
	if p := os.Getenv("TFRUNNER_STATE_PASSPHRASE"); p != "" {
		return p, nil
	}
	if p := os.Getenv("TF_VAR_passphrase"); p != "" {
		return p, nil
	}
	return getPassphrase()
}

// DecryptOpenTofuState decrypts an encrypted OpenTofu state file using the
// provided passphrase.
func DecryptOpenTofuState(stateData []byte, passphrase string) ([]byte, error) {
	var state struct {
		Meta struct {
			Key string `json:"key_provider.pbkdf2.mykey"`
		} `json:"meta"`
		EncryptedData string `json:"encrypted_data"`
	}

	if err := json.Unmarshal(stateData, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state: %w", err)
	}

	if state.EncryptedData == "" {
		return nil, fmt.Errorf("state has no encrypted_data")
	}

	keyProviderConfig, err := base64.StdEncoding.DecodeString(state.Meta.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key provider config: %w", err)
	}

	var kpConfig struct {
		Salt       string `json:"salt"`
		Iterations int    `json:"iterations"`
		HashFunc   string `json:"hash_function"`
		KeyLength  int    `json:"key_length"`
	}

	if err = json.Unmarshal(keyProviderConfig, &kpConfig); err != nil {
		return nil, fmt.Errorf("failed to parse key provider config: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(kpConfig.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}

	key := pbkdf2.Key(
		[]byte(passphrase),
		salt,
		kpConfig.Iterations,
		kpConfig.KeyLength,
		sha512.New,
	)

	return decryptState(state.EncryptedData, key)
}

func decryptState(encryptedData string, derivedKey []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encryptedData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := aesGCM.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf(
			"ciphertext too short: expected at least %d bytes, got %d",
			nonceSize,
			len(ciphertext),
		)
	}

	nonce := ciphertext[:nonceSize]
	encrypted := ciphertext[nonceSize:]

	plaintext, err := aesGCM.Open(nil, nonce, encrypted, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	return plaintext, nil
}

// getPassphrase prompts interactively for a passphrase without echoing input.
func getPassphrase() (string, error) {
	var password []byte
	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, os.Interrupt)

	oldState, err := term.MakeRaw(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	defer term.Restore(int(syscall.Stdin), oldState) //nolint:errcheck

	fmt.Print("Enter passphrase: ")
	defer fmt.Print("\r")

loop:
	for {
		select {
		case <-signalChannel:
			fmt.Println("\nInterrupt received, exiting...")
			return "", fmt.Errorf("interrupted")
		default:
			var buf [1]byte
			n, readErr := syscall.Read(syscall.Stdin, buf[:])
			if readErr != nil || n == 0 {
				break loop
			}
			if buf[0] == '\n' || buf[0] == '\r' {
				break loop
			}
			if buf[0] == 127 || buf[0] == 8 { // Handle backspace
				if len(password) > 0 {
					password = password[:len(password)-1]
					fmt.Print("\b \b")
				}
			} else {
				password = append(password, buf[0])
				fmt.Print("*")
			}
		}
	}
	fmt.Println()
	return string(password), nil
}
