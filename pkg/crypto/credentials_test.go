package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestNewCredentialEncryptor(t *testing.T) {
	t.Run("empty key rejected", func(t *testing.T) {
		_, err := NewCredentialEncryptor("")
		if !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("expected ErrInvalidKey, got %v", err)
		}
	})

	t.Run("passphrase accepted", func(t *testing.T) {
		if _, err := NewCredentialEncryptor("any passphrase works"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("base64 32-byte key accepted", func(t *testing.T) {
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			t.Fatal(err)
		}
		if _, err := NewCredentialEncryptor(base64.StdEncoding.EncodeToString(raw)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	enc, err := NewCredentialEncryptor("studyloop-test-key")
	if err != nil {
		t.Fatal(err)
	}

	apiKey := "sk-proj-1234567890abcdef"

	ciphertext, err := enc.Encrypt(apiKey)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if ciphertext == apiKey {
		t.Fatal("ciphertext equals plaintext")
	}
	if strings.Contains(ciphertext, "sk-proj") {
		t.Fatal("ciphertext leaks plaintext prefix")
	}

	plaintext, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if plaintext != apiKey {
		t.Fatalf("round trip mismatch: got %q", plaintext)
	}
}

func TestEncrypt_EmptyPassthrough(t *testing.T) {
	enc, err := NewCredentialEncryptor("k")
	if err != nil {
		t.Fatal(err)
	}

	ciphertext, err := enc.Encrypt("")
	if err != nil || ciphertext != "" {
		t.Fatalf("empty plaintext: got (%q, %v)", ciphertext, err)
	}

	plaintext, err := enc.Decrypt("")
	if err != nil || plaintext != "" {
		t.Fatalf("empty ciphertext: got (%q, %v)", plaintext, err)
	}
}

func TestEncrypt_NonceUniqueness(t *testing.T) {
	enc, err := NewCredentialEncryptor("studyloop-test-key")
	if err != nil {
		t.Fatal(err)
	}

	a, err := enc.Encrypt("same plaintext")
	if err != nil {
		t.Fatal(err)
	}
	b, err := enc.Encrypt("same plaintext")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("two encryptions of the same plaintext produced identical ciphertext")
	}
}

func TestDecrypt_Failures(t *testing.T) {
	enc, err := NewCredentialEncryptor("studyloop-test-key")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("invalid base64", func(t *testing.T) {
		_, err := enc.Decrypt("not base64!!!")
		if !errors.Is(err, ErrDecryptionFailed) {
			t.Fatalf("expected ErrDecryptionFailed, got %v", err)
		}
	})

	t.Run("truncated ciphertext", func(t *testing.T) {
		_, err := enc.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
		if !errors.Is(err, ErrDecryptionFailed) {
			t.Fatalf("expected ErrDecryptionFailed, got %v", err)
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := NewCredentialEncryptor("a different key")
		if err != nil {
			t.Fatal(err)
		}
		ciphertext, err := enc.Encrypt("sk-proj-secret")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := other.Decrypt(ciphertext); !errors.Is(err, ErrDecryptionFailed) {
			t.Fatalf("expected ErrDecryptionFailed, got %v", err)
		}
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		ciphertext, err := enc.Encrypt("sk-proj-secret")
		if err != nil {
			t.Fatal(err)
		}
		data, err := base64.StdEncoding.DecodeString(ciphertext)
		if err != nil {
			t.Fatal(err)
		}
		data[len(data)-1] ^= 0xFF
		if _, err := enc.Decrypt(base64.StdEncoding.EncodeToString(data)); !errors.Is(err, ErrDecryptionFailed) {
			t.Fatalf("expected ErrDecryptionFailed, got %v", err)
		}
	})
}
