package security

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"

	"tabletop/internal/config"
)

const (
	keyringService = "tabletop"
	vaultFile      = "vault.enc"
	saltFile       = "vault.salt"
)

// Secret names used for "[keyring]" config values.
const (
	SecretLLMKey         = "llm_api_key"
	SecretFallbackLLMKey = "fallback_llm_api_key"
	SecretJWT            = "jwt_secret"
	SecretRedisPassword  = "redis_password"
)

// ErrSecretNotFound is returned when neither the OS keyring nor the vault
// holds the requested secret.
var ErrSecretNotFound = errors.New("secret not found")

// KeyStore manages secure storage of service secrets.
// Primary: OS Keychain. Fallback: encrypted file.
type KeyStore struct {
	encryptionKey []byte // nil when no vault password was given
	vaultPath     string
}

// NewKeyStore creates a key store rooted at dir. The vault key is derived
// from password; with an empty password only the OS keyring is used.
func NewKeyStore(dir, password string) (*KeyStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	ks := &KeyStore{vaultPath: filepath.Join(dir, vaultFile)}
	if password == "" {
		return ks, nil
	}

	salt, err := LoadOrCreateSalt(filepath.Join(dir, saltFile))
	if err != nil {
		return nil, err
	}
	ks.encryptionKey = DeriveKey(password, salt)
	return ks, nil
}

// Set stores a secret (tries keyring first, falls back to encrypted file).
func (ks *KeyStore) Set(name, value string) error {
	if err := keyring.Set(keyringService, name, value); err == nil {
		return nil
	}
	return ks.setInVault(name, value)
}

// Get retrieves a secret.
func (ks *KeyStore) Get(name string) (string, error) {
	if val, err := keyring.Get(keyringService, name); err == nil {
		return val, nil
	}
	return ks.getFromVault(name)
}

// Delete removes a secret from both backends.
func (ks *KeyStore) Delete(name string) error {
	_ = keyring.Delete(keyringService, name)
	return ks.deleteFromVault(name)
}

// Resolve returns value unchanged unless it is the "[keyring]" marker, in
// which case the named secret is looked up.
func (ks *KeyStore) Resolve(value, name string) (string, error) {
	if value != config.KeyringRef {
		return value, nil
	}
	secret, err := ks.Get(name)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", name, err)
	}
	return secret, nil
}

// ResolveConfig replaces every "[keyring]" secret in cfg.
func (ks *KeyStore) ResolveConfig(cfg *config.Config) error {
	fields := []struct {
		name string
		ptr  *string
	}{
		{SecretLLMKey, &cfg.LLM.APIKey},
		{SecretFallbackLLMKey, &cfg.FallbackLLM.APIKey},
		{SecretJWT, &cfg.Auth.JWTSecret},
		{SecretRedisPassword, &cfg.Cache.RedisPassword},
	}
	var errs []error
	for _, f := range fields {
		v, err := ks.Resolve(*f.ptr, f.name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*f.ptr = v
	}
	return errors.Join(errs...)
}

// MaskKey returns a masked version of a secret for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:3] + "..." + key[len(key)-4:]
}

func (ks *KeyStore) loadVault() (map[string]string, error) {
	data, err := os.ReadFile(ks.vaultPath)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}

	if ks.encryptionKey == nil {
		return nil, errors.New("vault is locked: no password set")
	}

	plaintext, err := Decrypt(string(data), ks.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("decrypt vault: %w", err)
	}

	var vault map[string]string
	if err := json.Unmarshal(plaintext, &vault); err != nil {
		return nil, fmt.Errorf("parse vault: %w", err)
	}
	return vault, nil
}

func (ks *KeyStore) saveVault(vault map[string]string) error {
	if ks.encryptionKey == nil {
		return errors.New("vault is locked: no password set")
	}

	data, err := json.Marshal(vault)
	if err != nil {
		return err
	}

	encrypted, err := Encrypt(data, ks.encryptionKey)
	if err != nil {
		return err
	}
	return os.WriteFile(ks.vaultPath, []byte(encrypted), 0600)
}

func (ks *KeyStore) setInVault(name, value string) error {
	vault, err := ks.loadVault()
	if err != nil {
		return err
	}
	vault[name] = value
	return ks.saveVault(vault)
}

func (ks *KeyStore) getFromVault(name string) (string, error) {
	vault, err := ks.loadVault()
	if err != nil {
		return "", err
	}
	val, ok := vault[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}
	return val, nil
}

func (ks *KeyStore) deleteFromVault(name string) error {
	vault, err := ks.loadVault()
	if err != nil {
		return nil // nothing to delete
	}
	if _, ok := vault[name]; !ok {
		return nil
	}
	delete(vault, name)
	return ks.saveVault(vault)
}
