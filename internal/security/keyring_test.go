package security

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"tabletop/internal/config"
)

func TestKeyStoreUsesKeyring(t *testing.T) {
	keyring.MockInit()
	ks, err := NewKeyStore(t.TempDir(), "")
	require.NoError(t, err)

	require.NoError(t, ks.Set(SecretLLMKey, "sk-ant-123"))
	got, err := ks.Get(SecretLLMKey)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-123", got)

	require.NoError(t, ks.Delete(SecretLLMKey))
	_, err = ks.Get(SecretLLMKey)
	require.Error(t, err)
}

func TestKeyStoreFallsBackToVault(t *testing.T) {
	keyring.MockInitWithError(errors.New("no keychain"))
	dir := t.TempDir()

	ks, err := NewKeyStore(dir, "hunter2")
	require.NoError(t, err)
	require.NoError(t, ks.Set(SecretJWT, "jwt-secret"))

	reopened, err := NewKeyStore(dir, "hunter2")
	require.NoError(t, err)
	got, err := reopened.Get(SecretJWT)
	require.NoError(t, err)
	assert.Equal(t, "jwt-secret", got)

	_, err = reopened.Get("missing")
	require.ErrorIs(t, err, ErrSecretNotFound)

	wrong, err := NewKeyStore(dir, "wrong")
	require.NoError(t, err)
	_, err = wrong.Get(SecretJWT)
	require.Error(t, err)

	locked, err := NewKeyStore(dir, "")
	require.NoError(t, err)
	require.Error(t, locked.Set(SecretJWT, "x"))
}

func TestResolveConfig(t *testing.T) {
	keyring.MockInit()
	ks, err := NewKeyStore(t.TempDir(), "")
	require.NoError(t, err)
	require.NoError(t, ks.Set(SecretLLMKey, "sk-from-keyring"))

	cfg := config.Defaults()
	cfg.LLM.APIKey = config.KeyringRef
	cfg.Auth.JWTSecret = "plain"

	require.NoError(t, ks.ResolveConfig(cfg))
	assert.Equal(t, "sk-from-keyring", cfg.LLM.APIKey)
	assert.Equal(t, "plain", cfg.Auth.JWTSecret)

	cfg.FallbackLLM.APIKey = config.KeyringRef
	err = ks.ResolveConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), SecretFallbackLLMKey)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "****", MaskKey("short"))
	assert.Equal(t, "sk-...cdef", MaskKey("sk-ant-0123456789abcdef"))
}
