package services_test

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/hex"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ricbatera/credentials-fullstack/internal/core/crypto"
	"github.com/ricbatera/credentials-fullstack/internal/core/domain"
	"github.com/ricbatera/credentials-fullstack/internal/core/services"
	"github.com/ricbatera/credentials-fullstack/internal/db/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testVaultKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	if _, err := cryptorand.Read(key); err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}
	return hex.EncodeToString(key)
}

// generateKeyText produces a registered-form public key and its private half.
func generateKeyText(t *testing.T, tr *crypto.Transfer) (string, string) {
	t.Helper()
	pub, priv, err := tr.GenerateKeyPair()
	require.NoError(t, err)
	pubText, err := tr.EncodePublicKey(pub)
	require.NoError(t, err)
	privText, err := tr.EncodePrivateKey(priv)
	require.NoError(t, err)
	return pubText, privText
}

func newTestRegistry(t *testing.T) (*services.KeyRegistry, *crypto.Transfer) {
	t.Helper()
	tr := crypto.NewTransfer()
	return services.NewKeyRegistry(memory.NewConsumerKeyRepo(), tr, testLogger()), tr
}

func TestKeyRegistry_Register(t *testing.T) {
	registry, tr := newTestRegistry(t)
	pubText, _ := generateKeyText(t, tr)

	key, err := registry.Register(context.Background(), services.RegisterKeyInput{
		ConsumerName:       "Billing Robot",
		ConsumerIdentifier: "robot-1",
		PublicKey:          pubText,
	})
	require.NoError(t, err)
	assert.Equal(t, "robot-1", key.ConsumerIdentifier)
	assert.Equal(t, "RSA", key.KeyAlgorithm)
	assert.Equal(t, 2048, key.KeySize)
	assert.True(t, key.Active)
	assert.True(t, key.Valid())
}

func TestKeyRegistry_Register_RejectsInvalidKeyText(t *testing.T) {
	registry, _ := newTestRegistry(t)

	_, err := registry.Register(context.Background(), services.RegisterKeyInput{
		ConsumerName:       "Billing Robot",
		ConsumerIdentifier: "robot-1",
		PublicKey:          "not a key",
	})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestKeyRegistry_Register_DuplicateIdentifierConflicts(t *testing.T) {
	registry, tr := newTestRegistry(t)
	pubText, _ := generateKeyText(t, tr)

	_, err := registry.Register(context.Background(), services.RegisterKeyInput{
		ConsumerIdentifier: "robot-1",
		PublicKey:          pubText,
	})
	require.NoError(t, err)

	otherPub, _ := generateKeyText(t, tr)
	_, err = registry.Register(context.Background(), services.RegisterKeyInput{
		ConsumerIdentifier: "robot-1",
		PublicKey:          otherPub,
	})
	var ce *domain.ConflictError
	require.ErrorAs(t, err, &ce)
}

func TestKeyRegistry_Register_ReusesIdentifierAfterDeactivation(t *testing.T) {
	registry, tr := newTestRegistry(t)
	pubText, _ := generateKeyText(t, tr)

	key, err := registry.Register(context.Background(), services.RegisterKeyInput{
		ConsumerIdentifier: "robot-1",
		PublicKey:          pubText,
	})
	require.NoError(t, err)

	found, err := registry.Deactivate(context.Background(), key.ID)
	require.NoError(t, err)
	assert.True(t, found)

	// Second deactivation is a no-op, not an error.
	found, err = registry.Deactivate(context.Background(), key.ID)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = registry.Register(context.Background(), services.RegisterKeyInput{
		ConsumerIdentifier: "robot-1",
		PublicKey:          pubText,
	})
	require.NoError(t, err)
}

func TestKeyRegistry_FindValid_ExpiredKey(t *testing.T) {
	registry, tr := newTestRegistry(t)
	pubText, _ := generateKeyText(t, tr)

	past := time.Now().Add(-time.Second)
	_, err := registry.Register(context.Background(), services.RegisterKeyInput{
		ConsumerIdentifier: "robot-2",
		PublicKey:          pubText,
		ExpiresAt:          &past,
	})
	require.NoError(t, err)

	// Active but expired: invisible to the authorization gate.
	_, err = registry.FindValid(context.Background(), "robot-2")
	require.ErrorIs(t, err, domain.ErrNotFound)

	has, err := registry.HasValidKey(context.Background(), "robot-2")
	require.NoError(t, err)
	assert.False(t, has)

	// Still listed among active keys.
	active, err := registry.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 1)

	valid, err := registry.ListValid(context.Background())
	require.NoError(t, err)
	assert.Empty(t, valid)
}

func TestKeyRegistry_Update(t *testing.T) {
	registry, tr := newTestRegistry(t)
	pubText, _ := generateKeyText(t, tr)

	key, err := registry.Register(context.Background(), services.RegisterKeyInput{
		ConsumerName:       "Billing Robot",
		ConsumerIdentifier: "robot-1",
		PublicKey:          pubText,
	})
	require.NoError(t, err)

	newPub, _ := generateKeyText(t, tr)
	updated, err := registry.Update(context.Background(), key.ID, services.UpdateKeyInput{
		ConsumerName: "Billing Robot v2",
		PublicKey:    newPub,
	})
	require.NoError(t, err)
	assert.Equal(t, "Billing Robot v2", updated.ConsumerName)
	assert.Equal(t, newPub, updated.PublicKey)
	// Identifier is immutable through updates.
	assert.Equal(t, "robot-1", updated.ConsumerIdentifier)

	_, err = registry.Update(context.Background(), key.ID, services.UpdateKeyInput{
		PublicKey: "garbage",
	})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = registry.Update(context.Background(), uuid.New(), services.UpdateKeyInput{
		PublicKey: newPub,
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestKeyRegistry_DeactivateByIdentifier(t *testing.T) {
	registry, tr := newTestRegistry(t)
	pubText, _ := generateKeyText(t, tr)

	_, err := registry.Register(context.Background(), services.RegisterKeyInput{
		ConsumerIdentifier: "robot-1",
		PublicKey:          pubText,
	})
	require.NoError(t, err)

	found, err := registry.DeactivateByIdentifier(context.Background(), "robot-1")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = registry.DeactivateByIdentifier(context.Background(), "robot-1")
	require.NoError(t, err)
	assert.False(t, found)
}
