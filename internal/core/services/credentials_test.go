package services_test

import (
	"context"
	"strings"
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

type testEnv struct {
	creds    *services.CredentialService
	registry *services.KeyRegistry
	transfer *crypto.Transfer
	credRepo domain.CredentialRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	vault, err := crypto.NewVault(testVaultKey(t))
	require.NoError(t, err)

	tr := crypto.NewTransfer()
	credRepo := memory.NewCredentialRepo()
	registry := services.NewKeyRegistry(memory.NewConsumerKeyRepo(), tr, testLogger())
	creds := services.NewCredentialService(credRepo, registry, vault, crypto.NewHasher(), tr, testLogger())

	return &testEnv{creds: creds, registry: registry, transfer: tr, credRepo: credRepo}
}

func (e *testEnv) registerConsumer(t *testing.T, identifier string) string {
	t.Helper()
	pubText, privText := generateKeyText(t, e.transfer)
	_, err := e.registry.Register(context.Background(), services.RegisterKeyInput{
		ConsumerName:       identifier,
		ConsumerIdentifier: identifier,
		PublicKey:          pubText,
	})
	require.NoError(t, err)
	return privText
}

func (e *testEnv) createCredential(t *testing.T, in services.CredentialInput) *domain.Credential {
	t.Helper()
	cred, err := e.creds.Create(context.Background(), in)
	require.NoError(t, err)
	return cred
}

func TestCredentialService_Create_DerivesBothForms(t *testing.T) {
	env := newTestEnv(t)

	cred := env.createCredential(t, services.CredentialInput{
		MallName:  "Shopping Center Norte",
		PortalURL: "https://extranet.example.com",
		Username:  "lojista01",
		Password:  "Secr3t!",
	})

	assert.NotEmpty(t, cred.PasswordHash)
	assert.NotEmpty(t, cred.PasswordSealed)
	assert.NotEqual(t, "Secr3t!", cred.PasswordHash)
	assert.NotEqual(t, "Secr3t!", cred.PasswordSealed)
	assert.True(t, crypto.NewHasher().LooksHashed(cred.PasswordHash))
}

func TestCredentialService_Create_RejectsBlankPassword(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.creds.Create(context.Background(), services.CredentialInput{
		MallName: "Mall", PortalURL: "https://x", Username: "u", Password: "   ",
	})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestCredentialService_VerifyPassword(t *testing.T) {
	env := newTestEnv(t)
	cred := env.createCredential(t, services.CredentialInput{
		MallName: "Mall", PortalURL: "https://x", Username: "u", Password: "Secr3t!",
	})

	ok, err := env.creds.VerifyPassword(context.Background(), cred.ID, "Secr3t!")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.creds.VerifyPassword(context.Background(), cred.ID, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	// Missing records verify as false, not as an error.
	ok, err = env.creds.VerifyPassword(context.Background(), uuid.New(), "Secr3t!")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCredentialService_VerifyPassword_DeletedCredential(t *testing.T) {
	env := newTestEnv(t)
	cred := env.createCredential(t, services.CredentialInput{
		MallName: "Mall", PortalURL: "https://x", Username: "u", Password: "Secr3t!",
	})

	found, err := env.creds.Delete(context.Background(), cred.ID)
	require.NoError(t, err)
	assert.True(t, found)

	ok, err := env.creds.VerifyPassword(context.Background(), cred.ID, "Secr3t!")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCredentialService_Update_PasswordChange(t *testing.T) {
	env := newTestEnv(t)
	cred := env.createCredential(t, services.CredentialInput{
		MallName: "Mall", PortalURL: "https://x", Username: "u", Password: "old-password",
	})

	updated, err := env.creds.Update(context.Background(), cred.ID, services.CredentialInput{
		MallName: "Mall", PortalURL: "https://x", Username: "u", Password: "new-password",
	})
	require.NoError(t, err)
	assert.NotEqual(t, cred.PasswordHash, updated.PasswordHash)
	assert.NotEqual(t, cred.PasswordSealed, updated.PasswordSealed)

	ok, err := env.creds.VerifyPassword(context.Background(), cred.ID, "new-password")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.creds.VerifyPassword(context.Background(), cred.ID, "old-password")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCredentialService_Update_UnchangedPasswordKeepsCrypto(t *testing.T) {
	env := newTestEnv(t)
	cred := env.createCredential(t, services.CredentialInput{
		MallName: "Mall", PortalURL: "https://x", Username: "u", Password: "Secr3t!",
	})

	// An update that echoes the stored digest must not re-derive anything.
	updated, err := env.creds.Update(context.Background(), cred.ID, services.CredentialInput{
		MallName: "Renamed Mall", PortalURL: "https://x", Username: "u",
		Password: cred.PasswordHash,
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed Mall", updated.MallName)
	assert.Equal(t, cred.PasswordHash, updated.PasswordHash)
	assert.Equal(t, cred.PasswordSealed, updated.PasswordSealed)
}

func TestCredentialService_EncryptForConsumer_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	privText := env.registerConsumer(t, "robot-1")
	cred := env.createCredential(t, services.CredentialInput{
		MallName:        "Shopping Center Norte",
		CNPJ:            "12.345.678/0001-90",
		PortalURL:       "https://extranet.example.com",
		Username:        "lojista01",
		Password:        "Secr3t!",
		InvoicePassword: "invoice-pass",
	})

	bundle, err := env.creds.EncryptForConsumer(context.Background(), cred.ID, "robot-1")
	require.NoError(t, err)
	assert.Equal(t, cred.ID, bundle.CredentialID)
	assert.Equal(t, "robot-1", bundle.ConsumerIdentifier)
	assert.Equal(t, "RSA", bundle.Algorithm)
	assert.NotEmpty(t, bundle.EncryptedPassword)
	assert.NotEmpty(t, bundle.EncryptedInvoicePassword)

	// Offline decryption with the consumer's private key recovers both
	// plaintexts.
	priv, err := env.transfer.DecodePrivateKey(privText)
	require.NoError(t, err)

	password, err := env.transfer.Decrypt(bundle.EncryptedPassword, priv)
	require.NoError(t, err)
	assert.Equal(t, "Secr3t!", password)

	invoice, err := env.transfer.Decrypt(bundle.EncryptedInvoicePassword, priv)
	require.NoError(t, err)
	assert.Equal(t, "invoice-pass", invoice)
}

func TestCredentialService_EncryptForConsumer_Unauthorized(t *testing.T) {
	env := newTestEnv(t)
	cred := env.createCredential(t, services.CredentialInput{
		MallName: "Mall", PortalURL: "https://x", Username: "u", Password: "Secr3t!",
	})

	_, err := env.creds.EncryptForConsumer(context.Background(), cred.ID, "nobody")
	var ue *domain.UnauthorizedError
	require.ErrorAs(t, err, &ue)
}

func TestCredentialService_EncryptForConsumer_DeactivatedKey(t *testing.T) {
	env := newTestEnv(t)
	env.registerConsumer(t, "robot-1")
	cred := env.createCredential(t, services.CredentialInput{
		MallName: "Mall", PortalURL: "https://x", Username: "u", Password: "Secr3t!",
	})

	_, err := env.creds.EncryptForConsumer(context.Background(), cred.ID, "robot-1")
	require.NoError(t, err)

	found, err := env.registry.DeactivateByIdentifier(context.Background(), "robot-1")
	require.NoError(t, err)
	require.True(t, found)

	_, err = env.creds.EncryptForConsumer(context.Background(), cred.ID, "robot-1")
	var ue *domain.UnauthorizedError
	require.ErrorAs(t, err, &ue)
}

func TestCredentialService_EncryptForConsumer_ExpiredKey(t *testing.T) {
	env := newTestEnv(t)
	pubText, _ := generateKeyText(t, env.transfer)
	past := time.Now().Add(-time.Second)
	_, err := env.registry.Register(context.Background(), services.RegisterKeyInput{
		ConsumerIdentifier: "robot-2",
		PublicKey:          pubText,
		ExpiresAt:          &past,
	})
	require.NoError(t, err)

	cred := env.createCredential(t, services.CredentialInput{
		MallName: "Mall", PortalURL: "https://x", Username: "u", Password: "Secr3t!",
	})

	_, err = env.creds.EncryptForConsumer(context.Background(), cred.ID, "robot-2")
	var ue *domain.UnauthorizedError
	require.ErrorAs(t, err, &ue)
}

func TestCredentialService_EncryptAllForConsumer(t *testing.T) {
	env := newTestEnv(t)
	privText := env.registerConsumer(t, "robot-1")

	env.createCredential(t, services.CredentialInput{
		MallName: "Mall A", PortalURL: "https://a", Username: "a", Password: "pass-a",
	})
	env.createCredential(t, services.CredentialInput{
		MallName: "Mall B", PortalURL: "https://b", Username: "b", Password: "pass-b",
	})
	deleted := env.createCredential(t, services.CredentialInput{
		MallName: "Mall C", PortalURL: "https://c", Username: "c", Password: "pass-c",
	})
	_, err := env.creds.Delete(context.Background(), deleted.ID)
	require.NoError(t, err)

	bundles, err := env.creds.EncryptAllForConsumer(context.Background(), "robot-1")
	require.NoError(t, err)
	require.Len(t, bundles, 2)

	priv, err := env.transfer.DecodePrivateKey(privText)
	require.NoError(t, err)

	recovered := map[string]string{}
	for _, b := range bundles {
		plaintext, err := env.transfer.Decrypt(b.EncryptedPassword, priv)
		require.NoError(t, err)
		recovered[b.MallName] = plaintext
	}
	assert.Equal(t, map[string]string{"Mall A": "pass-a", "Mall B": "pass-b"}, recovered)
}

func TestCredentialService_EncryptAllForConsumer_FailFastOnCorruptSeal(t *testing.T) {
	env := newTestEnv(t)
	env.registerConsumer(t, "robot-1")

	env.createCredential(t, services.CredentialInput{
		MallName: "Mall A", PortalURL: "https://a", Username: "a", Password: "pass-a",
	})
	broken := env.createCredential(t, services.CredentialInput{
		MallName: "Mall B", PortalURL: "https://b", Username: "b", Password: "pass-b",
	})

	// Corrupt one stored ciphertext; the bulk call must fail as a whole
	// rather than silently return the surviving entry.
	broken.PasswordSealed = "bm90LWEtY2lwaGVydGV4dA"
	require.NoError(t, env.credRepo.Update(context.Background(), broken))

	bundles, err := env.creds.EncryptAllForConsumer(context.Background(), "robot-1")
	var ce *domain.CryptoError
	require.ErrorAs(t, err, &ce)
	assert.Nil(t, bundles)
}

func TestCredentialService_EncryptAllForConsumer_FailFastOnInvoiceFailure(t *testing.T) {
	env := newTestEnv(t)
	env.registerConsumer(t, "robot-1")

	env.createCredential(t, services.CredentialInput{
		MallName: "Mall A", PortalURL: "https://a", Username: "a", Password: "pass-a",
	})
	env.createCredential(t, services.CredentialInput{
		MallName:        "Mall B",
		PortalURL:       "https://b",
		Username:        "b",
		Password:        "pass-b",
		InvoicePassword: strings.Repeat("x", 300), // beyond the RSA-2048 block limit
	})

	bundles, err := env.creds.EncryptAllForConsumer(context.Background(), "robot-1")
	var ce *domain.CryptoError
	require.ErrorAs(t, err, &ce)
	assert.Nil(t, bundles)
}

func TestCredentialService_EncryptPlaintextForConsumer(t *testing.T) {
	env := newTestEnv(t)
	privText := env.registerConsumer(t, "robot-1")

	ciphertext, err := env.creds.EncryptPlaintextForConsumer(context.Background(), "out-of-band", "robot-1")
	require.NoError(t, err)

	priv, err := env.transfer.DecodePrivateKey(privText)
	require.NoError(t, err)
	plaintext, err := env.transfer.Decrypt(ciphertext, priv)
	require.NoError(t, err)
	assert.Equal(t, "out-of-band", plaintext)

	_, err = env.creds.EncryptPlaintextForConsumer(context.Background(), "x", "nobody")
	var ue *domain.UnauthorizedError
	require.ErrorAs(t, err, &ue)

	_, err = env.creds.EncryptPlaintextForConsumer(context.Background(), " ", "robot-1")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
}

// sealedCredentialRepo fails the test if the stored secret is touched.
type sealedCredentialRepo struct {
	domain.CredentialRepository
	t *testing.T
}

func (r *sealedCredentialRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Credential, error) {
	r.t.Fatal("credential storage was read before authorization succeeded")
	return nil, nil
}

func (r *sealedCredentialRepo) ListActive(ctx context.Context) ([]domain.Credential, error) {
	r.t.Fatal("credential storage was read before authorization succeeded")
	return nil, nil
}

func TestCredentialService_UnauthorizedConsumerTriggersNoRecovery(t *testing.T) {
	env := newTestEnv(t)

	vault, err := crypto.NewVault(testVaultKey(t))
	require.NoError(t, err)

	guarded := services.NewCredentialService(
		&sealedCredentialRepo{CredentialRepository: env.credRepo, t: t},
		env.registry, vault, crypto.NewHasher(), env.transfer, testLogger(),
	)

	_, err = guarded.EncryptForConsumer(context.Background(), uuid.New(), "nobody")
	var ue *domain.UnauthorizedError
	require.ErrorAs(t, err, &ue)

	_, err = guarded.EncryptAllForConsumer(context.Background(), "nobody")
	require.ErrorAs(t, err, &ue)
}
