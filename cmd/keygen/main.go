package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ricbatera/credentials-fullstack/internal/core/crypto"
)

// Offline provisioning tool. Generates either a consumer RSA-2048 key pair
// (public half is registered with the API, private half stays with the
// consumer) or a fresh 256-bit vault key for the VAULT_KEY variable.
func main() {
	mode := flag.String("mode", "consumer", "what to generate: 'consumer' (RSA key pair) or 'vault' (256-bit hex key)")
	outPrefix := flag.String("out", "", "write keys to <out>.pub and <out>.key instead of stdout")
	flag.Parse()

	switch *mode {
	case "vault":
		generateVaultKey()
	case "consumer":
		generateConsumerPair(*outPrefix)
	default:
		log.Fatalf("❌ Unknown mode %q (want 'consumer' or 'vault')", *mode)
	}
}

func generateVaultKey() {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Fatalf("❌ CRITICAL: entropy source failed: %v", err)
	}
	fmt.Println("🔑 New vault key (set as VAULT_KEY):")
	fmt.Println(hex.EncodeToString(key))
}

func generateConsumerPair(outPrefix string) {
	transfer := crypto.NewTransfer()

	pub, priv, err := transfer.GenerateKeyPair()
	if err != nil {
		log.Fatalf("❌ CRITICAL: key generation failed: %v", err)
	}

	pubText, err := transfer.EncodePublicKey(pub)
	if err != nil {
		log.Fatalf("❌ CRITICAL: public key encoding failed: %v", err)
	}
	privText, err := transfer.EncodePrivateKey(priv)
	if err != nil {
		log.Fatalf("❌ CRITICAL: private key encoding failed: %v", err)
	}

	if outPrefix == "" {
		fmt.Println("🔑 Consumer RSA-2048 key pair generated.")
		fmt.Println()
		fmt.Println("--- PUBLIC KEY (register via POST /api/consumer-keys) ---")
		fmt.Println(pubText)
		fmt.Println()
		fmt.Println("--- PRIVATE KEY (keep with the consumer, never upload) ---")
		fmt.Println(privText)
		return
	}

	if err := os.WriteFile(outPrefix+".pub", []byte(pubText+"\n"), 0644); err != nil {
		log.Fatalf("❌ CRITICAL: could not write public key: %v", err)
	}
	if err := os.WriteFile(outPrefix+".key", []byte(privText+"\n"), 0600); err != nil {
		log.Fatalf("❌ CRITICAL: could not write private key: %v", err)
	}
	fmt.Printf("✅ Wrote %s.pub and %s.key\n", outPrefix, outPrefix)
}
