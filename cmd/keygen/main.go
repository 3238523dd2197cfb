package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/statustracker/backend/internal/config"
	"github.com/statustracker/backend/pkg/utils/secrets"
)

// keygen mints a random secret key and optionally stores it in a .env file
// as TRACKER_FEATURES_SECRET_KEY. With -seal it instead encrypts a value for
// use as an "enc:" configuration entry.
func main() {
	envFile := flag.String("env", "", "write the key into this .env file")
	size := flag.Int("bytes", 32, "key size in random bytes")
	seal := flag.String("seal", "", "encrypt this value with the secret key instead of minting a key")
	secretKey := flag.String("key", os.Getenv(envName("features.secret_key")), "secret key used by -seal")
	flag.Parse()

	if *seal != "" {
		sealed, err := secrets.Seal(*seal, *secretKey)
		if err != nil {
			log.Fatalf("Failed to seal value: %v", err)
		}
		fmt.Println(sealed)
		return
	}

	if *size < 16 {
		log.Fatalf("key size must be at least 16 bytes, got %d", *size)
	}

	buf := make([]byte, *size)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("Failed to read random bytes: %v", err)
	}
	secret := hex.EncodeToString(buf)

	if *envFile == "" {
		fmt.Println(secret)
		return
	}

	env := map[string]string{}
	if existing, err := godotenv.Read(*envFile); err == nil {
		env = existing
	} else if !os.IsNotExist(err) {
		log.Fatalf("Failed to read %s: %v", *envFile, err)
	}

	key := envName("features.secret_key")
	env[key] = secret
	if err := godotenv.Write(env, *envFile); err != nil {
		log.Fatalf("Failed to write %s: %v", *envFile, err)
	}
	fmt.Printf("✓ %s written to %s\n", key, *envFile)
}

func envName(key string) string {
	return config.EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
