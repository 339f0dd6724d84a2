package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/botfarm/gofarm/pkg/secrets"
)

// Imports a .env file into the badger secrets store under the env/ prefix,
// where the controlplane's getenv fallback reads it.
func main() {
	var (
		inPath    = flag.String("in", ".env", "input .env file path")
		dbPath    = flag.String("secrets-dir", getenv("FARM_SECRETS_DIR", "data/secrets.badger"), "badger secrets db path")
		masterKey = flag.String("master-key", getenv(secrets.MasterKeyEnv, ""), "badger encryption key (32 bytes base64/hex)")
		prefix    = flag.String("prefix", "env/", "key prefix inside the store")
	)
	flag.Parse()

	if *masterKey == "" {
		fatal(fmt.Errorf("master key is required: set %s or pass -master-key", secrets.MasterKeyEnv))
	}
	keyBytes, err := secrets.ParseMasterKey(*masterKey)
	if err != nil {
		fatal(err)
	}

	kv, err := godotenv.Read(*inPath)
	if err != nil {
		fatal(err)
	}

	store, err := secrets.Open(secrets.OpenOptions{
		Path:          *dbPath,
		EncryptionKey: keyBytes,
	})
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	written := 0
	for k, v := range kv {
		if err := store.SetString((*prefix)+k, v); err != nil {
			fatal(err)
		}
		written++
	}

	fmt.Fprintf(os.Stderr, "imported %d entries into %s (prefix %s)\n", written, *dbPath, *prefix)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}
