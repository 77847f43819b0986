package main

import (
	"fmt"
	"os"

	"github.com/netopsd/netopsd/internal/auth"
)

func main() {
	var key string
	var err error

	if len(os.Args) > 1 {
		// Hash a key the operator already has.
		key = os.Args[1]
	} else {
		key, err = auth.GenerateKey(32)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate key: %v\n", err)
			os.Exit(1)
		}
	}

	hash := auth.HashKey(key)

	fmt.Printf("API Key: %s\n", key)
	fmt.Printf("SHA-256 Hash: %s\n", hash)
	fmt.Println("\nAdd the hash to your config.yaml:")
	fmt.Printf("auth:\n")
	fmt.Printf("  require: true\n")
	fmt.Printf("  key_hashes:\n")
	fmt.Printf("    - \"%s\"\n", hash)
	fmt.Println("\nClients authenticate with the plaintext key:")
	fmt.Printf("  Authorization: Bearer %s\n", key)
}
