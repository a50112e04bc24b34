package main

import (
	"flag"
	"fmt"
	"os"

	"salesmart/internal/config"
)

// main encrypts a plaintext YAML config into the ".enc" artifact the etl and
// report binaries accept, so DSN credentials never sit on disk in the clear.
func main() {
	var (
		inPath     string
		outPath    string
		passphrase string
	)

	flag.StringVar(&inPath, "in", "configs/salesmart.yaml", "plaintext config YAML path")
	flag.StringVar(&outPath, "out", "", "output path (default <in>.enc)")
	flag.StringVar(&passphrase, "passphrase", "", "encryption passphrase (overrides env CONFIG_PASSPHRASE)")
	flag.Parse()

	if passphrase == "" {
		passphrase = os.Getenv("CONFIG_PASSPHRASE")
	}
	if passphrase == "" {
		fatalf("a passphrase is required (-passphrase or CONFIG_PASSPHRASE)")
	}
	if outPath == "" {
		outPath = inPath + ".enc"
	}

	plaintext, err := os.ReadFile(inPath)
	if err != nil {
		fatalf("read config: %v", err)
	}

	// Refuse to encrypt a config that would not load afterwards.
	if _, err := config.Parse(plaintext); err != nil {
		fatalf("invalid config: %v", err)
	}

	artifact, err := config.Encrypt(plaintext, passphrase)
	if err != nil {
		fatalf("encrypt: %v", err)
	}
	if err := os.WriteFile(outPath, artifact, 0o600); err != nil {
		fatalf("write artifact: %v", err)
	}
	fmt.Printf("wrote %s (%d bytes)\n", outPath, len(artifact))
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
