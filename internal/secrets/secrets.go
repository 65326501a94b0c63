// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API credentials from a directory of plain-text
// files: the filename is the key name, the trimmed contents are the value.
//
// Key files the CLI looks for: generative-api-key, embedding-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxSecretSize guards against a stray binary dropped into the secrets
// directory; real keys are a few hundred bytes at most.
const maxSecretSize = 16 * 1024

// Load reads every regular file in dir into a key/value map. A missing
// directory is not an error and yields an empty map; dotfiles, oversized
// files, and empty files are skipped. An unreadable file produces a warning
// on stderr but does not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		name := entry.Name()

		if info, err := entry.Info(); err == nil && info.Size() > maxSecretSize {
			fmt.Fprintf(os.Stderr, "warning: secret %s exceeds %d bytes, skipping\n", name, maxSecretSize)
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}
