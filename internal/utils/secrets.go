package utils

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"sort"

	"github.com/joho/godotenv"
)

// Keys written by the secret generator
const (
	EnvJWTSecret        = "JWT_SECRET"
	EnvJWTRefreshSecret = "JWT_REFRESH_SECRET"
)

// Excludes 0, O, 1, l and I
const passwordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

// GenerateSecret returns n random bytes hex encoded
func GenerateSecret(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("secret length must be positive, got %d", n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateJWTSecrets returns distinct access and refresh signing secrets
// keyed by their env variable names
func GenerateJWTSecrets(n int) (map[string]string, error) {
	secrets := make(map[string]string, 2)
	for _, key := range []string{EnvJWTSecret, EnvJWTRefreshSecret} {
		secret, err := GenerateSecret(n)
		if err != nil {
			return nil, fmt.Errorf("failed to generate %s: %w", key, err)
		}
		secrets[key] = secret
	}
	return secrets, nil
}

// GeneratePassword returns a random password drawn from an unambiguous alphabet
func GeneratePassword(length int) (string, error) {
	if length < 8 {
		return "", fmt.Errorf("password length must be at least 8, got %d", length)
	}
	max := big.NewInt(int64(len(passwordAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}

// MergeEnvFile writes values into the dotenv file at path, creating it when
// missing. Existing keys are kept unless overwrite is set. The file is
// rewritten sorted by key and comments are not preserved. It returns the
// keys that were written.
func MergeEnvFile(path string, values map[string]string, overwrite bool) ([]string, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		env = make(map[string]string)
	}

	var written []string
	for key, value := range values {
		if _, exists := env[key]; exists && !overwrite {
			continue
		}
		env[key] = value
		written = append(written, key)
	}
	sort.Strings(written)

	if len(written) == 0 {
		return nil, nil
	}
	if err := godotenv.Write(env, path); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return written, nil
}
