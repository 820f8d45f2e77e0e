package application

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrInvalidPasswordHash is returned when a stored hash cannot be decoded.
	ErrInvalidPasswordHash = errors.New("invalid password hash format")
	// ErrIncompatiblePasswordVersion is returned for hashes from another argon2 version.
	ErrIncompatiblePasswordVersion = errors.New("incompatible password hash version")
)

// MinPasswordLength is the shortest password accepted for new accounts.
const MinPasswordLength = 8

// PasswordParams tunes the argon2id key derivation.
type PasswordParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultPasswordParams is used for every hash the service creates.
var DefaultPasswordParams = PasswordParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// PasswordHasher turns a plaintext password into its stored form.
type PasswordHasher func(password string) (string, error)

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// HashPassword encodes password with DefaultPasswordParams.
func HashPassword(password string) (string, error) {
	return HashPasswordWith(password, DefaultPasswordParams)
}

// HashPasswordWith encodes password as $argon2id$v=19$m=..,t=..,p=..$salt$key.
func HashPasswordWith(password string, params PasswordParams) (string, error) {
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, params.Memory, params.Iterations, params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword returns nil when password matches hashedPassword and
// ErrInvalidCredentials when it does not.
func VerifyPassword(hashedPassword, password string) error {
	params, salt, key, err := decodePasswordHash(hashedPassword)
	if err != nil {
		return err
	}
	candidate := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	if subtle.ConstantTimeCompare(key, candidate) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

func decodePasswordHash(encoded string) (PasswordParams, []byte, []byte, error) {
	var params PasswordParams
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return params, nil, nil, ErrInvalidPasswordHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params, nil, nil, ErrInvalidPasswordHash
	}
	if version != argon2.Version {
		return params, nil, nil, ErrIncompatiblePasswordVersion
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return params, nil, nil, ErrInvalidPasswordHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, ErrInvalidPasswordHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return params, nil, nil, ErrInvalidPasswordHash
	}
	params.SaltLength = uint32(len(salt))
	params.KeyLength = uint32(len(key))
	return params, salt, key, nil
}
