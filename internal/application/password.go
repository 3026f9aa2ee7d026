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
	// ErrInvalidPasswordHash is returned when an encoded hash cannot be parsed.
	ErrInvalidPasswordHash = errors.New("application: invalid password hash format")
	// ErrIncompatiblePasswordVersion is returned for hashes produced by another argon2 version.
	ErrIncompatiblePasswordVersion = errors.New("application: incompatible password hash version")
	// ErrInvalidCredentials is returned when a password does not match its hash.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
)

// Argon2idParams controls the cost of admin password hashing.
type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2idParams is used by the hash-password command.
var DefaultArgon2idParams = Argon2idParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// HashAdminPassword encodes password as $argon2id$v=19$m=...,t=...,p=...$salt$hash.
func HashAdminPassword(password string, params Argon2idParams) (string, error) {
	if password == "" {
		return "", errors.New("application: empty password")
	}
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, params.Memory, params.Iterations, params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// CheckAdminPassword compares password against an encoded argon2id hash in
// constant time.
func CheckAdminPassword(encoded, password string) error {
	params, salt, key, err := decodeArgon2id(encoded)
	if err != nil {
		return err
	}
	candidate := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	if subtle.ConstantTimeCompare(key, candidate) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

func decodeArgon2id(encoded string) (params Argon2idParams, salt, key []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		err = ErrInvalidPasswordHash
		return
	}

	var version int
	if _, scanErr := fmt.Sscanf(parts[2], "v=%d", &version); scanErr != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidPasswordHash, scanErr)
		return
	}
	if version != argon2.Version {
		err = ErrIncompatiblePasswordVersion
		return
	}

	if _, scanErr := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); scanErr != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidPasswordHash, scanErr)
		return
	}

	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		err = fmt.Errorf("%w: salt: %v", ErrInvalidPasswordHash, err)
		return
	}
	if key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		err = fmt.Errorf("%w: key: %v", ErrInvalidPasswordHash, err)
		return
	}
	params.SaltLength = uint32(len(salt))
	params.KeyLength = uint32(len(key))
	return
}
