package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
)

var (
	ErrPasswordPolicy = errors.New("password does not meet policy")
	ErrMalformedHash  = errors.New("malformed password hash")
)

type Argon2Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

// maxHashMemory caps the m= value (KiB) accepted from a stored hash.
const maxHashMemory = 4 * 64 * 1024

var DefaultArgon2Params = Argon2Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 2,
	KeyLen:  32,
	SaltLen: 16,
}

type PasswordPolicy struct {
	MinLength     int
	MaxLength     int
	RequireDigit  bool
	RequireLetter bool
}

// Validate reports the first rule the password breaks. Lengths count runes.
func (p PasswordPolicy) Validate(password string) error {
	if password == "" {
		return fmt.Errorf("%w: password is empty", ErrPasswordPolicy)
	}

	length := utf8.RuneCountInString(password)
	if length < p.MinLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrPasswordPolicy, p.MinLength)
	}
	if p.MaxLength > 0 && length > p.MaxLength {
		return fmt.Errorf("%w: must be at most %d characters", ErrPasswordPolicy, p.MaxLength)
	}

	var hasDigit, hasLetter bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLetter(r):
			hasLetter = true
		}
	}
	if p.RequireDigit && !hasDigit {
		return fmt.Errorf("%w: must contain a digit", ErrPasswordPolicy)
	}
	if p.RequireLetter && !hasLetter {
		return fmt.Errorf("%w: must contain a letter", ErrPasswordPolicy)
	}
	return nil
}

// PasswordHasher hashes with argon2id and validates against a policy.
type PasswordHasher struct {
	policy PasswordPolicy
	params Argon2Params
}

func NewPasswordHasher(policy PasswordPolicy, params Argon2Params) *PasswordHasher {
	return &PasswordHasher{policy: policy, params: params}
}

func (h *PasswordHasher) Validate(password string) error {
	return h.policy.Validate(password)
}

func (h *PasswordHasher) Hash(password string) ([]byte, error) {
	return HashPasswordWithParams(password, h.params)
}

// Compare never returns an error: a malformed stored hash is a mismatch.
func (h *PasswordHasher) Compare(password string, encodedHash []byte) bool {
	ok, err := VerifyPassword(password, encodedHash)
	return err == nil && ok
}

func HashPassword(password string) ([]byte, error) {
	return HashPasswordWithParams(password, DefaultArgon2Params)
}

func HashPasswordWithParams(password string, params Argon2Params) ([]byte, error) {
	salt := make([]byte, params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, params.KeyLen)

	encoded := base64.RawStdEncoding.EncodeToString(hash)
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)

	result := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, params.Memory, params.Time, params.Threads, encodedSalt, encoded)

	return []byte(result), nil
}

func VerifyPassword(password string, encodedHash []byte) (bool, error) {
	params, salt, hash, err := decodeHash(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, params.KeyLen)

	return subtle.ConstantTimeCompare(hash, computed) == 1, nil
}

func decodeHash(encodedHash []byte) (Argon2Params, []byte, []byte, error) {
	// "$argon2id$v=19$m=..,t=..,p=..$salt$hash" splits into six fields, the first empty
	parts := strings.Split(string(encodedHash), "$")
	if len(parts) != 6 || parts[0] != "" {
		return Argon2Params{}, nil, nil, ErrMalformedHash
	}
	parts = parts[1:]
	if parts[0] != "argon2id" {
		return Argon2Params{}, nil, nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[1], "v=%d", &version); err != nil || version != argon2.Version {
		return Argon2Params{}, nil, nil, ErrMalformedHash
	}

	var params Argon2Params
	if _, err := fmt.Sscanf(parts[2], "m=%d,t=%d,p=%d", &params.Memory, &params.Time, &params.Threads); err != nil {
		return Argon2Params{}, nil, nil, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return Argon2Params{}, nil, nil, fmt.Errorf("%w: decode salt: %v", ErrMalformedHash, err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Argon2Params{}, nil, nil, fmt.Errorf("%w: decode hash: %v", ErrMalformedHash, err)
	}
	if len(hash) == 0 || params.Time == 0 || params.Threads == 0 || params.Memory == 0 || params.Memory > maxHashMemory {
		return Argon2Params{}, nil, nil, ErrMalformedHash
	}

	params.KeyLen = uint32(len(hash))
	params.SaltLen = uint32(len(salt))
	return params, salt, hash, nil
}
