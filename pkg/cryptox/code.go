package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for one-time codes. Codes are short-lived and verified
// at most a handful of times, so moderate parameters are enough.
const (
	codeMemory      = 32 * 1024
	codeIterations  = 2
	codeParallelism = 1
	codeSaltLength  = 16
	codeKeyLength   = 32
)

var ErrCodeMismatch = errors.New("cryptox: code mismatch")

// HashCode derives a PHC-format Argon2id hash of a one-time code so the code
// never sits in memory or a store in the clear.
func HashCode(code string) (string, error) {
	salt := make([]byte, codeSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(code), salt, codeIterations, codeMemory, codeParallelism, codeKeyLength)

	return fmt.Sprintf(
		"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		codeMemory,
		codeIterations,
		codeParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyCode re-derives the hash for code using the parameters and salt from
// the PHC string and compares in constant time. Returns ErrCodeMismatch when
// the code is wrong.
func VerifyCode(code, encoded string) error {
	parts := strings.Split(encoded, "$")

	// Expect ["", "argon2id", "v=19", "m=X,t=Y,p=Z", salt, hash]
	if len(parts) != 6 || parts[1] != "argon2id" {
		return errors.New("cryptox: invalid code hash format")
	}

	var memory, iterations uint32
	var parallelism uint8
	for _, param := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(param, "=", 2)
		if len(kv) != 2 {
			return errors.New("cryptox: invalid code hash parameters")
		}
		v, err := strconv.ParseUint(kv[1], 10, 32)
		if err != nil {
			return errors.New("cryptox: invalid code hash parameters")
		}
		switch kv[0] {
		case "m":
			memory = uint32(v)
		case "t":
			iterations = uint32(v)
		case "p":
			parallelism = uint8(v)
		}
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return errors.New("cryptox: invalid code hash salt")
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return errors.New("cryptox: invalid code hash digest")
	}

	got := argon2.IDKey([]byte(code), salt, iterations, memory, parallelism, uint32(len(want)))

	if subtle.ConstantTimeCompare(got, want) != 1 {
		return ErrCodeMismatch
	}
	return nil
}
