package apitest

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithmID    = "argon2id"
	minPassBytes   = 10
	saltLength     = 16
	keyLength      = 32
	hashMemoryKB   = 8 * 1024
	hashTime       = 1
	hashThreads    = 1
	phcSegmentSize = 6
)

var (
	errPasswordTooShort = fmt.Errorf("password must be at least %d bytes", minPassBytes)
	errInvalidHash      = errors.New("invalid password hash")
)

// hashPassword encodes password as a PHC string:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The cost is the Argon2id floor; stored viewers only live as long as the
// stand-in process.
func hashPassword(password string) (string, error) {
	if len(password) < minPassBytes {
		return "", errPasswordTooShort
	}

	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, hashTime, hashMemoryKB, hashThreads, keyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		hashMemoryKB,
		hashTime,
		hashThreads,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// checkPassword reports whether password matches the encoded hash.
func checkPassword(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != phcSegmentSize || parts[0] != "" || parts[1] != algorithmID {
		return false, errInvalidHash
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return false, errInvalidHash
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, errInvalidHash
	}
	if memory == 0 || time == 0 || threads == 0 {
		return false, errInvalidHash
	}

	salt, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < saltLength {
		return false, errInvalidHash
	}
	want, err := base64.StdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false, errInvalidHash
	}

	got := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
