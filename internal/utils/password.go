package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/scrypt"
)

// scrypt parameters used for new records.  Existing records carry their
// own parameters and are verified with those.
const (
	ScryptN       = 32768
	ScryptR       = 8
	ScryptP       = 1
	scryptSaltLen = 16
	scryptKeyLen  = 64
)

// ErrMalformedRecord is returned by ParsePasswordRecord for anything that
// is not a well formed scrypt record.
var ErrMalformedRecord = errors.New("malformed password record")

// PasswordRecord is the parsed form of
// "scrypt:N:r:p$base64(salt)$base64(digest)".
type PasswordRecord struct {
	N, R, P int
	Salt    []byte
	Digest  []byte
}

func (rec PasswordRecord) String() string {
	return fmt.Sprintf("scrypt:%d:%d:%d$%s$%s", rec.N, rec.R, rec.P,
		base64.StdEncoding.EncodeToString(rec.Salt),
		base64.StdEncoding.EncodeToString(rec.Digest))
}

// HashPassword returns a scrypt record for plain using a fresh random salt.
func HashPassword(plain string) (string, error) {
	salt := make([]byte, scryptSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	dk, err := scrypt.Key([]byte(plain), salt, ScryptN, ScryptR, ScryptP, scryptKeyLen)
	if err != nil {
		return "", err
	}
	return PasswordRecord{N: ScryptN, R: ScryptR, P: ScryptP, Salt: salt, Digest: dk}.String(), nil
}

// ParsePasswordRecord splits a stored scrypt record into its parts.
func ParsePasswordRecord(record string) (PasswordRecord, error) {
	parts := strings.Split(record, "$")
	if len(parts) != 3 {
		return PasswordRecord{}, ErrMalformedRecord
	}
	head := strings.Split(parts[0], ":")
	if len(head) != 4 || head[0] != "scrypt" {
		return PasswordRecord{}, ErrMalformedRecord
	}
	var rec PasswordRecord
	var err error
	if rec.N, err = strconv.Atoi(head[1]); err != nil {
		return PasswordRecord{}, ErrMalformedRecord
	}
	if rec.R, err = strconv.Atoi(head[2]); err != nil {
		return PasswordRecord{}, ErrMalformedRecord
	}
	if rec.P, err = strconv.Atoi(head[3]); err != nil {
		return PasswordRecord{}, ErrMalformedRecord
	}
	// scrypt.Key rejects bad N itself, but r and p must be positive
	if rec.N <= 1 || rec.R <= 0 || rec.P <= 0 {
		return PasswordRecord{}, ErrMalformedRecord
	}
	if rec.Salt, err = base64.StdEncoding.DecodeString(parts[1]); err != nil || len(rec.Salt) == 0 {
		return PasswordRecord{}, ErrMalformedRecord
	}
	if rec.Digest, err = base64.StdEncoding.DecodeString(parts[2]); err != nil || len(rec.Digest) == 0 {
		return PasswordRecord{}, ErrMalformedRecord
	}
	return rec, nil
}

// CheckPassword compares plain against a stored record.  It returns an
// error only when the record cannot be used at all; a wrong password is
// (false, nil).
func CheckPassword(record, plain string) (bool, error) {
	if strings.HasPrefix(record, "$2") {
		err := bcrypt.CompareHashAndPassword([]byte(record), []byte(plain))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
	}
	rec, err := ParsePasswordRecord(record)
	if err != nil {
		return false, err
	}
	dk, err := scrypt.Key([]byte(plain), rec.Salt, rec.N, rec.R, rec.P, len(rec.Digest))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return subtle.ConstantTimeCompare(dk, rec.Digest) == 1, nil
}

// VerifyPassword reports whether plain matches record.  A record that
// cannot be parsed never verifies.
func VerifyPassword(record, plain string) bool {
	ok, err := CheckPassword(record, plain)
	return err == nil && ok
}

// DummyPasswordRecord is a valid scrypt record for a random password,
// built once.  Checking a password against it costs the same as a real
// check, so logins that fail before a record is found take as long as
// ones that fail on the password.
var DummyPasswordRecord = sync.OnceValue(func() string {
	plain := make([]byte, 16)
	_, _ = rand.Read(plain)
	rec, err := HashPassword(base64.StdEncoding.EncodeToString(plain))
	if err != nil {
		panic(fmt.Sprintf("dummy password record: %v", err))
	}
	return rec
})
