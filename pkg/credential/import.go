package credential

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	sserr "github.com/StricklySoft/stricklysoft-keycloak/pkg/errors"
)

// A modular-crypt bcrypt hash ends with a 22 character radix-64 salt
// followed by a 31 character digest: $2a$10$<salt><digest>.
const (
	bcryptSaltLen   = 22
	bcryptDigestLen = 31
)

// FromBcrypt converts a stored modular-crypt bcrypt hash into a [Hashed].
// The cost becomes the iteration count and the embedded salt the salt; the
// full hash string is kept as the value.
func FromBcrypt(hash string) (Hashed, error) {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return Hashed{}, sserr.Wrap(err, sserr.CodeValidationFormat,
			"credential: not a bcrypt hash").WithDetail(sserr.DetailField, "value")
	}
	end := len(hash) - bcryptDigestLen
	salt := hash[end-bcryptSaltLen : end]
	return NewHashed(Bcrypt, hash, cost, salt), nil
}

// FromArgon2id converts a PHC-format argon2id hash
// ("$argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>") into a [Hashed]. The
// t parameter becomes the iteration count; salt and hash stay base64.
func FromArgon2id(encoded string) (Hashed, error) {
	invalid := func(reason string) (Hashed, error) {
		return Hashed{}, sserr.Newf(sserr.CodeValidationFormat,
			"credential: invalid argon2id hash: %s", reason).
			WithDetail(sserr.DetailField, "value")
	}

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return invalid("expected 6 parts")
	}
	if parts[1] != "argon2id" {
		return invalid("not argon2id")
	}
	if parts[2] != "v=19" {
		return invalid("unsupported version")
	}

	var mem, iters uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &par); err != nil {
		return invalid("unparseable parameters")
	}
	if parts[4] == "" || parts[5] == "" {
		return invalid("empty salt or hash")
	}
	return NewHashed(Argon, parts[5], int(iters), parts[4]), nil
}

// FromMD5Hex converts a hex-encoded md5 digest into a [Hashed]. md5
// carries neither iterations nor salt.
func FromMD5Hex(digest string) (Hashed, error) {
	b, err := hex.DecodeString(digest)
	if err != nil || len(b) != 16 {
		return Hashed{}, sserr.New(sserr.CodeValidationFormat,
			"credential: md5 digest must be 32 hex characters").
			WithDetail(sserr.DetailField, "value")
	}
	return Hashed{Value: strings.ToLower(digest), Algorithm: MD5}, nil
}
