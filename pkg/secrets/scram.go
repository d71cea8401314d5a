package secrets

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/pgstack/pgstack/pkg/stack"
)

// scramIterations matches the PostgreSQL default for password_encryption
// = scram-sha-256.
const scramIterations = 4096

// scramSaltLength matches the salt length PostgreSQL generates itself.
const scramSaltLength = 16

// ScramVerifier builds a PostgreSQL SCRAM-SHA-256 password verifier for
// the secret, in the form stored in pg_authid:
//
//	SCRAM-SHA-256$<iterations>:<salt>$<stored-key>:<server-key>
//
// Used by the scram-passwords mode so the initialization script can
// carry verifiers instead of plaintext secrets.
func ScramVerifier(secret string) (string, error) {
	return scramVerifier(secret, rand.Reader)
}

func scramVerifier(secret string, random io.Reader) (string, error) {
	salt := make([]byte, scramSaltLength)
	if _, err := io.ReadFull(random, salt); err != nil {
		return "", stack.NewEntropyError("random source unavailable for SCRAM salt", err)
	}

	salted := pbkdf2.Key([]byte(secret), salt, scramIterations, sha256.Size, sha256.New)

	clientMAC := hmac.New(sha256.New, salted)
	clientMAC.Write([]byte("Client Key"))
	storedKey := sha256.Sum256(clientMAC.Sum(nil))

	serverMAC := hmac.New(sha256.New, salted)
	serverMAC.Write([]byte("Server Key"))
	serverKey := serverMAC.Sum(nil)

	enc := base64.StdEncoding
	return fmt.Sprintf("SCRAM-SHA-256$%d:%s$%s:%s",
		scramIterations,
		enc.EncodeToString(salt),
		enc.EncodeToString(storedKey[:]),
		enc.EncodeToString(serverKey)), nil
}
