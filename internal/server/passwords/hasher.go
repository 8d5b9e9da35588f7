// Package passwords turns plaintext passwords into one-way verifiers and
// checks candidates against them. The algorithm is chosen by configuration.
package passwords

import (
	"fmt"
	"strings"
)

// Hasher produces and checks password verifiers.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(verifier, candidate string) bool
}

const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// New returns the hasher named by algorithm. bcryptCost is ignored for
// argon2id; zero selects bcrypt.DefaultCost.
func New(algorithm string, bcryptCost int) (Hasher, error) {
	switch strings.ToLower(algorithm) {
	case "", AlgorithmBcrypt:
		return NewBcrypt(bcryptCost)
	case AlgorithmArgon2id:
		return NewArgon2id(), nil
	default:
		return nil, fmt.Errorf("unknown password hasher %q", algorithm)
	}
}
