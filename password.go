package main

import "golang.org/x/crypto/bcrypt"

// bcryptCost trades brute-force resistance against login latency
// (~100ms per comparison on current hardware).
const bcryptCost = 12

func hashPassword(p string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(p), bcryptCost)
	return string(b), err
}

// comparePassword reports whether p matches hash. Malformed hashes and empty
// inputs are indistinguishable from a plain mismatch.
func comparePassword(hash, p string) bool {
	if hash == "" || p == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(p)) == nil
}
