package auth

import "golang.org/x/crypto/bcrypt"

// PasswordCost is the bcrypt work factor. Hashing at this cost is deliberately
// expensive; callers must not run it on a latency-critical path.
const PasswordCost = 10

// HashPassword derives a salted one-way hash from the plaintext. Output
// differs call-to-call because the salt is embedded in the hash.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), PasswordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword re-derives using the embedded salt and compares in constant
// time. It reports only match/no-match; callers reject absent hashes first.
func VerifyPassword(plaintext, passwordHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(plaintext)) == nil
}
