package device

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

const (
	idPrefix   = "dev_"
	idHexBytes = 6
	codeDigits = 6
)

var (
	idPattern   = regexp.MustCompile(`^dev_[0-9a-f]{12}$`)
	codePattern = regexp.MustCompile(`^[0-9]{6}$`)
	codeSpace   = big.NewInt(1_000_000)
)

// NormalizeID returns the canonical lowercase form of a device ID, or ""
// when s is not a device ID. Surrounding whitespace is ignored.
func NormalizeID(s string) string {
	id := strings.ToLower(strings.TrimSpace(s))
	if !idPattern.MatchString(id) {
		return ""
	}
	return id
}

// GenerateID returns a new random device ID.
func GenerateID() string {
	b := make([]byte, idHexBytes)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand.Read does not fail on supported platforms.
		panic(fmt.Sprintf("device: reading random bytes: %v", err))
	}
	return idPrefix + hex.EncodeToString(b)
}

// GenerateCode returns a random six digit pairing code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generating pairing code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

// NormalizeCode trims a pairing code and returns "" if it is not six digits.
func NormalizeCode(s string) string {
	code := strings.TrimSpace(s)
	if !codePattern.MatchString(code) {
		return ""
	}
	return code
}

// defaultName is used when a claim carries no name.
func defaultName(id string) string {
	return "Display " + id[len(id)-4:]
}
