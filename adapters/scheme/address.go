package scheme

import (
	"encoding/base32"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const (
	// AddressLength is the size of a raw address in bytes
	AddressLength = 20

	addressCountry  = "NQ"
	addressAlphabet = "0123456789ABCDEFGHJKLMNPQRSTUVXY"
)

var addressEncoding = base32.NewEncoding(addressAlphabet).WithPadding(base32.NoPadding)

// DeriveAddress hashes data with Blake2b-256 and formats the first 20 bytes
// as a user friendly address
func DeriveAddress(data []byte) string {
	sum := blake2b.Sum256(data)
	return FormatAddress(sum[:AddressLength])
}

// FormatAddress renders a raw 20 byte address as "NQxx XXXX ..." with IBAN
// style check digits
func FormatAddress(raw []byte) string {
	body := addressEncoding.EncodeToString(raw)
	check := 98 - ibanCheck(body+addressCountry+"00")

	s := addressCountry + leftPad(strconv.Itoa(check), 2) + body

	var b strings.Builder
	for i := 0; i < len(s); i += 4 {
		if i > 0 {
			b.WriteByte(' ')
		}
		end := min(i+4, len(s))
		b.WriteString(s[i:end])
	}
	return b.String()
}

// ValidAddress reports whether s is a well formed address with correct check digits
func ValidAddress(s string) bool {
	s = strings.ToUpper(strings.ReplaceAll(s, " ", ""))
	if len(s) != 36 || !strings.HasPrefix(s, addressCountry) {
		return false
	}
	if _, err := addressEncoding.DecodeString(s[4:]); err != nil {
		return false
	}
	return ibanCheck(s[4:]+s[:4]) == 1
}

// ibanCheck computes the mod 97 remainder of the IBAN numeric form of s
func ibanCheck(s string) int {
	var num strings.Builder
	for _, c := range s {
		if c >= 'A' && c <= 'Z' {
			num.WriteString(strconv.Itoa(int(c-'A') + 10))
			continue
		}
		num.WriteRune(c)
	}

	rem := 0
	for _, d := range num.String() {
		rem = (rem*10 + int(d-'0')) % 97
	}
	return rem
}

func leftPad(s string, n int) string {
	for len(s) < n {
		s = "0" + s
	}
	return s
}
