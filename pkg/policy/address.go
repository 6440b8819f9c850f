// Package policy derives and validates the natural lookup keys used on the
// ingestion path.
package policy

import (
	"bytes"
	"fmt"
	"strings"
)

// AddressKey is the canonical lookup key for one recipient address: the
// lowercased mailbox name (plus-suffix removed) and the lowercased domain.
type AddressKey struct {
	LocalPart string
	Domain    string
}

// String renders the key in "local@domain" form, as stored in the
// chaos-address lookup collection and the address cache.
func (k AddressKey) String() string {
	return k.LocalPart + "@" + k.Domain
}

// ParseAddressKey splits and canonicalizes a recipient address. An error is
// returned if the local part fails validation following the guidelines in
// RFC3696, or if the domain part fails RFC1035 validation.
func ParseAddressKey(address string) (AddressKey, error) {
	local, domain, err := parseEmailAddress(address)
	if err != nil {
		return AddressKey{}, err
	}
	if domain == "" {
		return AddressKey{}, fmt.Errorf("address %q has no domain part", address)
	}
	if !ValidDomainPart(domain) {
		return AddressKey{}, fmt.Errorf("domain part %q in %q failed validation", domain, address)
	}
	local, err = CanonicalLocalPart(local)
	if err != nil {
		return AddressKey{}, err
	}
	return AddressKey{LocalPart: local, Domain: strings.ToLower(domain)}, nil
}

// ValidDomainPart returns true if the domain part complies to RFC3696,
// RFC1035.
func ValidDomainPart(domain string) bool {
	if len(domain) == 0 {
		return false
	}
	if len(domain) > 255 {
		return false
	}
	if domain[len(domain)-1] != '.' {
		domain += "."
	}
	prev := '.'
	labelLen := 0
	hasAlphaNum := false
	for _, c := range domain {
		switch {
		case ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') ||
			('0' <= c && c <= '9') || c == '_':
			// Must contain some of these to be a valid label.
			hasAlphaNum = true
			labelLen++
		case c == '-':
			if prev == '.' {
				// Cannot lead with hyphen.
				return false
			}
		case c == '.':
			if prev == '.' || prev == '-' {
				// Cannot end with hyphen or double-dot.
				return false
			}
			if labelLen > 63 {
				return false
			}
			if !hasAlphaNum {
				return false
			}
			labelLen = 0
			hasAlphaNum = false
		default:
			// Unknown character.
			return false
		}
		prev = c
	}
	return true
}

// parseEmailAddress unescapes an email address, and splits the local part
// from the domain part. An error is returned if the local part fails
// validation following the guidelines in RFC3696. The domain part is
// optional and not validated.
func parseEmailAddress(address string) (local string, domain string, err error) {
	if address == "" {
		return "", "", fmt.Errorf("empty address")
	}
	if len(address) > 320 {
		return "", "", fmt.Errorf("address exceeds 320 characters")
	}
	if address[0] == '@' {
		return "", "", fmt.Errorf("address cannot start with @ symbol")
	}
	if address[0] == '.' {
		return "", "", fmt.Errorf("address cannot start with a period")
	}
	// Loop over address parsing out local part.
	buf := new(bytes.Buffer)
	prev := byte('.')
	inCharQuote := false
	inStringQuote := false
LOOP:
	for i := 0; i < len(address); i++ {
		c := address[i]
		switch {
		case ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z'):
			// Letters are OK.
			buf.WriteByte(c)
			inCharQuote = false
		case '0' <= c && c <= '9':
			// Numbers are OK.
			buf.WriteByte(c)
			inCharQuote = false
		case bytes.IndexByte([]byte("!#$%&'*+-/=?^_`{|}~"), c) >= 0:
			// These specials can be used unquoted.
			buf.WriteByte(c)
			inCharQuote = false
		case c == '.':
			// A single period is OK.
			if prev == '.' {
				return "", "", fmt.Errorf("sequence of periods is not permitted")
			}
			buf.WriteByte(c)
			inCharQuote = false
		case c == '\\':
			inCharQuote = true
		case c == '"':
			if inCharQuote {
				buf.WriteByte(c)
				inCharQuote = false
			} else if inStringQuote {
				inStringQuote = false
			} else {
				if i == 0 {
					inStringQuote = true
				} else {
					return "", "", fmt.Errorf("quoted string can only begin at start of address")
				}
			}
		case c == '@':
			if inCharQuote || inStringQuote {
				buf.WriteByte(c)
				inCharQuote = false
			} else {
				// End of local-part.
				if i > 128 {
					return "", "", fmt.Errorf("local part must not exceed 128 characters")
				}
				if prev == '.' {
					return "", "", fmt.Errorf("local part cannot end with a period")
				}
				domain = address[i+1:]
				break LOOP
			}
		case c > 127:
			return "", "", fmt.Errorf("characters outside of US-ASCII range not permitted")
		default:
			if inCharQuote || inStringQuote {
				buf.WriteByte(c)
				inCharQuote = false
			} else {
				return "", "", fmt.Errorf("character %q must be quoted", c)
			}
		}
		prev = c
	}
	if inCharQuote {
		return "", "", fmt.Errorf("cannot end address with unterminated quoted-pair")
	}
	if inStringQuote {
		return "", "", fmt.Errorf("cannot end address with unterminated string quote")
	}
	return buf.String(), domain, nil
}

// CanonicalLocalPart lowercases a local part and strips any plus-suffix
// ("user+ext" becomes "user"), rejecting characters that would have required
// quoting per RFC3696.
func CanonicalLocalPart(localPart string) (string, error) {
	if localPart == "" {
		return "", fmt.Errorf("local part cannot be empty")
	}
	result := strings.ToLower(localPart)
	invalid := make([]byte, 0, 10)
	for i := 0; i < len(result); i++ {
		c := result[i]
		switch {
		case 'a' <= c && c <= 'z':
		case '0' <= c && c <= '9':
		case bytes.IndexByte([]byte("!#$%&'*+-=/?^_`.{|}~"), c) >= 0:
		default:
			invalid = append(invalid, c)
		}
	}
	if len(invalid) > 0 {
		return "", fmt.Errorf("local part contained invalid character(s): %q", invalid)
	}
	if idx := strings.Index(result, "+"); idx > -1 {
		result = result[0:idx]
	}
	return result, nil
}
