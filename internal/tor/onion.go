package tor

import (
	"encoding/base32"
	"errors"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Onion address constants.
const (
	// OnionV3Length is the base32 part of a v3 address, without ".onion".
	OnionV3Length = 56

	// OnionV3Version is the version byte embedded in v3 addresses.
	OnionV3Version = 0x03

	// OnionSuffix is the pseudo-TLD of all onion addresses.
	OnionSuffix = ".onion"
)

// Onion address validation errors.
var (
	// ErrInvalidOnionAddress is returned for addresses that fail format or
	// checksum validation.
	ErrInvalidOnionAddress = errors.New("invalid onion address")

	// ErrV2AddressDeprecated is returned for v2 addresses, which stopped
	// working on the Tor network in October 2021.
	ErrV2AddressDeprecated = errors.New("v2 onion addresses are deprecated and no longer functional")
)

// Base32 uses lowercase a-z and digits 2-7.
var (
	onionV3Pattern        = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)
	onionV2Pattern        = regexp.MustCompile(`^[a-z2-7]{16}\.onion$`)
	onionV3ContentPattern = regexp.MustCompile(`[a-z2-7]{56}\.onion`)
)

// checksumPrefix is the domain separator from the Tor rendezvous spec.
var checksumPrefix = []byte(".onion checksum")

// IsValidV3Address reports whether the address is a well-formed v3 onion
// address with a correct embedded checksum. Checksum validation catches
// typos and corrupted addresses that pattern matching alone would accept;
// it mirrors what Tor itself verifies before connecting.
func IsValidV3Address(address string) bool {
	address = strings.ToLower(address)

	if !onionV3Pattern.MatchString(address) {
		return false
	}

	onionPart := strings.TrimSuffix(address, OnionSuffix)
	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(onionPart))
	if err != nil {
		return false
	}

	// 32 bytes ed25519 pubkey, 2 bytes checksum, 1 byte version.
	if len(decoded) != 35 {
		return false
	}

	pubkey := decoded[:32]
	checksum := decoded[32:34]
	version := decoded[34]

	if version != OnionV3Version {
		return false
	}

	expected := computeV3Checksum(pubkey, version)
	return checksum[0] == expected[0] && checksum[1] == expected[1]
}

// computeV3Checksum returns the first two bytes of
// SHA3-256(".onion checksum" || pubkey || version).
func computeV3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)

	hash := sha3.Sum256(data)
	return hash[:2]
}

// IsV2Address reports whether the address matches the deprecated v2 format.
// Detection is for warning about dead content, not for validating use.
func IsV2Address(address string) bool {
	return onionV2Pattern.MatchString(strings.ToLower(address))
}

// ExtractV3Addresses finds all v3 onion addresses mentioned in the text,
// deduplicated. Useful for surfacing hidden services referenced by crawled
// pages.
func ExtractV3Addresses(content string) []string {
	content = strings.ToLower(content)

	seen := make(map[string]bool)
	var result []string
	for _, match := range onionV3ContentPattern.FindAllString(content, -1) {
		if !seen[match] {
			seen[match] = true
			result = append(result, match)
		}
	}
	return result
}

// ValidateSeedHost validates the host of a crawl seed that targets a hidden
// service. Clearnet hosts pass unchanged; onion hosts must be valid v3
// addresses.
func ValidateSeedHost(host string) error {
	host = strings.ToLower(host)
	if !strings.HasSuffix(host, OnionSuffix) {
		return nil
	}
	if IsV2Address(host) {
		return ErrV2AddressDeprecated
	}
	if !IsValidV3Address(host) {
		return ErrInvalidOnionAddress
	}
	return nil
}
