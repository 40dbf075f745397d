package savegame

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"
)

// Checksum returns the hex blake2b-256 digest of the snapshot encoded
// without its checksum field.
func Checksum(s *Snapshot) (string, error) {
	c := *s
	c.Checksum = ""
	data, err := json.Marshal(&c)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Seal stamps s with its checksum.
func Seal(s *Snapshot) error {
	sum, err := Checksum(s)
	if err != nil {
		return err
	}
	s.Checksum = sum
	return nil
}

// Verify checks a sealed snapshot. Snapshots without a checksum, such as
// those produced by migration, pass.
func Verify(s *Snapshot) error {
	if s.Checksum == "" {
		return nil
	}
	sum, err := Checksum(s)
	if err != nil {
		return malformed(s.Version, "checksum", "%v", err)
	}
	if sum != s.Checksum {
		return malformed(s.Version, "checksum_mismatch", "stored %s, computed %s", s.Checksum, sum)
	}
	return nil
}
