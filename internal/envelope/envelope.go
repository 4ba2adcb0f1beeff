// Package envelope encodes and decodes the vault's on-disk container:
// magic bytes, a JSON header (base64-wrapped in the current format),
// and an encrypted payload. A legacy reader path without the magic is
// also accepted, per format v1's compatibility requirement.
package envelope

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/tvault/tvault/internal/vaulterr"
)

// Magic identifies the v1 "TVLT" container.
var Magic = [4]byte{'T', 'V', 'L', 'T'}

// CurrentVersion is the only version this codec writes.
const CurrentVersion = 1

// Header is the recognized shape of header_json. Unrecognized keys found
// on read are kept in Extra and re-emitted on write so a round-trip
// through this implementation never drops a future field.
type Header struct {
	Version   int     `json:"version"`
	KDF       string  `json:"kdf"`
	Salt      string  `json:"salt"` // hex
	Cipher    string  `json:"cipher"`
	PanicHash *string `json:"panic_hash"`

	Extra map[string]json.RawMessage `json:"-"`
}

// MarshalJSON merges the known fields with any preserved unknown ones.
func (h Header) MarshalJSON() ([]byte, error) {
	fields := map[string]json.RawMessage{}
	for k, v := range h.Extra {
		fields[k] = v
	}

	put := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fields[key] = b
		return nil
	}
	if err := put("version", h.Version); err != nil {
		return nil, err
	}
	if err := put("kdf", h.KDF); err != nil {
		return nil, err
	}
	if err := put("salt", h.Salt); err != nil {
		return nil, err
	}
	if err := put("cipher", h.Cipher); err != nil {
		return nil, err
	}
	if err := put("panic_hash", h.PanicHash); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

// UnmarshalJSON decodes known fields and stashes everything else in Extra.
func (h *Header) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	if raw, ok := fields["version"]; ok {
		if err := json.Unmarshal(raw, &h.Version); err != nil {
			return err
		}
		delete(fields, "version")
	}
	if raw, ok := fields["kdf"]; ok {
		if err := json.Unmarshal(raw, &h.KDF); err != nil {
			return err
		}
		delete(fields, "kdf")
	}
	if raw, ok := fields["salt"]; ok {
		if err := json.Unmarshal(raw, &h.Salt); err != nil {
			return err
		}
		delete(fields, "salt")
	}
	if raw, ok := fields["cipher"]; ok {
		if err := json.Unmarshal(raw, &h.Cipher); err != nil {
			return err
		}
		delete(fields, "cipher")
	}
	if raw, ok := fields["panic_hash"]; ok {
		if err := json.Unmarshal(raw, &h.PanicHash); err != nil {
			return err
		}
		delete(fields, "panic_hash")
	}

	h.Extra = fields
	return nil
}

// Encode writes the v1 "TVLT" container: magic, big-endian header length,
// base64(header_json), then the raw ciphertext blob.
func Encode(header Header, ciphertext []byte) ([]byte, error) {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("envelope: failed to encode header: %w", err)
	}
	headerB64 := []byte(base64.StdEncoding.EncodeToString(headerJSON))

	out := make([]byte, 0, 4+4+len(headerB64)+len(ciphertext))
	out = append(out, Magic[:]...)

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(headerB64)))
	out = append(out, lenBuf[:]...)

	out = append(out, headerB64...)
	out = append(out, ciphertext...)
	return out, nil
}

// Decode parses either the v1 "TVLT" form or the legacy (no-magic, raw
// JSON, unencoded) form and returns the header and the raw ciphertext blob.
func Decode(data []byte) (Header, []byte, error) {
	if len(data) >= 4 && string(data[:4]) == string(Magic[:]) {
		return decodeV1(data)
	}
	return decodeLegacy(data)
}

func decodeV1(data []byte) (Header, []byte, error) {
	if len(data) < 8 {
		return Header{}, nil, vaulterr.New(vaulterr.InvalidFormat, "decode", "", "container shorter than header")
	}
	headerLen := binary.BigEndian.Uint32(data[4:8])
	end := 8 + int(headerLen)
	if end < 8 || end > len(data) {
		return Header{}, nil, vaulterr.New(vaulterr.InvalidFormat, "decode", "", "header length out of range")
	}

	headerJSON, err := base64.StdEncoding.DecodeString(string(data[8:end]))
	if err != nil {
		return Header{}, nil, vaulterr.Wrap(vaulterr.InvalidFormat, "decode", "", err)
	}

	header, err := parseHeader(headerJSON)
	if err != nil {
		return Header{}, nil, err
	}
	return header, data[end:], nil
}

func decodeLegacy(data []byte) (Header, []byte, error) {
	if len(data) < 4 {
		return Header{}, nil, vaulterr.New(vaulterr.InvalidFormat, "decode", "", "container shorter than legacy header")
	}
	headerLen := binary.BigEndian.Uint32(data[0:4])
	end := 4 + int(headerLen)
	if end < 4 || end > len(data) {
		return Header{}, nil, vaulterr.New(vaulterr.InvalidFormat, "decode", "", "legacy header length out of range")
	}

	header, err := parseHeader(data[4:end])
	if err != nil {
		return Header{}, nil, err
	}
	return header, data[end:], nil
}

func parseHeader(headerJSON []byte) (Header, error) {
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return Header{}, vaulterr.Wrap(vaulterr.InvalidFormat, "decode", "", err)
	}
	if header.Version != CurrentVersion {
		return Header{}, vaulterr.New(vaulterr.InvalidFormat, "decode", "", fmt.Sprintf("unsupported version %d", header.Version))
	}
	if header.Salt == "" {
		return Header{}, vaulterr.New(vaulterr.InvalidFormat, "decode", "", "missing salt")
	}
	return header, nil
}
