// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/hermetic/guard"
	"github.com/bureau-foundation/hermetic/lib/codec"
)

const (
	// EnvPolicy is the environment variable carrying the encoded
	// policy payload into a child process.
	EnvPolicy = "HERMETIC_POLICY"

	// EnvPolicyFile names a staged copy of the payload on disk, kept
	// for diagnostics. The child reads EnvPolicy; the file is for
	// humans reconstructing what a process was launched with.
	EnvPolicyFile = "HERMETIC_POLICY_FILE"

	// payloadPrefix versions the wire format. A payload without it
	// was produced by something else entirely.
	payloadPrefix = "hermetic1."

	// digestSize is the keyed BLAKE3 trailer length.
	digestSize = 32

	// payloadVersion is the record version inside the envelope.
	payloadVersion = 1
)

// Errors returned by Decode.
var (
	ErrPayloadPrefix   = errors.New("bootstrap: payload missing version prefix")
	ErrPayloadTooShort = errors.New("bootstrap: payload too short for digest")
	ErrDigestMismatch  = errors.New("bootstrap: payload digest mismatch")
	ErrPayloadVersion  = errors.New("bootstrap: unsupported payload version")
)

// payloadDomainKey is the BLAKE3 keyed-hash domain for bootstrap
// payloads. The bytes are the ASCII domain name zero-padded to 32,
// readable in hex dumps without weakening the keyed mode.
var payloadDomainKey = [32]byte{
	'h', 'e', 'r', 'm', 'e', 't', 'i', 'c', '.', 'b', 'o', 'o', 't', 's', 't', 'r',
	'a', 'p', '.', 'p', 'a', 'y', 'l', 'o', 'a', 'd', '.', 'v', '1', 0, 0, 0,
}

// payloadRecord is the CBOR wire form of a Policy. Field numbers are
// protocol constants.
type payloadRecord struct {
	Version         int      `cbor:"1,keyasint"`
	BlockNetwork    bool     `cbor:"2,keyasint,omitempty"`
	BlockSubprocess bool     `cbor:"3,keyasint,omitempty"`
	FSReadonly      bool     `cbor:"4,keyasint,omitempty"`
	FSRoot          string   `cbor:"5,keyasint,omitempty"`
	BlockNativeLoad bool     `cbor:"6,keyasint,omitempty"`
	AllowLocalhost  bool     `cbor:"7,keyasint,omitempty"`
	AllowDomains    []string `cbor:"8,keyasint,omitempty"`
	Trace           bool     `cbor:"9,keyasint,omitempty"`
}

// zstdEncoder and zstdDecoder are reused across calls. Both are safe
// for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("bootstrap: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("bootstrap: zstd decoder initialization failed: " + err.Error())
	}
}

// payloadDigest computes the keyed BLAKE3 digest of the CBOR body.
func payloadDigest(body []byte) [32]byte {
	// NewKeyed requires exactly 32 bytes, which the fixed-size key
	// guarantees, so the error path is unreachable.
	hasher, err := blake3.NewKeyed(payloadDomainKey[:])
	if err != nil {
		panic("bootstrap: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(body)
	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// Encode serializes a policy into the environment payload form:
// deterministic CBOR followed by a keyed BLAKE3 digest trailer,
// zstd-compressed, base64url-encoded, and prefixed with the format
// version. The policy is normalized first so equal policies encode to
// identical payloads.
func Encode(p guard.Policy) (string, error) {
	p = p.Normalize()
	record := payloadRecord{
		Version:         payloadVersion,
		BlockNetwork:    p.BlockNetwork,
		BlockSubprocess: p.BlockSubprocess,
		FSReadonly:      p.FSReadonly,
		FSRoot:          p.FSRoot,
		BlockNativeLoad: p.BlockNativeLoad,
		AllowLocalhost:  p.AllowLocalhost,
		AllowDomains:    p.AllowDomains,
		Trace:           p.Trace,
	}
	body, err := codec.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("bootstrap: encoding policy payload: %w", err)
	}

	digest := payloadDigest(body)
	framed := make([]byte, 0, len(body)+digestSize)
	framed = append(framed, body...)
	framed = append(framed, digest[:]...)

	compressed := zstdEncoder.EncodeAll(framed, nil)
	return payloadPrefix + base64.RawURLEncoding.EncodeToString(compressed), nil
}

// Decode parses and verifies a payload produced by Encode and returns
// the policy it carries. Any tampering surfaces as ErrDigestMismatch
// or a decode failure, never as a silently altered policy.
func Decode(payload string) (guard.Policy, error) {
	var zero guard.Policy

	if !strings.HasPrefix(payload, payloadPrefix) {
		return zero, ErrPayloadPrefix
	}
	compressed, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(payload, payloadPrefix))
	if err != nil {
		return zero, fmt.Errorf("bootstrap: decoding payload base64: %w", err)
	}

	framed, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return zero, fmt.Errorf("bootstrap: decompressing payload: %w", err)
	}
	if len(framed) <= digestSize {
		return zero, ErrPayloadTooShort
	}

	splitPoint := len(framed) - digestSize
	body := framed[:splitPoint]
	var digest [32]byte
	copy(digest[:], framed[splitPoint:])
	if payloadDigest(body) != digest {
		return zero, ErrDigestMismatch
	}

	var record payloadRecord
	if err := codec.Unmarshal(body, &record); err != nil {
		return zero, fmt.Errorf("bootstrap: decoding policy payload: %w", err)
	}
	if record.Version != payloadVersion {
		return zero, fmt.Errorf("%w: got %d, want %d", ErrPayloadVersion, record.Version, payloadVersion)
	}

	p := guard.Policy{
		BlockNetwork:    record.BlockNetwork,
		BlockSubprocess: record.BlockSubprocess,
		FSReadonly:      record.FSReadonly,
		FSRoot:          record.FSRoot,
		BlockNativeLoad: record.BlockNativeLoad,
		AllowLocalhost:  record.AllowLocalhost,
		AllowDomains:    record.AllowDomains,
		Trace:           record.Trace,
	}
	return p.Normalize(), nil
}

// ConsumeEnv reads the policy payload from HERMETIC_POLICY and unsets
// both hermetic variables, making the handoff single-use. The boolean
// reports whether a payload was present.
func ConsumeEnv() (string, bool) {
	payload := os.Getenv(EnvPolicy)
	os.Unsetenv(EnvPolicy)
	os.Unsetenv(EnvPolicyFile)
	return payload, payload != ""
}
