// Package container implements the signed-container trailer format: a
// versioned trailer appended to the document with a fixed-size hex placeholder
// for the detached signature envelope. The digest covers every byte except the
// placeholder, so the envelope can be written afterward without invalidating
// the signature. Layout (v1, all offsets decimal, fixed width):
//
//	<document bytes>
//	\n%%MEDSIGN:v1:<10-digit placeholder start>:<8-digit placeholder length>:<hex placeholder>%%\n
//
// The placeholder holds the DER envelope hex-encoded and zero-padded to its
// reserved length; the DER length prefix bounds the envelope on extraction.
package container

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"medsign/internal/domain"
)

const (
	marker     = "\n%%MEDSIGN:v1:"
	endMarker  = "%%\n"
	startWidth = 10
	lenWidth   = 8

	// DefaultCapacity is the reserved envelope size in DER bytes, sized for a
	// one-signer CMS envelope carrying a three-certificate chain.
	DefaultCapacity = 8192
)

var errMalformedTrailer = errors.New("malformed signature trailer")

// Reserve appends a signature trailer with an empty placeholder sized for
// capacity DER bytes and returns the prepared bytes plus the byte ranges the
// digest must cover.
func Reserve(doc []byte, capacity int) ([]byte, domain.ByteRange, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	hexLen := 2 * capacity
	headerLen := len(marker) + startWidth + 1 + lenWidth + 1
	placeholderStart := len(doc) + headerLen

	buf := bytes.NewBuffer(make([]byte, 0, placeholderStart+hexLen+len(endMarker)))
	buf.Write(doc)
	buf.WriteString(marker)
	fmt.Fprintf(buf, "%0*d:%0*d:", startWidth, placeholderStart, lenWidth, hexLen)
	buf.Write(bytes.Repeat([]byte{'0'}, hexLen))
	buf.WriteString(endMarker)

	br := domain.ByteRange{
		Start1: 0,
		Len1:   int64(placeholderStart),
		Start2: int64(placeholderStart + hexLen),
		Len2:   int64(len(endMarker)),
	}
	return buf.Bytes(), br, nil
}

// Digest hashes exactly the two byte ranges flanking the placeholder. The
// result is a pure function of the covered bytes.
func Digest(prepared []byte, br domain.ByteRange) ([]byte, error) {
	if err := checkRange(prepared, br); err != nil {
		return nil, err
	}
	h := sha256.New()
	h.Write(prepared[br.Start1 : br.Start1+br.Len1])
	h.Write(prepared[br.Start2 : br.Start2+br.Len2])
	return h.Sum(nil), nil
}

// Embed writes the DER envelope into the reserved placeholder, hex-encoded and
// zero-padded to the exact reserved size. Every byte outside the placeholder
// is returned unchanged. Returns ErrPlaceholderTooSmall when the envelope does
// not fit; nothing is written in that case.
func Embed(prepared []byte, br domain.ByteRange, envelope []byte) ([]byte, error) {
	if err := checkRange(prepared, br); err != nil {
		return nil, err
	}
	start := br.PlaceholderStart()
	end := br.PlaceholderEnd()
	room := int(end - start)
	if hex.EncodedLen(len(envelope)) > room {
		return nil, fmt.Errorf("%w: envelope %d bytes, reserved %d", domain.ErrPlaceholderTooSmall, len(envelope), room/2)
	}

	signed := append([]byte(nil), prepared...)
	hex.Encode(signed[start:], envelope)
	return signed, nil
}

// Extract parses the trailer of a signed container and returns the byte ranges
// and the embedded DER envelope. ErrNoSignature is returned when no trailer is
// present or the placeholder was never filled.
func Extract(signed []byte) (domain.ByteRange, []byte, error) {
	idx := bytes.LastIndex(signed, []byte(marker))
	if idx < 0 {
		return domain.ByteRange{}, nil, domain.ErrNoSignature
	}
	fieldsAt := idx + len(marker)
	headerEnd := fieldsAt + startWidth + 1 + lenWidth + 1
	if headerEnd > len(signed) || signed[fieldsAt+startWidth] != ':' || signed[headerEnd-1] != ':' {
		return domain.ByteRange{}, nil, errMalformedTrailer
	}
	placeholderStart, err := strconv.Atoi(string(signed[fieldsAt : fieldsAt+startWidth]))
	if err != nil || placeholderStart != headerEnd {
		return domain.ByteRange{}, nil, errMalformedTrailer
	}
	hexLen, err := strconv.Atoi(string(signed[fieldsAt+startWidth+1 : fieldsAt+startWidth+1+lenWidth]))
	if err != nil || hexLen <= 0 || hexLen%2 != 0 {
		return domain.ByteRange{}, nil, errMalformedTrailer
	}
	placeholderEnd := placeholderStart + hexLen
	if placeholderEnd+len(endMarker) != len(signed) {
		return domain.ByteRange{}, nil, errMalformedTrailer
	}
	if !bytes.Equal(signed[placeholderEnd:], []byte(endMarker)) {
		return domain.ByteRange{}, nil, errMalformedTrailer
	}

	br := domain.ByteRange{
		Start1: 0,
		Len1:   int64(placeholderStart),
		Start2: int64(placeholderEnd),
		Len2:   int64(len(endMarker)),
	}

	raw := make([]byte, hexLen/2)
	if _, err := hex.Decode(raw, signed[placeholderStart:placeholderEnd]); err != nil {
		return domain.ByteRange{}, nil, errMalformedTrailer
	}
	if len(raw) == 0 || raw[0] == 0 {
		return br, nil, domain.ErrNoSignature
	}
	envLen, err := derLength(raw)
	if err != nil {
		return domain.ByteRange{}, nil, fmt.Errorf("embedded envelope: %w", err)
	}
	if envLen > len(raw) {
		return domain.ByteRange{}, nil, errMalformedTrailer
	}
	return br, raw[:envLen], nil
}

func checkRange(prepared []byte, br domain.ByteRange) error {
	switch {
	case br.Start1 != 0,
		br.Len1 < 0,
		br.Len2 < 0,
		br.Start2 < br.PlaceholderStart(),
		br.Total() != int64(len(prepared)):
		return errMalformedTrailer
	}
	return nil
}

// derLength returns the total length of the leading DER SEQUENCE in b.
func derLength(b []byte) (int, error) {
	if len(b) < 2 {
		return 0, errors.New("truncated DER")
	}
	if b[0] != 0x30 {
		return 0, errors.New("not a DER SEQUENCE")
	}
	l := int(b[1])
	if l < 0x80 {
		return 2 + l, nil
	}
	n := l & 0x7f
	if n == 0 || n > 4 || len(b) < 2+n {
		return 0, errors.New("invalid DER length")
	}
	v := 0
	for i := 0; i < n; i++ {
		v = v<<8 | int(b[2+i])
	}
	return 2 + n + v, nil
}
