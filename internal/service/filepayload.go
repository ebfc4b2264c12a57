package service

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// filePayload is a decoded file submission: the raw bytes plus the detected
// content type and checksum recorded alongside the stored blob.
type filePayload struct {
	Data      []byte
	MimeType  string
	SizeBytes int64
	Checksum  string
}

const dataURIPrefix = "data:"

// decodeFilePayload parses a base64 data URI of the form
// "data:<mime>;base64,<payload>". The declared mime marker must be present
// but the stored type is re-detected from the decoded bytes, so a mislabeled
// payload cannot smuggle a wrong content type into the metadata.
func decodeFilePayload(content string, maxBytes int64) (filePayload, error) {
	if !strings.HasPrefix(content, dataURIPrefix) {
		return filePayload{}, fmt.Errorf("%w: file content must be a data URI", ErrInvalidPayload)
	}

	rest := content[len(dataURIPrefix):]
	marker, encoded, found := strings.Cut(rest, ",")
	if !found {
		return filePayload{}, fmt.Errorf("%w: malformed data URI", ErrInvalidPayload)
	}

	declared, ok := strings.CutSuffix(marker, ";base64")
	if !ok || declared == "" {
		return filePayload{}, fmt.Errorf("%w: data URI must declare a base64-encoded media type", ErrInvalidPayload)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return filePayload{}, fmt.Errorf("%w: invalid base64 payload", ErrInvalidPayload)
	}

	if len(data) == 0 {
		return filePayload{}, fmt.Errorf("%w: empty file payload", ErrInvalidPayload)
	}

	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return filePayload{}, fmt.Errorf("%w: file payload exceeds %d bytes", ErrInvalidPayload, maxBytes)
	}

	checksum := sha256.Sum256(data)

	return filePayload{
		Data:      data,
		MimeType:  mimetype.Detect(data).String(),
		SizeBytes: int64(len(data)),
		Checksum:  hex.EncodeToString(checksum[:]),
	}, nil
}
