// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// MaxDocumentBytes bounds the size of a manifest or asset index document.
// Real asset indexes are a few megabytes; anything near this is not one.
const MaxDocumentBytes = 64 << 20

const (
	versionSchemaURL    = "https://lodestone.invalid/schema/version.json"
	assetIndexSchemaURL = "https://lodestone.invalid/schema/asset_index.json"
)

var (
	//go:embed schema/version.json
	versionSchemaSource string

	//go:embed schema/asset_index.json
	assetIndexSchemaSource string

	//nolint:gochecknoglobals // Compiled once; schemas are immutable.
	versionSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
		return compileSchema(versionSchemaURL, versionSchemaSource)
	})

	//nolint:gochecknoglobals // Compiled once; schemas are immutable.
	assetIndexSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
		return compileSchema(assetIndexSchemaURL, assetIndexSchemaSource)
	})

	// ErrInvalidDocument is wrapped by every DocumentError.
	ErrInvalidDocument = errors.New("invalid document")
)

// DocumentError reports a manifest or asset index that could not be read,
// failed schema validation, or could not be decoded.
type DocumentError struct {
	// Document is "version manifest" or "asset index".
	Document string
	Err      error
}

// Error implements the error interface.
func (e *DocumentError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Document, e.Err)
}

// Unwrap returns the underlying cause.
func (e *DocumentError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrInvalidDocument.
func (e *DocumentError) Is(target error) bool {
	return target == ErrInvalidDocument
}

// DecodeVersion reads, validates and decodes a version manifest.
func DecodeVersion(r io.Reader) (*VersionManifest, error) {
	var m VersionManifest
	if err := decode(r, "version manifest", versionSchema, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DecodeAssetIndex reads, validates and decodes an asset index.
func DecodeAssetIndex(r io.Reader) (*AssetIndex, error) {
	var idx AssetIndex
	if err := decode(r, "asset index", assetIndexSchema, &idx); err != nil {
		return nil, err
	}
	if idx.Objects == nil {
		idx.Objects = map[string]AssetObject{}
	}
	return &idx, nil
}

// MarshalIndent renders the index as the indented JSON document that is
// persisted under assets/indexes.
func (idx *AssetIndex) MarshalIndent() ([]byte, error) {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding asset index: %w", err)
	}
	return append(data, '\n'), nil
}

func decode(r io.Reader, document string, schema func() (*jsonschema.Schema, error), out any) error {
	data, err := io.ReadAll(io.LimitReader(r, MaxDocumentBytes+1))
	if err != nil {
		return &DocumentError{Document: document, Err: fmt.Errorf("reading: %w", err)}
	}
	if len(data) > MaxDocumentBytes {
		return &DocumentError{Document: document, Err: fmt.Errorf("document exceeds %d bytes", MaxDocumentBytes)}
	}

	compiled, err := schema()
	if err != nil {
		return fmt.Errorf("internal error: compiling %s schema: %w", document, err)
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return &DocumentError{Document: document, Err: fmt.Errorf("parsing JSON: %w", err)}
	}
	if err := compiled.Validate(generic); err != nil {
		return &DocumentError{Document: document, Err: err}
	}

	if err := json.NewDecoder(bytes.NewReader(data)).Decode(out); err != nil {
		return &DocumentError{Document: document, Err: fmt.Errorf("decoding: %w", err)}
	}
	return nil
}

func compileSchema(url, source string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(source)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}
