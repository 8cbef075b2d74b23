// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Dump is the document written by Export.
type Dump struct {
	ExportedAt time.Time `json:"exported_at"`
	Sessions   []Session `json:"sessions"`
}

// Export writes every session as zstd-compressed JSON and returns the number
// of sessions written.
func (j *Journal) Export(ctx context.Context, w io.Writer) (int, error) {
	sessions, err := j.Recent(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("read journal: %w", err)
	}
	if sessions == nil {
		sessions = []Session{}
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(zw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Dump{ExportedAt: j.now().UTC(), Sessions: sessions}); err != nil {
		_ = zw.Close()
		return 0, fmt.Errorf("encode journal: %w", err)
	}
	if err := zw.Close(); err != nil {
		return 0, err
	}
	return len(sessions), nil
}

// ReadDump decodes a document produced by Export.
func ReadDump(r io.Reader) (Dump, error) {
	var d Dump
	zr, err := zstd.NewReader(r)
	if err != nil {
		return d, err
	}
	defer zr.Close()
	if err := json.NewDecoder(zr).Decode(&d); err != nil {
		return d, fmt.Errorf("decode journal: %w", err)
	}
	return d, nil
}
