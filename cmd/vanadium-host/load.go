package main

import (
	"fmt"
	"os"

	"github.com/vanadium-project/vanadium-go/pagestore"
	"github.com/vanadium-project/vanadium-go/vapp"
	"github.com/vanadium-project/vanadium-go/wire"
)

// loadManifest reads and decodes a manifest file.
func loadManifest(path string) (*vapp.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	m, err := vapp.DecodeManifest(data)
	if err != nil {
		return nil, fmt.Errorf("decoding manifest %s: %w", path, err)
	}
	return m, nil
}

// loadPages reads a raw segment dump and splits it into wire.PageSize pages,
// zero-padding the final page so the result satisfies pagestore.New's
// page-count contract for [start, end).
func loadPages(path string, start, end uint64) ([][]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading segment file %s: %w", path, err)
	}

	want := pagestore.PageCount(start, end)
	pages := make([][]byte, want)
	for i := range pages {
		page := make([]byte, wire.PageSize)
		lo := i * wire.PageSize
		if lo < len(raw) {
			hi := lo + wire.PageSize
			if hi > len(raw) {
				hi = len(raw)
			}
			copy(page, raw[lo:hi])
		}
		pages[i] = page
	}
	return pages, nil
}
