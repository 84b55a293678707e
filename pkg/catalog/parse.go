package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

var (
	envelopePrefix = []byte("updateCenter.post(")
	envelopeSuffix = []byte(");")
)

// document is the part of the published JSON we read
type document struct {
	Plugins map[string]*Entry `json:"plugins"`
}

// Parse decodes a published catalog. The callback envelope is stripped when
// present; bare JSON is accepted as well.
func Parse(data []byte, log *logrus.Logger) (*Catalog, error) {
	payload := stripEnvelope(data)

	var doc document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogMalformed, err)
	}
	if doc.Plugins == nil {
		return nil, fmt.Errorf("%w: missing plugins object", ErrCatalogMalformed)
	}

	keys := make([]string, 0, len(doc.Plugins))
	for key := range doc.Plugins {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]*Entry, 0, len(keys))
	for _, key := range keys {
		entry := doc.Plugins[key]
		if entry == nil {
			return nil, fmt.Errorf("%w: plugin %s has no data", ErrCatalogMalformed, key)
		}
		// the key is authoritative
		entry.Name = key
		entries = append(entries, entry)
	}

	return New(entries, log), nil
}

func stripEnvelope(data []byte) []byte {
	payload := bytes.TrimSpace(data)
	if bytes.HasPrefix(payload, envelopePrefix) && bytes.HasSuffix(payload, envelopeSuffix) {
		payload = payload[len(envelopePrefix) : len(payload)-len(envelopeSuffix)]
	}
	return bytes.TrimSpace(payload)
}
