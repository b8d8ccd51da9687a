package api

import (
	"encoding/json"
	"fmt"
)

// collectionKeys is the envelope fallback order. The fetch endpoint
// wraps records in "events"; older list endpoints use "objects" or
// "data". A bare JSON array is accepted last.
var collectionKeys = []string{"events", "objects", "data"}

// decodeCollection normalizes the server's envelope variants into the
// raw JSON array of items, so shape-sniffing stays here and never leaks
// into the fetcher or writer. It returns the array and the raw cursor
// field (nil when absent).
func decodeCollection(body []byte) (items json.RawMessage, cursor json.RawMessage, err error) {
	// Bare array shape.
	if len(body) > 0 && body[0] == '[' {
		return json.RawMessage(body), nil, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, nil, fmt.Errorf("response is neither an object nor an array: %w", err)
	}

	for _, key := range collectionKeys {
		if raw, ok := envelope[key]; ok {
			return raw, envelope["cursor"], nil
		}
	}

	return nil, nil, fmt.Errorf("response has no recognized collection key (tried %v)", collectionKeys)
}

// decodeInto decodes the collection portion of body into v, which must
// be a pointer to a slice.
func decodeInto(body []byte, v any) error {
	items, _, err := decodeCollection(body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(items, v); err != nil {
		return fmt.Errorf("invalid collection items: %w", err)
	}
	return nil
}

// decodePage decodes body into a canonical Page.
func decodePage(body []byte) (Page, error) {
	items, rawCursor, err := decodeCollection(body)
	if err != nil {
		return Page{}, err
	}

	var page Page
	if err := json.Unmarshal(items, &page.Records); err != nil {
		return Page{}, fmt.Errorf("invalid page records: %w", err)
	}

	cursor, err := decodeCursor(rawCursor)
	if err != nil {
		return Page{}, err
	}
	page.Cursor = cursor

	return page, nil
}

// decodeCursor accepts a string, number, or null cursor and returns its
// opaque string form. The token is never interpreted, only echoed back.
func decodeCursor(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}

	return "", fmt.Errorf("invalid cursor value %s", string(raw))
}
