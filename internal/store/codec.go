package store

import (
	"encoding/json"
	"fmt"

	"github.com/mmcdole/stork/internal/domain"
)

func encodeRecord(rec domain.Record) (string, int64, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", 0, fmt.Errorf("encode %s %s: %w", rec.Kind, rec.LegacyID, err)
	}
	var updated int64
	if !rec.UpdatedAt.IsZero() {
		updated = rec.UpdatedAt.Unix()
	}
	return string(data), updated, nil
}

func decodeRecord(data string) (domain.Record, error) {
	var rec domain.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return rec, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}
