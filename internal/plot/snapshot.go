package plot

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/theirongolddev/plotlog/internal/model"
)

func init() {
	gob.Register(time.Time{})
	gob.Register(&model.PhaseRecord{})
}

// Snapshot is a resumable parse: the session identity, the byte offset
// consumed so far and the machine state at that offset.
type Snapshot struct {
	SessionID uuid.UUID
	Offset    int64
	State     Session
}

// Encode serialises the snapshot for storage.
func (s Snapshot) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot reverses Encode.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	return s, nil
}
