package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"lukechampine.com/blake3"
)

// Identity pins a room to a stable id across restarts. The id is minted
// once from a genesis string and kept in the data directory.
type Identity struct {
	RoomID    string `json:"roomId"`
	Name      string `json:"name,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

func LoadOrCreateIdentity(dataDir, name string) (Identity, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return Identity{}, fmt.Errorf("store: data dir %s: %w", dataDir, err)
	}
	path := filepath.Join(dataDir, "identity.json")

	if data, err := os.ReadFile(path); err == nil {
		var id Identity
		if err := json.Unmarshal(data, &id); err != nil {
			return Identity{}, fmt.Errorf("store: parse %s: %w", path, err)
		}
		if id.RoomID != "" {
			return id, nil
		}
	}

	nonce := make([]byte, 8)
	rand.Read(nonce)
	genesis := fmt.Sprintf("genesis-%d-%x", time.Now().UnixNano(), nonce)
	sum := blake3.Sum256([]byte(genesis))

	id := Identity{
		RoomID:    hex.EncodeToString(sum[:]),
		Name:      name,
		CreatedAt: time.Now().UnixMilli(),
	}
	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return Identity{}, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Identity{}, fmt.Errorf("store: write %s: %w", path, err)
	}
	return id, nil
}
