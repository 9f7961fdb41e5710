// store.go - Key-value snapshot storage behind the gokv interface.
//
// The daemon persists coprocessor and ledger snapshots through gokv so the
// backing store is a deployment choice: syncmap for throwaway runs, file for
// durable single-node deployments.

package store

import (
	"fmt"

	"github.com/philippgille/gokv"
	"github.com/philippgille/gokv/encoding"
	"github.com/philippgille/gokv/file"
	"github.com/philippgille/gokv/syncmap"
)

// Keys under which the daemon persists its snapshots.
const (
	KeyCoprocessor = "coprocessor"
	KeyLedger      = "ledger"
)

func getStoreCodec(codec string) (encoding.Codec, error) {
	switch codec {
	case "", "json":
		return encoding.JSON, nil
	case "gob":
		return encoding.Gob, nil
	default:
		return nil, fmt.Errorf("unsupported codec %s", codec)
	}
}

// InitStore creates a gokv store of the given type. Supported types are
// "syncmap" (in-memory) and "file" (one JSON file per key under dir).
func InitStore(storeType, dir, codec string) (gokv.Store, error) {
	c, err := getStoreCodec(codec)
	if err != nil {
		return nil, err
	}
	switch storeType {
	case "syncmap":
		return syncmap.NewStore(syncmap.Options{Codec: c}), nil
	case "file":
		if dir == "" {
			return nil, fmt.Errorf("file store requires a directory")
		}
		st, err := file.NewStore(file.Options{Directory: dir, Codec: c})
		if err != nil {
			return nil, fmt.Errorf("file.NewStore err: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported store type %s", storeType)
	}
}
