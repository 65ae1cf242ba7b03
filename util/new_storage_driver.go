package util

import (
	. "github.com/PelionIoT/topologyd/storage"
)

// MakeNewStorageDriver returns a LevelDB driver for a fresh scratch database
// under /tmp
func MakeNewStorageDriver() StorageDriver {
	return NewLevelDBStorageDriver("/tmp/testdb-"+RandomString(), nil)
}
