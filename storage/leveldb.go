package storage

import (
	"errors"

	. "github.com/PelionIoT/topologyd/error"
	. "github.com/PelionIoT/topologyd/logging"

	"github.com/syndtr/goleveldb/leveldb"
	levelErrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

var EDriverClosed = errors.New("Driver is closed")

type LevelDBStorageDriver struct {
	file    string
	options *opt.Options
	db      *leveldb.DB
}

func NewLevelDBStorageDriver(file string, options *opt.Options) *LevelDBStorageDriver {
	return &LevelDBStorageDriver{file, options, nil}
}

func (levelDriver *LevelDBStorageDriver) Open() error {
	levelDriver.Close()

	db, err := leveldb.OpenFile(levelDriver.file, levelDriver.options)

	if err != nil {
		prometheusRecordStorageError("open()", levelDriver.file)

		if levelErrors.IsCorrupted(err) {
			Log.Criticalf("LevelDB database is corrupted: %v", err.Error())

			return ECorrupted
		}

		return err
	}

	levelDriver.db = db

	return nil
}

func (levelDriver *LevelDBStorageDriver) Close() error {
	if levelDriver.db == nil {
		return nil
	}

	err := levelDriver.db.Close()

	levelDriver.db = nil

	return err
}

func (levelDriver *LevelDBStorageDriver) Recover() error {
	levelDriver.Close()

	db, err := leveldb.RecoverFile(levelDriver.file, levelDriver.options)

	if err != nil {
		prometheusRecordStorageError("recover()", levelDriver.file)

		return err
	}

	levelDriver.db = db

	return nil
}

func (levelDriver *LevelDBStorageDriver) Get(keys [][]byte) ([][]byte, error) {
	if levelDriver.db == nil {
		return nil, EDriverClosed
	}

	if keys == nil {
		return [][]byte{}, nil
	}

	snapshot, err := levelDriver.db.GetSnapshot()

	if err != nil {
		prometheusRecordStorageError("get()", levelDriver.file)

		return nil, err
	}

	defer snapshot.Release()

	values := make([][]byte, len(keys))

	for i, key := range keys {
		if key == nil {
			continue
		}

		values[i], err = snapshot.Get(key, &opt.ReadOptions{DontFillCache: false, Strict: opt.DefaultStrict})

		if err == leveldb.ErrNotFound {
			values[i] = nil

			continue
		}

		if err != nil {
			prometheusRecordStorageError("get()", levelDriver.file)

			return nil, err
		}
	}

	return values, nil
}

// Batch writes every operation in the batch atomically. The write is synced
// so that a committed topology survives a crash.
func (levelDriver *LevelDBStorageDriver) Batch(batch *Batch) error {
	if levelDriver.db == nil {
		return EDriverClosed
	}

	if batch == nil {
		return nil
	}

	b := new(leveldb.Batch)

	for _, op := range batch.SortedOps() {
		if op.IsPut() {
			b.Put(op.Key(), op.Value())
		} else if op.IsDelete() {
			b.Delete(op.Key())
		}
	}

	err := levelDriver.db.Write(b, &opt.WriteOptions{Sync: true})

	if err != nil {
		prometheusRecordStorageError("batch()", levelDriver.file)
	}

	return err
}
