package storage

// PrefixedStorageDriver confines its reads and writes to the keys of the
// underlying driver that start with prefix. Opening and closing are left to
// the owner of the underlying driver.
type PrefixedStorageDriver struct {
	prefix        []byte
	storageDriver StorageDriver
}

func NewPrefixedStorageDriver(prefix []byte, storageDriver StorageDriver) *PrefixedStorageDriver {
	return &PrefixedStorageDriver{prefix, storageDriver}
}

func (psd *PrefixedStorageDriver) Open() error {
	return nil
}

func (psd *PrefixedStorageDriver) Close() error {
	return nil
}

func (psd *PrefixedStorageDriver) Recover() error {
	return psd.storageDriver.Recover()
}

func (psd *PrefixedStorageDriver) addPrefix(k []byte) []byte {
	result := make([]byte, 0, len(psd.prefix)+len(k))

	result = append(result, psd.prefix...)
	result = append(result, k...)

	return result
}

func (psd *PrefixedStorageDriver) Get(keys [][]byte) ([][]byte, error) {
	prefixKeys := make([][]byte, len(keys))

	for i, _ := range keys {
		if keys[i] != nil {
			prefixKeys[i] = psd.addPrefix(keys[i])
		}
	}

	return psd.storageDriver.Get(prefixKeys)
}

func (psd *PrefixedStorageDriver) Batch(batch *Batch) error {
	if batch == nil {
		return nil
	}

	prefixedBatch := NewBatch()

	for _, op := range batch.Ops() {
		if op.IsPut() {
			prefixedBatch.Put(psd.addPrefix(op.Key()), op.Value())
		} else if op.IsDelete() {
			prefixedBatch.Delete(psd.addPrefix(op.Key()))
		}
	}

	return psd.storageDriver.Batch(prefixedBatch)
}
