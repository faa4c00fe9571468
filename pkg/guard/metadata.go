package guard

import (
	"encoding/json"
	"errors"
	"fmt"

	"mercator-hq/ganymede/pkg/rules"
	"mercator-hq/ganymede/pkg/store"
)

// MetadataRecordOwner tags mint metadata records in the account store.
const MetadataRecordOwner = "token-metadata"

// MetadataID derives the metadata record address for a mint.
func MetadataID(mint store.Address) store.Address {
	return store.Address("metadata/" + string(mint))
}

// PutMetadata stores the metadata facts for a mint. Metadata is optional;
// mints without it evaluate metadata.* rule fields as absent.
func PutMetadata(txn store.Txn, mint store.Address, md *rules.MetadataFacts) error {
	data, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("failed to encode metadata record: %w", err)
	}

	id := MetadataID(mint)
	rec, err := txn.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		rec = &store.Record{Address: id, Owner: MetadataRecordOwner}
	} else if err != nil {
		return err
	}
	rec.Owner = MetadataRecordOwner
	rec.Data = data
	return txn.Put(rec)
}

// GetMetadata loads the metadata facts for a mint, or nil when the mint
// has none.
func GetMetadata(txn store.Txn, mint store.Address) (*rules.MetadataFacts, error) {
	rec, err := txn.Get(MetadataID(mint))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.Owner != MetadataRecordOwner {
		return nil, fmt.Errorf("record is not mint metadata")
	}

	var md rules.MetadataFacts
	if err := json.Unmarshal(rec.Data, &md); err != nil {
		return nil, fmt.Errorf("failed to decode metadata record: %w", err)
	}
	return &md, nil
}
