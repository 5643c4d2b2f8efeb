package registry

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"flight-tracker/internal/model"
	"flight-tracker/pkg/utils"
)

// Sighting is the stored record for one aircraft identifier.
type Sighting struct {
	Callsign  string `json:"callsign"`
	FirstSeen string `json:"first_seen"`
}

// Registry is the append/upsert sink for aircraft sightings: each ICAO24
// is recorded once with the callsign it was first seen under. Failures are
// logged and never propagate into the serving path.
type Registry struct {
	db  *badger.DB
	log zerolog.Logger
}

// Open opens (or creates) the registry at dir.
func Open(dir string, log zerolog.Logger) (*Registry, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("registry: opening %s: %w", dir, err)
	}
	return &Registry{db: db, log: log}, nil
}

// Close releases the underlying store.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Record upserts the given states. Already-known identifiers are skipped.
func (r *Registry) Record(states []model.AircraftState) error {
	if len(states) == 0 {
		return nil
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		for _, s := range states {
			if s.ICAO24 == "" {
				continue
			}
			key := []byte(s.ICAO24)

			_, err := txn.Get(key)
			if err == nil {
				continue // already recorded
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}

			val, err := json.Marshal(Sighting{
				Callsign:  s.Callsign,
				FirstSeen: utils.FormatTimestamp(s.LastContact),
			})
			if err != nil {
				return err
			}
			if err := txn.Set(key, val); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.log.Error().Err(err).Msg("failed to record sightings")
		return fmt.Errorf("registry: recording sightings: %w", err)
	}
	return nil
}

// Identifiers lists every recorded ICAO24, e.g. for track whitelists.
func (r *Registry) Identifiers() ([]string, error) {
	var ids []string
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("registry: listing identifiers: %w", err)
	}
	return ids, nil
}

// Get returns the sighting for one identifier, or false when unknown.
func (r *Registry) Get(icao24 string) (Sighting, bool, error) {
	var s Sighting
	found := false
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(icao24))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &s); err != nil {
				return err
			}
			found = true
			return nil
		})
	})
	if err != nil {
		return Sighting{}, false, fmt.Errorf("registry: reading %s: %w", icao24, err)
	}
	return s, found, nil
}
