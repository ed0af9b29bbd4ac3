package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/Siddhant-K-code/swarmcluster/pkg/types"
)

// HashDataset hashes the IDs and feature values of every observation, in
// order. Labels are ignored since they never influence a clustering.
func HashDataset(ds types.Dataset) string {
	h := sha256.New()
	var buf [8]byte
	ds.ForEach(func(_ int, d types.Datum) {
		h.Write([]byte(d.ID))
		h.Write([]byte{0})
		for _, v := range d.Features {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
	})
	return hex.EncodeToString(h.Sum(nil))
}

// KeyForRun builds the cache key of a clustering run from its dataset and a
// fingerprint of every parameter that affects the result.
func KeyForRun(prefix string, ds types.Dataset, params string) string {
	h := sha256.New()
	h.Write([]byte(params))
	return prefix + ":run:" + HashDataset(ds) + ":" + hex.EncodeToString(h.Sum(nil))
}
