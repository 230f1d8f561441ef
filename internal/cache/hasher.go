package cache

import (
	"hash"

	"golang.org/x/crypto/blake2b"

	"bf/internal/errors"
)

func newHasher() (hash.Hash, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, errors.IO(err, "initializing compile cache hash")
	}
	return h, nil
}
