package firehose

import (
	"bytes"
	"fmt"
	"io"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	ipld "github.com/ipfs/go-ipld-format"
	"github.com/ipld/go-car"
	mh "github.com/multiformats/go-multihash"
)

// BlockMap is a read-only view of the CAR block section of a commit
// message, keyed by canonical CID so lookups survive CID version drift
// between the op table and the block headers.
type BlockMap struct {
	blocks map[string]blocks.Block
}

// ReadBlockMap parses the CAR v1 payload of a commit and indexes every
// block it carries.
func ReadBlockMap(data []byte) (*BlockMap, error) {
	cr, err := car.NewCarReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("firehose: read car header: %w", err)
	}

	bm := &BlockMap{blocks: make(map[string]blocks.Block, 8)}
	for {
		blk, err := cr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firehose: read car block: %w", err)
		}
		bm.blocks[canonicalCid(blk.Cid()).KeyString()] = blk
	}
	return bm, nil
}

// Get returns the raw bytes of the block addressed by c. A miss returns
// ipld.ErrNotFound; check with ipld.IsNotFound.
func (m *BlockMap) Get(c cid.Cid) ([]byte, error) {
	blk, ok := m.blocks[canonicalCid(c).KeyString()]
	if !ok {
		return nil, &ipld.ErrNotFound{Cid: c}
	}
	return blk.RawData(), nil
}

// Len reports the number of blocks in the map.
func (m *BlockMap) Len() int {
	return len(m.blocks)
}

// canonicalCid rebuilds a CID as v1 from its (codec, multihash) parts.
// Two CIDs addressing the same bytes then key identically even when
// one side came through the legacy v0 representation: a v0 CID keys as
// v1 dag-pb with the same hash.
func canonicalCid(c cid.Cid) cid.Cid {
	h, err := mh.Cast(c.Hash())
	if err != nil {
		return c
	}
	return cid.NewCidV1(c.Type(), h)
}
