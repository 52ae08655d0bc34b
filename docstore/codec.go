package docstore

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/jmcleod/sealbox/storage"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	encOpts := cbor.CoreDetEncOptions()
	encOpts.Time = cbor.TimeRFC3339Nano
	var err error
	if encMode, err = encOpts.EncMode(); err != nil {
		panic(fmt.Sprintf("docstore: cbor encoder: %v", err))
	}
	decOpts := cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}
	if decMode, err = decOpts.DecMode(); err != nil {
		panic(fmt.Sprintf("docstore: cbor decoder: %v", err))
	}
}

// header is the associated data of every document envelope. It travels in
// clear but is authenticated together with the ciphertext.
type header struct {
	Label      string `cbor:"1,keyasint,omitempty"`
	Generation uint64 `cbor:"2,keyasint"`
}

func encodeHeader(h header) ([]byte, error) {
	return encMode.Marshal(h)
}

func decodeHeader(data []byte) (header, error) {
	var h header
	if len(data) == 0 {
		return h, nil
	}
	if err := decMode.Unmarshal(data, &h); err != nil {
		return header{}, fmt.Errorf("%w: decoding header: %w", storage.ErrSerialization, err)
	}
	return h, nil
}

func encodeDocument[D any](doc *D) ([]byte, error) {
	data, err := encMode.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding document: %w", storage.ErrSerialization, err)
	}
	return data, nil
}

func decodeDocument[D any](data []byte, doc *D) error {
	if err := decMode.Unmarshal(data, doc); err != nil {
		return fmt.Errorf("%w: decoding document: %w", storage.ErrSerialization, err)
	}
	return nil
}
