package cache

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/LavishGent/imgedge/internal/types"
)

// Rendered responses are stored as an envelope:
//
//	magic(1) version(1) metaLen(4, big endian) meta(JSON) body(raw)
//
// so image bytes are kept as-is rather than base64 encoded. Any other value is JSON.
const (
	envelopeMagic   byte = 0xB7
	envelopeVersion byte = 1
	envelopeHeader       = 6
)

var errCorruptEnvelope = errors.New("cache: corrupt response envelope")

type responseMeta struct {
	Header   http.Header `json:"h,omitempty"`
	StoredAt time.Time   `json:"t"`
	Status   int         `json:"s"`
}

// Serializer encodes values for both cache layers.
type Serializer struct{}

func NewSerializer() *Serializer {
	return &Serializer{}
}

func (s *Serializer) Marshal(v any) ([]byte, error) {
	var resp *types.CachedResponse
	switch r := v.(type) {
	case *types.CachedResponse:
		resp = r
	case types.CachedResponse:
		resp = &r
	}
	if resp == nil {
		return json.Marshal(v)
	}

	meta, err := json.Marshal(responseMeta{Status: resp.Status, Header: resp.Header, StoredAt: resp.StoredAt})
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, envelopeHeader+len(meta)+len(resp.Body))
	buf = append(buf, envelopeMagic, envelopeVersion)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(meta)))
	buf = append(buf, meta...)
	return append(buf, resp.Body...), nil
}

func (s *Serializer) Unmarshal(data []byte, dest any) error {
	resp, ok := dest.(*types.CachedResponse)
	if !ok || len(data) == 0 || data[0] != envelopeMagic {
		return json.Unmarshal(data, dest)
	}

	if len(data) < envelopeHeader {
		return errCorruptEnvelope
	}
	if data[1] != envelopeVersion {
		return fmt.Errorf("%w: version %d", errCorruptEnvelope, data[1])
	}
	n := int(binary.BigEndian.Uint32(data[2:envelopeHeader]))
	if n > len(data)-envelopeHeader {
		return fmt.Errorf("%w: metadata length %d", errCorruptEnvelope, n)
	}

	var meta responseMeta
	if err := json.Unmarshal(data[envelopeHeader:envelopeHeader+n], &meta); err != nil {
		return fmt.Errorf("%w: %v", errCorruptEnvelope, err)
	}

	*resp = types.CachedResponse{
		Status:   meta.Status,
		Header:   meta.Header,
		StoredAt: meta.StoredAt,
		Body:     data[envelopeHeader+n:],
	}
	return nil
}

var _ types.Serializer = (*Serializer)(nil)
