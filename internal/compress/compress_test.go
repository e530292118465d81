package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodecsRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("case manifest payload "), 100)

	codecs := []Compress{NewNop(), NewGZip(), NewLZ4(), NewBrotli()}
	for _, codec := range codecs {
		encoded, err := codec.Encode(payload)
		assert.NoError(t, err)

		decoded, err := codec.Decode(encoded)
		assert.NoError(t, err)
		assert.Equal(t, payload, decoded)
	}
}
