package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name string `json:"name"`
}

func TestJSONStrict(t *testing.T) {
	b, err := JSONStrict.Marshal(sample{Name: "<a&b>"})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"<a&b>"}`, string(b))

	var s sample
	require.NoError(t, JSONStrict.Unmarshal([]byte(`{"name":"x"}`), &s))
	assert.Equal(t, "x", s.Name)

	assert.Error(t, JSONStrict.Unmarshal([]byte(`{"name":"x","other":1}`), &s))
	assert.Error(t, JSONStrict.Unmarshal([]byte(`{"name":"x"} {}`), &s))
	assert.Equal(t, "application/json", JSONStrict.ContentType())
}

func TestOctet(t *testing.T) {
	b, err := Octet.Marshal([]byte("sdu"))
	require.NoError(t, err)
	assert.Equal(t, "sdu", string(b))
	_, err = Octet.Marshal("sdu")
	assert.ErrorIs(t, err, ErrNotBytes)

	var out []byte
	require.NoError(t, Octet.Unmarshal([]byte("abc"), &out))
	assert.Equal(t, []byte("abc"), out)
	assert.ErrorIs(t, Octet.Unmarshal([]byte("abc"), &struct{}{}), ErrNotBytes)
}
