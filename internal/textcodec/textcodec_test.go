package textcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_Recode(t *testing.T) {
	codec, err := New("utf8")
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   string
		charset string
		want    string
	}{
		{name: "same charset is untouched", input: "plain", charset: "utf-8", want: "plain"},
		{name: "empty charset is untouched", input: "plain", charset: "", want: "plain"},
		{name: "latin1 is converted", input: "caf\xe9", charset: "iso-8859-1", want: "café"},
		{name: "windows-1252 is converted", input: "\x80uro", charset: "windows-1252", want: "€uro"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := codec.Recode(tt.input, tt.charset)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCodec_UnknownCharset(t *testing.T) {
	codec, err := New("")
	require.NoError(t, err)
	assert.Equal(t, DefaultInternalCharset, codec.InternalCharset())

	got, err := codec.Recode("value", "no-such-charset")
	assert.Error(t, err)
	assert.Equal(t, "value", got)

	_, err = New("no-such-charset")
	assert.Error(t, err)
}
