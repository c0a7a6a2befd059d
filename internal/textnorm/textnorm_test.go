package textnorm

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Empty(t *testing.T) {
	c := Normalize("")
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Index)
	assert.Equal(t, "", c.Text())
}

func TestNormalize_StripsWhitespaceKeepsPunctuation(t *testing.T) {
	c := Normalize("C P F 1 2 3 . 4 5 6 . 7 8 9-00")
	assert.Equal(t, "CPF123.456.789-00", c.Text())
}

func TestNormalize_ControlAndFormatChars(t *testing.T) {
	c := Normalize("Apó\u200blice\tNº\r\n12\u00ad3\x00")
	assert.Equal(t, "ApóliceNº123", c.Text())
}

func TestNormalize_InvalidUTF8(t *testing.T) {
	c := Normalize("AB\xffC")
	assert.Equal(t, "ABC", c.Text())
	assert.Equal(t, []int{0, 1, 3}, c.Index)
}

func TestNormalize_IndexReconstructsOriginal(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"SEGURADO: João da Silva\nCPF: 123.456.789-00",
		"Vigência  de 01/02/2024\ta 01/02/2025",
		"Prêmio Total R$ 1.234,56    ç ã õ",
		"\x01\x02abc\xfe\xffdef",
		"日本語 テキスト",
	}
	for _, in := range inputs {
		c := Normalize(in)
		require.Equal(t, len(c.Runes), len(c.Index), "input %q", in)
		prev := -1
		for i, r := range c.Runes {
			off := c.Index[i]
			require.True(t, off > prev, "index must be strictly increasing")
			prev = off
			got, _ := utf8.DecodeRuneInString(in[off:])
			assert.Equal(t, r, got, "input %q position %d", in, i)
		}
	}
}

func TestSpan(t *testing.T) {
	in := "Nº  Apólice: 99"
	c := Normalize(in)
	// compact: "NºApólice:99"
	s, e, ok := c.Span(2, 9)
	require.True(t, ok)
	assert.Equal(t, "Apólice", in[s:e])

	_, _, ok = c.Span(3, 3)
	assert.False(t, ok)
	_, _, ok = c.Span(0, c.Len()+1)
	assert.False(t, ok)
}

func TestCompactOffset(t *testing.T) {
	in := "a  b  c"
	c := Normalize(in)
	assert.Equal(t, 0, c.CompactOffset(0))
	assert.Equal(t, 1, c.CompactOffset(1))
	assert.Equal(t, 1, c.CompactOffset(3))
	assert.Equal(t, 2, c.CompactOffset(4))
	assert.Equal(t, 3, c.CompactOffset(100))
}
