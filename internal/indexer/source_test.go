package indexer

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultScope/internal/model"
)

func TestJSONLSource(t *testing.T) {
	input := strings.Join([]string{
		"",
		line("Deposit", 1, 0, 1, `{"owner":"`+userA+`","assets":"1","shares":"1"}`),
		"   ",
		"[1,2",
		line("Staked", 2, 5, 2, `{"user":"`+userC+`","amount":"3"}`),
	}, "\n")
	src := NewJSONLSource(strings.NewReader(input))

	rec, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, "Deposit", rec.EventName)
	assert.Equal(t, 2, src.Line())

	_, err = src.Next()
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrMalformedEvent))
	assert.Contains(t, err.Error(), "line 4")

	rec, err = src.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), rec.LogIndex)

	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestJSONLSourceLineTooLong(t *testing.T) {
	src := NewJSONLSource(strings.NewReader(strings.Repeat("x", maxLineSize+1)))
	_, err := src.Next()
	require.Error(t, err)
	assert.False(t, errors.Is(err, io.EOF))
	assert.False(t, errors.Is(err, model.ErrMalformedEvent))
}

func TestParseAddresses(t *testing.T) {
	addrs, err := ParseAddresses([]string{" " + userA + " ", "", userB})
	require.NoError(t, err)
	require.Len(t, addrs, 2)
	assert.Equal(t, userB, strings.ToLower(addrs[1].Hex()))

	_, err = ParseAddresses([]string{"0x1234"})
	require.Error(t, err)
}
