package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandBytes(t *testing.T) {
	assert.Equal(t, []byte("INIT"), CmdInit.Bytes())
	assert.Equal(t, []byte("MOVE"), CmdMove.Bytes())
	assert.Equal(t, []byte("DONE"), CmdDone.Bytes())

	for _, cmd := range []Command{CmdInit, CmdMove, CmdDone} {
		assert.Len(t, cmd.Bytes(), CommandLength)
		assert.True(t, cmd.Valid())
	}
}

func TestCommandValid_Unknown(t *testing.T) {
	assert.False(t, Command("STOP").Valid())
	assert.False(t, Command("").Valid())
}

func TestDecodeStepCount_Positive(t *testing.T) {
	count, err := DecodeStepCount([]byte{0x00, 0x00, 0x00, 0x05})
	require.NoError(t, err)
	assert.Equal(t, int32(5), count)
}

func TestDecodeStepCount_Negative(t *testing.T) {
	count, err := DecodeStepCount([]byte{0xFF, 0xFF, 0xFF, 0xFB})
	require.NoError(t, err)
	assert.Equal(t, int32(-5), count)
}

func TestDecodeStepCount_WrongLength(t *testing.T) {
	_, err := DecodeStepCount([]byte{0x00, 0x01})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedReply)

	_, err = DecodeStepCount([]byte{0x00, 0x00, 0x00, 0x00, 0x01})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedReply)

	_, err = DecodeStepCount(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedReply)
}

func TestEncodeStepCount(t *testing.T) {
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x05}, EncodeStepCount(5))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFB}, EncodeStepCount(-5))

	count, err := DecodeStepCount(EncodeStepCount(2147483647))
	require.NoError(t, err)
	assert.Equal(t, int32(2147483647), count)
}
