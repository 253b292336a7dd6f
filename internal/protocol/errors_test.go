package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsKnownCode(t *testing.T) {
	for _, c := range []string{"", ErrProtoBadRequest, ErrBadRequest, ErrUnknownEvent, ErrNotFound,
		ErrInvalidTarget, ErrNoSelection, ErrNotStarted, ErrRateLimit, ErrInternal} {
		assert.True(t, IsKnownCode(c), c)
	}
	assert.False(t, IsKnownCode("E_NOT_DEFINED"))
}

func TestFail(t *testing.T) {
	res := Fail("r1", CmdGetStats, ErrRateLimit)
	assert.False(t, res.OK)
	assert.Equal(t, TypeResult, res.Type)
	assert.Equal(t, "too many commands", res.Message)
	assert.Equal(t, "unknown error", CodeText("E_NOPE"))
}

func TestDecodeCmd(t *testing.T) {
	doc, cmd, err := DecodeCmd([]byte(`{"type":"CMD","protocol_version":"1.0","cmd":"assign_builder","subject":3,"crew":7}`))
	assert.NoError(t, err)
	assert.NotNil(t, doc)
	assert.Equal(t, CmdAssignBuilder, cmd.Cmd)
	assert.Equal(t, uint32(3), cmd.Subject)
	assert.True(t, Compatible(cmd.ProtocolVersion))

	// Wrong field types keep the generic document for schema errors.
	doc, cmd, err = DecodeCmd([]byte(`{"type":"CMD","cmd":"get_module","entity":"x"}`))
	assert.NoError(t, err)
	assert.NotNil(t, doc)
	assert.False(t, Compatible(cmd.ProtocolVersion))

	_, _, err = DecodeCmd([]byte(`{`))
	assert.Error(t, err)
}
