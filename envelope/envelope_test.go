package envelope

import (
	"encoding/json"
	"testing"

	"github.com/c360/semlink/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadFrom(t *testing.T) {
	type reading struct {
		Sensor string  `json:"sensor"`
		Value  float64 `json:"value"`
	}

	p, err := PayloadFrom("hello")
	require.NoError(t, err)
	assert.True(t, p.IsText())
	assert.Equal(t, "hello", p.Value())

	p, err = PayloadFrom(map[string]any{"a": "b"})
	require.NoError(t, err)
	assert.True(t, p.IsObject())

	p, err = PayloadFrom(reading{Sensor: "t1", Value: 2})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"sensor": "t1", "value": 2.0}, p.Object())

	p, err = PayloadFrom(json.RawMessage(`{"k":1}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": 1.0}, p.Object())

	for _, bad := range []any{42, []string{"a"}, nil} {
		_, err := PayloadFrom(bad)
		assert.ErrorIs(t, err, errors.ErrInvalidEnvelope, "%v", bad)
	}
}

func TestPayload_JSON(t *testing.T) {
	data, err := json.Marshal(TextPayload("hi"))
	require.NoError(t, err)
	assert.JSONEq(t, `"hi"`, string(data))

	data, err = json.Marshal(ObjectPayload(map[string]any{"x": "y"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":"y"}`, string(data))

	var p Payload
	require.NoError(t, json.Unmarshal([]byte(`{"x":"y"}`), &p))
	assert.Equal(t, `{"x":"y"}`, p.String())

	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &p))
	assert.Error(t, json.Unmarshal([]byte(`7`), &p))
}

func TestPayload_Zero(t *testing.T) {
	var p Payload
	assert.True(t, p.IsZero())
	assert.True(t, p.IsText())
	assert.False(t, ObjectPayload(nil).IsZero())
}

func TestEnvelope_ReplyAddress(t *testing.T) {
	env := &Envelope{ThreadID: "t", Sender: Sender{Topic: "vasya"}}
	assert.Equal(t, "vasya", env.ReplyAddress())
	assert.True(t, env.Replyable())

	env.ReplyTo = "inbox"
	assert.Equal(t, "inbox", env.ReplyAddress())

	env.ThreadID = ""
	assert.False(t, env.Replyable())

	assert.False(t, (&Envelope{ThreadID: "t"}).Replyable())
	var nilEnv *Envelope
	assert.False(t, nilEnv.Replyable())
}
