package events

import (
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutPayloadOmitsField(t *testing.T) {
	env, err := New(TypePing, "", nil)
	require.NoError(t, err)

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ping"}`, string(raw))
}

func TestCandidateWireFormat(t *testing.T) {
	mid := "0"
	env, err := New(TypeCandidate, "peer-b", webrtc.ICECandidateInit{
		Candidate: "candidate:1 1 udp 1 10.0.0.1 5000 typ host",
		SDPMid:    &mid,
	})
	require.NoError(t, err)

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Equal(t, "candidate", generic["type"])
	assert.Equal(t, "peer-b", generic["to"])

	// кандидат лежит прямо в payload, без обёртки
	payload, ok := generic["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "candidate:1 1 udp 1 10.0.0.1 5000 typ host", payload["candidate"])
	assert.Equal(t, "0", payload["sdpMid"])
}

func TestDescriptionWireFormat(t *testing.T) {
	env, err := New(TypeOffer, "peer-b", webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\n"})
	require.NoError(t, err)

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"offer","to":"peer-b","payload":{"type":"offer","sdp":"v=0\r\n"}}`, string(raw))
}

func TestDecodeBrowserShapedEnvelopes(t *testing.T) {
	t.Run("offer", func(t *testing.T) {
		var env Envelope
		require.NoError(t, json.Unmarshal([]byte(`{"type":"offer","from":"web","payload":{"type":"offer","sdp":"v=0\r\n"}}`), &env))

		desc, err := env.DecodeDescription()
		require.NoError(t, err)
		assert.Equal(t, webrtc.SDPTypeOffer, desc.Type)
		assert.Equal(t, "v=0\r\n", desc.SDP)
	})

	t.Run("answer in data field", func(t *testing.T) {
		var env Envelope
		require.NoError(t, json.Unmarshal([]byte(`{"type":"answer","data":{"type":"answer","sdp":"v=0\r\n"}}`), &env))

		desc, err := env.DecodeDescription()
		require.NoError(t, err)
		assert.Equal(t, webrtc.SDPTypeAnswer, desc.Type)
	})

	t.Run("candidate", func(t *testing.T) {
		var env Envelope
		raw := `{"type":"candidate","payload":{"candidate":"candidate:1 1 udp 2122260223 10.0.0.1 5000 typ host","sdpMid":"0","sdpMLineIndex":0}}`
		require.NoError(t, json.Unmarshal([]byte(raw), &env))

		c, err := env.DecodeCandidate()
		require.NoError(t, err)
		assert.Equal(t, "candidate:1 1 udp 2122260223 10.0.0.1 5000 typ host", c.Candidate)
		require.NotNil(t, c.SDPMid)
		assert.Equal(t, "0", *c.SDPMid)
		require.NotNil(t, c.SDPMLineIndex)
		assert.Equal(t, uint16(0), *c.SDPMLineIndex)
	})

	t.Run("description without sdp", func(t *testing.T) {
		var env Envelope
		require.NoError(t, json.Unmarshal([]byte(`{"type":"offer","payload":{"description":{"type":"offer","sdp":"x"}}}`), &env))

		_, err := env.DecodeDescription()
		assert.Error(t, err)
	})
}

func TestErrorMessage(t *testing.T) {
	t.Run("top level", func(t *testing.T) {
		var env Envelope
		require.NoError(t, json.Unmarshal([]byte(`{"type":"error","message":"room is full"}`), &env))

		msg, err := env.ErrorMessage()
		require.NoError(t, err)
		assert.Equal(t, "room is full", msg)
	})

	t.Run("payload", func(t *testing.T) {
		env, err := New(TypeError, "", ErrorEvent{Message: "peer x is not in the room"})
		require.NoError(t, err)

		msg, err := env.ErrorMessage()
		require.NoError(t, err)
		assert.Equal(t, "peer x is not in the room", msg)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Envelope{Type: TypeError}.ErrorMessage()
		assert.Error(t, err)
	})
}

func TestDecodeEmptyPayload(t *testing.T) {
	var ev ChatEvent
	assert.Error(t, Envelope{Type: TypeChat}.Decode(&ev))
}

func TestPeerLeftFromRelay(t *testing.T) {
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(`{"type":"peer-left","peer":"abc"}`), &env))
	assert.Equal(t, TypePeerLeft, env.Type)
	assert.Equal(t, "abc", env.Peer)
}
