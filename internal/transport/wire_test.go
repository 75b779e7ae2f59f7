package transport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockvoice/mockvoice/internal/call"
	"github.com/mockvoice/mockvoice/internal/interview"
	"github.com/mockvoice/mockvoice/internal/transcript"
)

func TestDecodeLifecycle(t *testing.T) {
	events, err := Decode([]byte(`{"type":"call-start"}`))
	require.NoError(t, err)
	assert.Equal(t, []call.Event{call.SessionStarted{}}, events)

	events, err = Decode([]byte(`{"type":"call-end","endedReason":"assistant-ended-call"}`))
	require.NoError(t, err)
	assert.Equal(t, []call.Event{call.SessionEnded{Reason: "assistant-ended-call"}}, events)

	events, err = Decode([]byte(`{"type":"hang"}`))
	require.NoError(t, err)
	assert.Equal(t, []call.Event{call.SessionEnded{}}, events)
}

func TestDecodeTranscript(t *testing.T) {
	events, err := Decode([]byte(`{"type":"transcript","role":"user","transcriptType":"final","transcript":"I use Go."}`))
	require.NoError(t, err)
	assert.Equal(t, []call.Event{call.Utterance{Speaker: transcript.RoleUser, Text: "I use Go.", Final: true}}, events)

	events, err = Decode([]byte(`{"type":"transcript","role":"assistant","transcriptType":"partial","transcript":"Tell me"}`))
	require.NoError(t, err)
	assert.Equal(t, []call.Event{call.Utterance{Speaker: transcript.RoleAssistant, Text: "Tell me"}}, events)
}

func TestDecodeFunctionCallFeedsExtractor(t *testing.T) {
	events, err := Decode([]byte(`{"type":"function-call","functionCall":{"name":"saveInterview","parameters":{"role":"Backend Engineer","techstack":"Go","amount":5}}}`))
	require.NoError(t, err)
	require.Len(t, events, 1)

	inv, ok := events[0].(call.FunctionInvocation)
	require.True(t, ok)
	assert.Equal(t, "saveInterview", inv.Name)

	spec, ok := interview.Extract(inv.Args)
	require.True(t, ok)
	assert.Equal(t, "Backend Engineer", spec.Role)
	assert.Equal(t, 5, spec.Amount)
}

func TestDecodeToolCallsFansOut(t *testing.T) {
	events, err := Decode([]byte(`{"type":"tool-calls","toolCallList":[
		{"id":"a","function":{"name":"lookup","arguments":"{}"}},
		{"id":"b","function":{"name":"save","arguments":"{\"role\":\"SRE\"}"}}
	]}`))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "lookup", events[0].(call.FunctionInvocation).Name)
	assert.Equal(t, `{"role":"SRE"}`, events[1].(call.FunctionInvocation).Args)
}

func TestDecodeFunctionResult(t *testing.T) {
	events, err := Decode([]byte(`{"type":"function-call-result","name":"generate","result":{"output":"ok"}}`))
	require.NoError(t, err)
	assert.Equal(t, []call.Event{call.FunctionResult{Name: "generate", Result: map[string]any{"output": "ok"}}}, events)
}

func TestDecodeSpeechUpdate(t *testing.T) {
	events, err := Decode([]byte(`{"type":"speech-update","status":"started","role":"user"}`))
	require.NoError(t, err)
	assert.Equal(t, []call.Event{call.AudioActivity{Speaker: transcript.RoleUser, Speaking: true}}, events)
}

func TestDecodeErrorShapes(t *testing.T) {
	tests := []struct {
		frame string
		want  string
	}{
		{frame: `{"type":"error","error":"Meeting has ended"}`, want: "Meeting has ended"},
		{frame: `{"type":"error","error":{"message":"rate limited"}}`, want: "rate limited"},
		{frame: `{"type":"error","message":"workflow has ended"}`, want: "workflow has ended"},
		{frame: `{"type":"error"}`, want: "unknown agent error"},
		{frame: `{"type":"error","error":{"code":1},"message":{"message":"x"}}`, want: "x"},
	}
	for _, tt := range tests {
		events, err := Decode([]byte(tt.frame))
		require.NoError(t, err, tt.frame)
		require.Len(t, events, 1)
		assert.Equal(t, tt.want, events[0].(call.SessionError).Text(), tt.frame)
	}
}

func TestDecodeUnknownTypeIsMessage(t *testing.T) {
	events, err := Decode([]byte(`{"type":"conversation-update","data":{"role":"Data Engineer","amount":3}}`))
	require.NoError(t, err)
	require.Len(t, events, 1)

	msg, ok := events[0].(call.Message)
	require.True(t, ok)
	assert.Equal(t, "conversation-update", msg.Type)

	spec, ok := interview.Extract(msg.Payload)
	require.True(t, ok)
	assert.Equal(t, "Data Engineer", spec.Role)
	assert.Equal(t, 3, spec.Amount)
}

func TestDecodeUnknownTypeDoesNotLeakFrameType(t *testing.T) {
	for _, frameType := range []string{"end-of-call-report", "add-message", "transfer-update"} {
		t.Run(frameType, func(t *testing.T) {
			frame := `{"type":"` + frameType + `","analysis":{"structuredData":{"role":"Backend Engineer","techstack":["Go"],"amount":5}}}`
			events, err := Decode([]byte(frame))
			require.NoError(t, err)
			require.Len(t, events, 1)

			msg, ok := events[0].(call.Message)
			require.True(t, ok)
			assert.Equal(t, frameType, msg.Type)
			assert.NotContains(t, msg.Payload, "type")

			spec, ok := interview.Extract(msg.Payload)
			require.True(t, ok)
			assert.Equal(t, interview.Spec{
				Role:      "Backend Engineer",
				TechStack: []string{"Go"},
				Amount:    5,
			}, spec)
		})
	}
}

func TestDecodeUnknownTypeKeepsNestedInterviewType(t *testing.T) {
	events, err := Decode([]byte(`{"type":"model-update","data":{"role":"SRE","type":"behavioral"}}`))
	require.NoError(t, err)

	spec, ok := interview.Extract(events[0].(call.Message).Payload)
	require.True(t, ok)
	assert.Equal(t, "SRE", spec.Role)
	assert.Equal(t, "behavioral", spec.Type)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte(`{"type":`))
	require.Error(t, err)
}

func TestStartFrameShape(t *testing.T) {
	data, err := json.Marshal(startFrame{Type: "start", StartConfig: call.StartConfig{
		Mode:       interview.ModeGenerate,
		WorkflowID: "wf-1",
		Variables:  map[string]string{"username": "Ada"},
	}})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "start", got["type"])
	assert.Equal(t, "generate", got["mode"])
	assert.Equal(t, "wf-1", got["workflowId"])
	assert.Equal(t, map[string]any{"username": "Ada"}, got["variableValues"])
	assert.NotContains(t, got, "script")
}
