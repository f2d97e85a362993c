package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/nictes1/decision-orchestrator/internal/orchestrator/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	name      string
	responses []string
	err       error
	calls     int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) CompleteText(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	return f.responses[idx], nil
}

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	r := schema.Default()
	require.NoError(t, r.MustLoad())
	return r
}

func TestClient_GenerateJSON_Success(t *testing.T) {
	backend := &fakeBackend{name: "fake", responses: []string{`{"intent":"greeting","confidence":1,"slots":{}}`}}
	c := New(testRegistry(t), backend, nil)

	value, err := c.GenerateJSON(context.Background(), "hola", schema.ExtractorV1)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.calls)
	m, ok := value.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "greeting", m["intent"])
}

func TestClient_GenerateJSON_RepairsOnce(t *testing.T) {
	backend := &fakeBackend{name: "fake", responses: []string{
		`not json at all`,
		`{"intent":"book","confidence":0.8,"slots":{}}`,
	}}
	c := New(testRegistry(t), backend, nil)

	value, err := c.GenerateJSON(context.Background(), "reservar", schema.ExtractorV1)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.calls)
	m := value.(map[string]any)
	assert.Equal(t, "book", m["intent"])
}

func TestClient_GenerateJSON_FailsAfterRepairFallsBackToSecondBackend(t *testing.T) {
	primary := &fakeBackend{name: "primary", responses: []string{`garbage`, `still garbage`}}
	fallback := &fakeBackend{name: "fallback", responses: []string{`{"intent":"other","confidence":0.5,"slots":{}}`}}
	c := New(testRegistry(t), primary, fallback)

	value, err := c.GenerateJSON(context.Background(), "???", schema.ExtractorV1)
	require.NoError(t, err)
	m := value.(map[string]any)
	assert.Equal(t, "other", m["intent"])
}

func TestClient_GenerateJSON_TransportError(t *testing.T) {
	backend := &fakeBackend{name: "fake", err: errors.New("connection refused")}
	c := New(testRegistry(t), backend, nil)

	_, err := c.GenerateJSON(context.Background(), "hola", schema.ExtractorV1)
	require.Error(t, err)
	var lerr *Error
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, ErrorKindTransport, lerr.Kind)
}

func TestClient_GenerateJSON_TimeoutRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	backend := &fakeBackend{name: "fake", responses: []string{`{}`}}
	c := New(testRegistry(t), backend, nil)

	_, err := c.GenerateJSON(ctx, "hola", schema.ExtractorV1)
	require.Error(t, err)
	var lerr *Error
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, ErrorKindTimeout, lerr.Kind)
}
