package trace

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitDisabled(t *testing.T) {
	before := otel.GetTracerProvider()

	shutdown, err := Init(Config{}, "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, before, otel.GetTracerProvider())

	_, span := StartSpan(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestInitExportsSpans(t *testing.T) {
	before := otel.GetTracerProvider()
	defer otel.SetTracerProvider(before)

	var buf bytes.Buffer
	shutdown, err := Init(Config{Enabled: true, Writer: &buf}, "test")
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "backtest.run")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "backtest.run")
	assert.Contains(t, buf.String(), "stocksim")
}
