package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "debug", "json")
	require.NoError(t, err)

	l.WithField("department", "TAX").Debug("generated")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "generated", line["msg"])
	assert.Equal(t, "TAX", line["department"])
}

func TestNew_RejectsUnknownSettings(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "loud", "text")
	assert.Error(t, err)

	_, err = New(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "info", "text")
	require.NoError(t, err)

	ctx := WithLogger(context.Background(), l.WithField("run", "r1"))
	FromContext(ctx).Info("hello")
	assert.Contains(t, buf.String(), "run=r1")

	entry := FromContext(context.Background())
	require.NotNil(t, entry)
	entry.Info("dropped")
	assert.Equal(t, logrus.InfoLevel, entry.Logger.GetLevel())
}
