package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "debug", "text")
	require.NoError(t, err)
	log.WithFields(logrus.Fields{"network": "westend", "checksum": "ab"}).Info("staged")
	require.Regexp(t, `^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] \[info\] staged checksum=ab network=westend\n$`, buf.String())
}

func TestJSONFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "warn", "json")
	require.NoError(t, err)
	log.Info("hidden")
	require.Empty(t, buf.String())

	log.Warn("shown")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "shown", line["msg"])
}

func TestNewRejectsBadSettings(t *testing.T) {
	_, err := New(nil, "loud", "text")
	require.Error(t, err)
	_, err = New(nil, "info", "xml")
	require.Error(t, err)
}
