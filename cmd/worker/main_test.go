package main

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestAsynqLoggerWritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	l := asynqLogger{l: zerolog.New(&buf)}

	l.Warn("lease ", "expired")
	require.Contains(t, buf.String(), `"level":"warn"`)
	require.Contains(t, buf.String(), `"message":"lease expired"`)
}
