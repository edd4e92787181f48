package elog

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilProgressTracksPositionWithoutDrawing(t *testing.T) {

	log := &CLI{DisableTTY: true}
	p := log.NewProgress("copy", "KiB", 100)

	n, err := p.Write(make([]byte, 40))
	require.NoError(t, err)
	assert.Equal(t, 40, n)

	p.Increment(10)
	p.Finish(true)
}

func TestFormatDisablesColorsOnRequest(t *testing.T) {

	log := &CLI{DisableColors: true}
	entry := &logrus.Entry{Message: "hello", Level: logrus.ErrorLevel}

	out, err := log.Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))
}
