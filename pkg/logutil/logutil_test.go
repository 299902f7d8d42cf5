package logutil

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestFromLogrusForwardsInfo(t *testing.T) {
	out := &bytes.Buffer{}
	l := logrus.New()
	l.SetOutput(out)

	log := FromLogrus(l)
	log.Info("punching", "attempts", 5)

	assert.Contains(t, out.String(), "punching")
	assert.Contains(t, out.String(), "attempts")
}

func TestVerbosityFollowsDebugLevel(t *testing.T) {
	out := &bytes.Buffer{}
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(logrus.InfoLevel)

	log := FromLogrus(l)
	log.V(1).Info("suppressed detail")
	assert.NotContains(t, out.String(), "suppressed detail")

	l.SetLevel(logrus.DebugLevel)
	log = FromLogrus(l)
	log.V(1).Info("visible detail")
	assert.Contains(t, out.String(), "visible detail")
}
