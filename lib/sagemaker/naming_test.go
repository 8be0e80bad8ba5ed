package sagemaker

import (
	"strings"
	"testing"
	"time"

	"github.com/raulk/clock"
	"github.com/stretchr/testify/assert"
)

func TestNameFromBase(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2018, 11, 5, 10, 30, 15, 123e6, time.UTC))

	assert.Equal(t, "ntm-2018-11-05-10-30-15-123", NameFromBase(clk, "ntm"))

	name := NameFromBase(clk, strings.Repeat("a", 100))
	assert.Len(t, name, MaxNameLength)
	assert.True(t, strings.HasSuffix(name, "-2018-11-05-10-30-15-123"))
}

func TestBaseNameFromImage(t *testing.T) {
	assert.Equal(t, "sagemaker-tensorflow",
		BaseNameFromImage("520713654638.dkr.ecr.us-west-2.amazonaws.com/sagemaker-tensorflow:1.11.0-cpu-py2"))
	assert.Equal(t, "ntm", BaseNameFromImage("ntm:1"))
	assert.Equal(t, "my-image", BaseNameFromImage("my-image"))
}
