package sagemaker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrainImage(t *testing.T) {
	image, err := TrainImage("us-west-2", "ntm", "1")
	assert.NoError(t, err)
	assert.Equal(t, "174872318107.dkr.ecr.us-west-2.amazonaws.com/ntm:1", image)

	registry, err := Registry("us-west-2", "ntm")
	assert.NoError(t, err)
	assert.Equal(t, registry+"/ntm:1", image)

	image, err = TrainImage("eu-west-1", "lda", "")
	assert.NoError(t, err)
	assert.Equal(t, "999678624901.dkr.ecr.eu-west-1.amazonaws.com/lda:1", image)

	image, err = TrainImage("ap-south-1", "kmeans", "1")
	assert.NoError(t, err)
	assert.Equal(t, "991648021394.dkr.ecr.ap-south-1.amazonaws.com/kmeans:1", image)
}

func TestTrainImageUnknown(t *testing.T) {
	_, err := TrainImage("mars-north-1", "ntm", "1")
	assert.ErrorIs(t, err, ErrUnknownRegion)

	_, err = TrainImage("us-west-2", "not-an-algorithm", "1")
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestFrameworkImage(t *testing.T) {
	image, err := FrameworkImage("us-west-2", "tensorflow", "1.11.0", "ml.c4.xlarge", "")
	assert.NoError(t, err)
	assert.Equal(t, "520713654638.dkr.ecr.us-west-2.amazonaws.com/sagemaker-tensorflow:1.11.0-cpu-py2", image)

	image, err = FrameworkImage("us-east-1", "tensorflow", "1.11.0", "ml.p2.xlarge", "py3")
	assert.NoError(t, err)
	assert.Equal(t, "520713654638.dkr.ecr.us-east-1.amazonaws.com/sagemaker-tensorflow:1.11.0-gpu-py3", image)

	image, err = FrameworkImage("us-gov-west-1", "tensorflow", "1.11.0", "ml.m4.xlarge", "py2")
	assert.NoError(t, err)
	assert.Equal(t, "246785580436.dkr.ecr.us-gov-west-1.amazonaws.com/sagemaker-tensorflow:1.11.0-cpu-py2", image)

	_, err = FrameworkImage("nowhere", "tensorflow", "1.11.0", "ml.m4.xlarge", "py2")
	assert.ErrorIs(t, err, ErrUnknownRegion)
}
