package s3transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdealVIPCount(t *testing.T) {
	assert.Equal(t, 1, idealVIPCount(0, 1.25))
	assert.Equal(t, 4, idealVIPCount(5, 1.25))
	assert.Equal(t, 5, idealVIPCount(5.1, 1.25))
	assert.Equal(t, 1, idealVIPCount(1, 0)) // falls back to the 1.25 default
}

func TestAdmissionCeilingScalesWithVIPCount(t *testing.T) {
	cfg := Config{PerVIPConnections: DefaultPerVIPConnections}
	assert.Equal(t, DefaultPerVIPConnections.Put, admissionCeiling(&cfg, 1, MetaRequestTypePut))
	assert.Equal(t, DefaultPerVIPConnections.Put*4, admissionCeiling(&cfg, 4, MetaRequestTypePut))
}

func TestAdmissionCeilingHonorsOverride(t *testing.T) {
	cfg := Config{PerVIPConnections: DefaultPerVIPConnections, MaxConnectionsOverride: 3}
	assert.Equal(t, 3, admissionCeiling(&cfg, 4, MetaRequestTypePut))
}

func TestMaxRequestsToPrepareScalesByMultiple(t *testing.T) {
	cfg := Config{PerVIPConnections: DefaultPerVIPConnections, MaxRequestsPrepareMultiple: 2}
	ceiling := admissionCeiling(&cfg, 1, MetaRequestTypePut)
	assert.Equal(t, ceiling*2, maxRequestsToPrepare(&cfg, 1, MetaRequestTypePut))
}

func TestVIPForPartIsDeterministicAndInRange(t *testing.T) {
	for i := 0; i < 20; i++ {
		v := vipForPart("upload-1", i+1, 4)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 4)
	}
	assert.Equal(t, vipForPart("upload-1", 7, 4), vipForPart("upload-1", 7, 4))
	assert.Equal(t, 0, vipForPart("upload-1", 7, 1))
	assert.Equal(t, 0, vipForPart("upload-1", 7, 0))
}
