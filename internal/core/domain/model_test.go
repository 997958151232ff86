package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildProperties(t *testing.T) {
	assert.Equal(t, map[string]string{"build_id": "4321", "run_type": "train"}, BuildProperties("4321"))
	assert.Equal(t, map[string]string{"build_id": "", "run_type": "train"}, BuildProperties(""))
}

func TestLatestModel(t *testing.T) {
	assert.Nil(t, LatestModel(nil))

	now := time.Now()
	first := &Model{Name: "a", CreatedAt: now}
	tie := &Model{Name: "b", CreatedAt: now}
	older := &Model{Name: "c", CreatedAt: now.Add(-time.Minute)}

	assert.Same(t, first, LatestModel([]*Model{older, first, nil, tie}))
}

func TestMetricsGet(t *testing.T) {
	var empty Metrics
	_, ok := empty.Get("val_accuracy")
	assert.False(t, ok)

	v, ok := Metrics{"val_accuracy": 0.9}.Get("val_accuracy")
	assert.True(t, ok)
	assert.Equal(t, 0.9, v)
}
