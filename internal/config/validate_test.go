package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nkazin/difgo/internal/config"
)

func TestCheckDirectories_IdenticalRoots(t *testing.T) {
	c := config.Default()
	c.PartA = "/data/photos"
	c.PartB = "/data/photos"

	overlap, reason := c.CheckDirectories()
	assert.True(t, overlap)
	assert.Contains(t, reason, "identical")
}

func TestCheckDirectories_PrefixOnlyFlaggedWhenRecurse(t *testing.T) {
	c := config.Default()
	c.PartA = "/data/photos"
	c.PartB = "/data/photos/2020"

	c.Recurse = false
	overlap, _ := c.CheckDirectories()
	assert.False(t, overlap)

	c.Recurse = true
	overlap, reason := c.CheckDirectories()
	assert.True(t, overlap)
	assert.Contains(t, reason, "subdirectory")
}

func TestCheckDirectories_DisjointRoots(t *testing.T) {
	c := config.Default()
	c.PartA = "/data/photos-a"
	c.PartB = "/data/photos-b"

	overlap, _ := c.CheckDirectories()
	assert.False(t, overlap)
}

func TestCheckDirectories_SimilarPrefixNotSubdir(t *testing.T) {
	c := config.Default()
	c.PartA = "/data/photos"
	c.PartB = "/data/photos2"
	c.Recurse = true

	overlap, _ := c.CheckDirectories()
	assert.False(t, overlap)
}

func TestValidate_RejectsBadShift(t *testing.T) {
	c := config.Default()
	c.PartA = "/data/photos"
	c.FirstLoop.ShiftAmount = 9

	err := c.Validate()
	assert.Error(t, err)
}

func TestValidate_RejectsEmptyRoot(t *testing.T) {
	c := config.Default()
	err := c.Validate()
	assert.Error(t, err)
}

func TestValidate_OK(t *testing.T) {
	c := config.Default()
	c.PartA = "/data/photos-a"
	c.PartB = "/data/photos-b"
	assert.NoError(t, c.Validate())
}
