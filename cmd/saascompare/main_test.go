package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saas-compare/decision/catalog"
)

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitList([]string{"a, b", " ", "c,"}))
	assert.Nil(t, splitList(nil))
}

func TestWriteEntitiesRoundTrip(t *testing.T) {
	entities := []catalog.Entity{{
		ID:   "ec2-us-east-1",
		Name: "AmazonEC2",
		Kind: catalog.KindCloud,
		AttributeGroups: map[string]*catalog.AttributeSet{
			"on_demand": {Price: catalog.PriceFromInt(1), Features: []string{"instanceType: t3.micro"}},
			"reserved":  nil,
		},
		Tags: []string{"us-east-1"},
	}}

	for _, name := range []string{"out.json", "out.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, writeEntities(path, entities))

			cat, err := catalog.NewParser().ParseFile(path)
			require.NoError(t, err)
			require.Len(t, cat.Entities, 1)
			got := cat.Entities[0]
			assert.Equal(t, "ec2-us-east-1", got.ID)
			assert.Nil(t, got.Tier("reserved"))
			require.NotNil(t, got.Tier("on_demand"))
			assert.Equal(t, []string{"instanceType: t3.micro"}, got.Tier("on_demand").Features)
		})
	}
}
