package service

import (
	"context"
	"testing"

	"github.com/CMSgov/xc-harvester/harvester/models"
	"github.com/CMSgov/xc-harvester/transformation/mapper"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTransformation(t *testing.T) (*Transformation, *test.Hook) {
	logger, hook := test.NewNullLogger()
	tr := NewTransformation(TransformationConfig{
		Config:   mapper.Config{OrgCode: "NyRoU"},
		IDPrefix: "oai:test:xc",
	}, logger)
	require.NoError(t, tr.Validate())
	return tr, hook
}

func TestTransformationValidate(t *testing.T) {
	tr := NewTransformation(TransformationConfig{}, logrus.New())
	assert.EqualError(t, tr.Validate(), "an identifier prefix is required")
}

func TestTransformationTransform(t *testing.T) {
	tr, hook := newTransformation(t)

	in := []models.Record{
		{ID: 7, OAIIdentifier: "oai:example.org:7", XML: marcXML(bookLeader, "245|a|Etudes")},
		{ID: 8, OAIIdentifier: "oai:example.org:8", Deleted: true},
		{ID: 9, OAIIdentifier: "oai:example.org:9", XML: []byte("<record><leader>")},
		{ID: 10, OAIIdentifier: "oai:example.org:10", XML: marcXML("short", "245|a|Nocturnes")},
	}

	out, err := tr.Transform(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, int64(7), out[0].InputID)
	assert.Equal(t, "oai:example.org:7", out[0].OAIIdentifier)
	assert.Contains(t, string(out[0].XML), "oai:test:xc/7-1")
	assert.Contains(t, string(out[0].XML), "Etudes")
	assert.Empty(t, out[0].Matches)

	var skipped int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			skipped++
		}
	}
	assert.Equal(t, 2, skipped)
}

func TestTransformationIDsAreStable(t *testing.T) {
	tr, _ := newTransformation(t)
	in := []models.Record{{ID: 3, XML: marcXML(bookLeader, "245|a|Preludes")}}

	first, err := tr.Transform(context.Background(), in)
	require.NoError(t, err)
	second, err := tr.Transform(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first[0].XML, second[0].XML)
}
