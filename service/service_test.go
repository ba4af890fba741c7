package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/CMSgov/xc-harvester/harvester/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bookLeader = "00000nam a2200000 a 4500"

// marcXML builds a bare MARCXML record from "tag|subfield|value" triples.
func marcXML(leader string, fields ...string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, `<record xmlns="http://www.loc.gov/MARC21/slim"><leader>%s</leader>`, leader)
	for _, f := range fields {
		parts := strings.SplitN(f, "|", 3)
		fmt.Fprintf(&b, `<datafield tag="%s" ind1=" " ind2="0"><subfield code="%s">%s</subfield></datafield>`,
			parts[0], parts[1], parts[2])
	}
	b.WriteString("</record>")
	return []byte(b.String())
}

type stubService struct {
	validateErr error
	calls       [][]models.Record
	err         error
}

func (s *stubService) Validate() error { return s.validateErr }

func (s *stubService) Transform(_ context.Context, in []models.Record) ([]OutputRecord, error) {
	s.calls = append(s.calls, in)
	if s.err != nil {
		return nil, s.err
	}
	out := make([]OutputRecord, 0, len(in))
	for _, r := range in {
		out = append(out, OutputRecord{InputID: r.ID, OAIIdentifier: r.OAIIdentifier})
	}
	return out, nil
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("b", &stubService{}))
	require.NoError(t, reg.Register("a", &stubService{}))

	assert.EqualError(t, reg.Register("a", &stubService{}), "service a is already registered")
	notReady := errors.New("not ready")
	err := reg.Register("c", &stubService{validateErr: notReady})
	assert.EqualError(t, err, "service c is invalid: not ready")
	assert.Equal(t, notReady, errors.Cause(err))

	assert.Equal(t, []string{"a", "b"}, reg.Keys())

	_, err = reg.Get("missing")
	var unknown *UnknownServiceError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "missing", unknown.Key)
}
