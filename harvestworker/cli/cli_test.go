package cli

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/urfave/cli"
)

const collection = `<?xml version="1.0" encoding="UTF-8"?>
<collection xmlns="http://www.loc.gov/MARC21/slim">
  <record>
    <leader>00000nam a2200000 a 4500</leader>
    <datafield tag="245" ind1="0" ind2="0"><subfield code="a">Etudes</subfield></datafield>
  </record>
  <record>
    <leader>00000nam a2200000 a 4500</leader>
    <datafield tag="245" ind1="0" ind2="0"><subfield code="a">Nocturnes</subfield></datafield>
  </record>
</collection>`

type CLITestSuite struct {
	suite.Suite
	testApp *cli.App
	out     *bytes.Buffer
}

func TestCLITestSuite(t *testing.T) {
	suite.Run(t, new(CLITestSuite))
}

func (s *CLITestSuite) SetupTest() {
	s.testApp = GetApp()
	s.out = new(bytes.Buffer)
	s.testApp.Writer = s.out
}

func (s *CLITestSuite) TestGetApp() {
	assert.Equal(s.T(), Name, s.testApp.Name)
	assert.Equal(s.T(), Usage, s.testApp.Usage)

	var names []string
	for _, c := range s.testApp.Commands {
		names = append(names, c.Name)
	}
	assert.Equal(s.T(), []string{"start-worker", "harvest", "harvest-files", "enqueue", "transform", "migrate"}, names)
}

func (s *CLITestSuite) TestTransform() {
	path := filepath.Join(s.T().TempDir(), "records.xml")
	require.NoError(s.T(), ioutil.WriteFile(path, []byte(collection), 0600))

	err := s.testApp.Run([]string{Name, "transform", "--file", path})
	require.NoError(s.T(), err)

	out := s.out.String()
	assert.Contains(s.T(), out, "Etudes")
	assert.Contains(s.T(), out, "Nocturnes")
	assert.Contains(s.T(), out, `"2-1"`)
	assert.Equal(s.T(), 2, bytes.Count(s.out.Bytes(), []byte("\n")))
}

func (s *CLITestSuite) TestTransformErrors() {
	err := s.testApp.Run([]string{Name, "transform"})
	assert.EqualError(s.T(), err, "file (--file) must be provided")

	err = s.testApp.Run([]string{Name, "transform", "--file", filepath.Join(s.T().TempDir(), "missing.xml")})
	assert.Contains(s.T(), err.Error(), "failed to open")
}

func (s *CLITestSuite) TestHarvestFilesRequiresOneSource() {
	err := s.testApp.Run([]string{Name, "harvest-files", "--schedule", "1", "--step", "1"})
	assert.EqualError(s.T(), err, "one of --dir or --s3 must be provided")

	err = s.testApp.Run([]string{Name, "harvest-files", "--dir", "/tmp", "--s3", "s3://bucket/prefix"})
	assert.EqualError(s.T(), err, "only one of --dir and --s3 may be provided")
}
