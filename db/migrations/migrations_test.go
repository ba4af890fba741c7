package migrations

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/CMSgov/xc-harvester/aggregation/matchpoints"
)

var migrationName = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.(up|down)\.sql$`)

// These tests only inspect the migration files. Applying them is covered by
// the migrate command against a live database.
type MigrationTestSuite struct {
	suite.Suite

	dir      string
	up       map[int]string
	down     map[int]string
	upSQL    string
	versions []int
}

func (s *MigrationTestSuite) SetupSuite() {
	s.dir = "harvester"
	s.up, s.down = make(map[int]string), make(map[int]string)

	entries, err := os.ReadDir(s.dir)
	require.NoError(s.T(), err)

	var sb strings.Builder
	for _, entry := range entries {
		m := migrationName.FindStringSubmatch(entry.Name())
		if m == nil {
			assert.Failf(s.T(), "unexpected file", "%s does not follow <version>_<name>.<up|down>.sql", entry.Name())
			continue
		}
		version, err := strconv.Atoi(m[1])
		require.NoError(s.T(), err)

		if m[3] == "up" {
			s.up[version] = entry.Name()
			s.versions = append(s.versions, version)
			b, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
			require.NoError(s.T(), err)
			sb.Write(b)
		} else {
			s.down[version] = entry.Name()
		}
	}
	sort.Ints(s.versions)
	s.upSQL = sb.String()
}

func TestMigrationTestSuite(t *testing.T) {
	suite.Run(t, new(MigrationTestSuite))
}

func (s *MigrationTestSuite) TestVersionsAreContiguous() {
	require.NotEmpty(s.T(), s.versions)
	for i, v := range s.versions {
		assert.Equal(s.T(), i+1, v, "migration versions must start at 1 and have no gaps")
	}
}

func (s *MigrationTestSuite) TestEveryUpHasDown() {
	assert.Equal(s.T(), len(s.up), len(s.down))
	for v, name := range s.up {
		down, ok := s.down[v]
		if assert.True(s.T(), ok, "%s has no down migration", name) {
			assert.Equal(s.T(), strings.TrimSuffix(name, ".up.sql"), strings.TrimSuffix(down, ".down.sql"))
		}
	}
}

func (s *MigrationTestSuite) TestHarvestTables() {
	tables := []string{
		"providers",
		"harvest_schedules",
		"harvest_schedule_steps",
		"harvests",
		"sets",
		"records",
		"record_sets",
		"processing_directives",
		"que_jobs",
	}
	for _, table := range tables {
		s.T().Run(table, func(t *testing.T) {
			assert.Regexp(t, fmt.Sprintf(`CREATE TABLE (IF NOT EXISTS )?"?%s"? \(`, table), s.upSQL)
		})
	}
}

func (s *MigrationTestSuite) TestMatchPointTables() {
	for _, f := range matchpoints.Fields {
		s.T().Run(string(f), func(t *testing.T) {
			assert.Contains(t, s.upSQL, fmt.Sprintf(`CREATE TABLE "%s"`, f.Table()))
		})
	}
}
