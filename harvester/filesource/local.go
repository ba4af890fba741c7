package filesource

import (
	"context"
	"io/ioutil"
	"path/filepath"

	"github.com/CMSgov/xc-harvester/harvester/oai"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// NewLocal harvests the .xml files of dir.
func NewLocal(dir string, logger logrus.FieldLogger) oai.PageSource {
	return &pager{store: localStore{dir: dir}, log: logger}
}

type localStore struct {
	dir string
}

func (s localStore) list(_ context.Context) ([]string, error) {
	entries, err := ioutil.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read harvest directory %s", s.dir)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (s localStore) read(_ context.Context, name string) ([]byte, error) {
	return ioutil.ReadFile(filepath.Join(s.dir, name))
}

func (s localStore) describe(name string) string {
	if name == "" {
		return s.dir
	}
	return filepath.Join(s.dir, name)
}
