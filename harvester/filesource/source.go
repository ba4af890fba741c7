package filesource

import (
	"bytes"
	"context"
	"io/ioutil"
	"strconv"

	"github.com/CMSgov/xc-harvester/harvester/oai"
	"github.com/dimchansky/utfbom"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// store lists and reads the files backing a source.
type store interface {
	list(ctx context.Context) ([]string, error)
	read(ctx context.Context, name string) ([]byte, error)
	describe(name string) string
}

// pager serves the files of a store as ListRecords pages. The resumption token
// handed to the caller is the index of the next file; tokens inside the files
// are ignored.
type pager struct {
	store store
	log   logrus.FieldLogger
	files []string
}

var _ oai.PageSource = &pager{}

func (p *pager) First(ctx context.Context, _ oai.Request) (*oai.Page, error) {
	files, err := p.store.list(ctx)
	if err != nil {
		return nil, err
	}
	var harvestable []string
	for _, f := range files {
		if isHarvestFile(f) {
			harvestable = append(harvestable, f)
		}
	}
	Sort(harvestable)
	p.files = harvestable

	if len(p.files) == 0 {
		return &oai.Page{RequestURL: p.store.describe(""), NoRecords: true}, nil
	}
	p.log.Infof("Harvesting %d files", len(p.files))
	return p.page(ctx, 0)
}

func (p *pager) Next(ctx context.Context, token string) (*oai.Page, error) {
	i, err := strconv.Atoi(token)
	if err != nil || i < 0 || i >= len(p.files) {
		return nil, errors.Errorf("invalid file resumption token %q", token)
	}
	return p.page(ctx, i)
}

func (p *pager) page(ctx context.Context, i int) (*oai.Page, error) {
	name := p.files[i]
	described := p.store.describe(name)

	data, err := p.store.read(ctx, name)
	if err != nil {
		return nil, &oai.FetchError{RequestURL: described, Err: err}
	}
	data, err = ioutil.ReadAll(utfbom.SkipOnly(bytes.NewReader(data)))
	if err != nil {
		return nil, &oai.FetchError{RequestURL: described, Err: err}
	}

	page, err := oai.Parse(data, p.log.WithField("file", described))
	if err != nil {
		return nil, err
	}
	page.RequestURL = described

	size := -1
	if page.Token != nil {
		size = page.Token.CompleteListSize
	}
	page.Token = nil
	if i+1 < len(p.files) {
		page.Token = &oai.ResumptionToken{Value: strconv.Itoa(i + 1), CompleteListSize: size}
	}
	return page, nil
}
