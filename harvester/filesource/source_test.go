package filesource

import (
	"fmt"
	"strings"
)

func pageXML(ids []string, token string, size int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<OAI-PMH xmlns="http://www.openarchives.org/OAI/2.0/">
  <request verb="ListRecords" metadataPrefix="marc21">http://oai.example.org/oai</request>
  <ListRecords>`)
	for _, id := range ids {
		fmt.Fprintf(&b, `
    <record><header><identifier>%s</identifier><datestamp>2020-01-01</datestamp></header>
      <metadata><record xmlns="http://www.loc.gov/MARC21/slim"><leader>00000nam a2200000 a 4500</leader></record></metadata>
    </record>`, id)
	}
	if token != "" || size > 0 {
		fmt.Fprintf(&b, `
    <resumptionToken completeListSize="%d">%s</resumptionToken>`, size, token)
	}
	b.WriteString(`
  </ListRecords>
</OAI-PMH>`)
	return b.String()
}
