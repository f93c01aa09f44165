// Package catalog provides the paginated product-catalog client and the
// batched query engine built on top of it.
package catalog

import (
	gostac "github.com/planetlabs/go-stac"

	"github.com/rkm/granulesync/pkg/daterange"
)

// Page is one page of catalog results. NextToken is empty on the last page.
type Page struct {
	IDs       []string
	NextToken string
}

// Batch groups the identifiers retrieved for one sub-range of a batched query.
type Batch struct {
	Index int
	Range daterange.Range
	IDs   []string
}

// featureCollection is the catalog's search response body: a GeoJSON
// FeatureCollection of STAC items, where each item ID is a product identifier.
type featureCollection struct {
	Type           string         `json:"type"`
	Features       []*gostac.Item `json:"features"`
	NumberMatched  *int           `json:"numberMatched,omitempty"`
	NumberReturned int            `json:"numberReturned"`
}

func (fc *featureCollection) identifiers() []string {
	ids := make([]string, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f != nil && f.Id != "" {
			ids = append(ids, f.Id)
		}
	}
	return ids
}
