package document

import "github.com/matzehuels/pagewise/pkg/render"

// PageInfo summarises one page for listings.
type PageInfo struct {
	Index    int            `json:"index"`
	Title    string         `json:"title"`
	Error    bool           `json:"error,omitempty"`
	HasImage bool           `json:"has_image"`
	Status   render.Outcome `json:"status,omitempty"`
}

// Pages lists the pages of snap. If res is the pass that produced snap,
// each page also reports how that pass handled it.
func Pages(snap *render.Snapshot, res *render.Result) []PageInfo {
	pages := make([]PageInfo, snap.PageCount())
	for i := range pages {
		pages[i].Index = i
		img := snap.Image(i)
		if img != nil {
			pages[i].Title = img.Title
			pages[i].Error = img.Error
			pages[i].HasImage = img.HasImage()
		}
		if res != nil {
			_, pages[i].Status = res.Image(i)
		}
	}
	return pages
}
