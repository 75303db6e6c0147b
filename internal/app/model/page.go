package model

// DefaultPageSize is used when a caller asks for a non-positive page size.
const DefaultPageSize = 5

// Page is one slice of the store's ordered output.
type Page struct {
	Items      []LinkRecord
	Number     int
	Size       int
	TotalPages int
	Total      int
}

// HasPrev reports whether a previous page exists.
func (p Page) HasPrev() bool { return p.Number > 1 }

// HasNext reports whether a following page exists.
func (p Page) HasNext() bool { return p.Number < p.TotalPages }

// IDs returns the short ids on the page in display order.
func (p Page) IDs() []string {
	ids := make([]string, len(p.Items))
	for i, r := range p.Items {
		ids[i] = r.ShortID
	}
	return ids
}

// Paginate slices records into 1-based pages. Out-of-range page numbers are
// clamped so the result always points at an existing page.
func Paginate(records []LinkRecord, number, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(records)
	pages := (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	if number < 1 {
		number = 1
	}
	if number > pages {
		number = pages
	}

	start := (number - 1) * size
	end := start + size
	if end > total {
		end = total
	}

	items := make([]LinkRecord, end-start)
	copy(items, records[start:end])

	return Page{
		Items:      items,
		Number:     number,
		Size:       size,
		TotalPages: pages,
		Total:      total,
	}
}
