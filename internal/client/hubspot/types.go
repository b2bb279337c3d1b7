package hubspot

import (
	"encoding/json"
	"net/http"

	"crmsync/internal/remote"
)

type listResponse struct {
	Results []json.RawMessage `json:"results"`
	Paging  *paging           `json:"paging"`
}

type paging struct {
	Next *pagingNext `json:"next"`
}

type pagingNext struct {
	After string `json:"after"`
}

type object struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
	CreatedAt  string            `json:"createdAt"`
	UpdatedAt  string            `json:"updatedAt"`
}

func parsePage(body []byte) (*remote.Page, error) {
	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &remote.ErrorInfo{
			Type:       remote.ErrorTypeUnknown,
			Message:    "malformed list response: " + err.Error(),
			StatusCode: http.StatusInternalServerError,
		}
	}
	page := &remote.Page{Records: make([]remote.Record, 0, len(resp.Results))}
	for _, raw := range resp.Results {
		var obj object
		if err := json.Unmarshal(raw, &obj); err != nil {
			// A single undecodable result keeps its raw bytes and flows on;
			// the processor decides what to do with an id-less record.
			page.Records = append(page.Records, remote.Record{Raw: raw})
			continue
		}
		page.Records = append(page.Records, remote.Record{
			ExternalID: obj.ID,
			Properties: obj.Properties,
			CreatedAt:  obj.CreatedAt,
			UpdatedAt:  obj.UpdatedAt,
			Raw:        raw,
		})
	}
	if resp.Paging != nil && resp.Paging.Next != nil {
		page.NextCursor = resp.Paging.Next.After
	}
	return page, nil
}
