package notion

import (
	"encoding/json"
	"time"
)

type richText struct {
	PlainText string  `json:"plain_text"`
	Href      *string `json:"href"`
	Text      *struct {
		Link *struct {
			URL string `json:"url"`
		} `json:"link"`
	} `json:"text"`
	Annotations struct {
		Bold          bool `json:"bold"`
		Italic        bool `json:"italic"`
		Strikethrough bool `json:"strikethrough"`
		Code          bool `json:"code"`
	} `json:"annotations"`
}

type option struct {
	Name string `json:"name"`
}

type dateValue struct {
	Start string `json:"start"`
}

type property struct {
	Type     string     `json:"type"`
	Title    []richText `json:"title"`
	RichText []richText `json:"rich_text"`
	URL      *string    `json:"url"`
	Select   *option    `json:"select"`
	Status   *option    `json:"status"`
	Date     *dateValue `json:"date"`
}

type page struct {
	ID             string              `json:"id"`
	URL            string              `json:"url"`
	LastEditedTime time.Time           `json:"last_edited_time"`
	Archived       bool                `json:"archived"`
	Properties     map[string]property `json:"properties"`
}

type queryResponse struct {
	Results    []page  `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

type block struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	HasChildren bool   `json:"has_children"`
	payload     json.RawMessage
}

// UnmarshalJSON keeps the object stored under the block's type key.
func (b *block) UnmarshalJSON(data []byte) error {
	var head struct {
		ID          string `json:"id"`
		Type        string `json:"type"`
		HasChildren bool   `json:"has_children"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	b.ID, b.Type, b.HasChildren = head.ID, head.Type, head.HasChildren
	b.payload = fields[head.Type]
	return nil
}

type blockList struct {
	Results    []block `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

type textPayload struct {
	RichText []richText `json:"rich_text"`
	Language string     `json:"language"`
}

type filePayload struct {
	Type     string     `json:"type"`
	Name     string     `json:"name"`
	Caption  []richText `json:"caption"`
	External *struct {
		URL string `json:"url"`
	} `json:"external"`
	File *struct {
		URL        string    `json:"url"`
		ExpiryTime time.Time `json:"expiry_time"`
	} `json:"file"`
}

type bookmarkPayload struct {
	URL     string     `json:"url"`
	Caption []richText `json:"caption"`
}
