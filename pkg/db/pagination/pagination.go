package pagination

import (
	"encoding/base64"
	"encoding/json"
)

const (
	DefaultLimit = 20
	MaxLimit     = 250
)

type Pagination struct {
	Cursor string `form:"cursor"`
	Limit  int    `form:"limit,default=20" binding:"gte=0,lte=250"`
}

// Normalize clamps the requested page size into [1, MaxLimit].
func (p Pagination) Normalize() Pagination {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Cursor points just past the last row of the previous page. Rows are ordered by id descending.
type Cursor struct {
	ID string `json:"id,omitempty"`
}

type PageInfo struct {
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return base64.URLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}

	return &cursor, nil
}

// CursorID decodes an opaque cursor into the row id it carries; an empty cursor yields "".
func CursorID(data string) (string, error) {
	if data == "" {
		return "", nil
	}
	c, err := DecodeCursor(data)
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

// BuildCursorPageInfo expects data fetched with limit+1 rows and returns the trimmed page with its page info.
func BuildCursorPageInfo[T any](data []*T, limit int, extractID func(*T) string) ([]*T, *PageInfo) {
	if len(data) == 0 {
		return data, &PageInfo{HasMore: false}
	}

	hasMore := false
	if len(data) > limit {
		hasMore = true
		data = data[:limit]
	}

	info := &PageInfo{HasMore: hasMore}
	if hasMore {
		next, err := EncodeCursor(Cursor{ID: extractID(data[len(data)-1])})
		if err == nil {
			info.NextCursor = next
		}
	}

	return data, info
}
