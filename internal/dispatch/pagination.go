package dispatch

import (
	"strconv"

	"sqlgateway/internal/catalog"
	"sqlgateway/internal/gatewayerr"
)

// pageRequest is the resolved, bounds-checked pagination request for one
// dispatched call. The page index is zero-based.
type pageRequest struct {
	Page int
	Size int
}

// resolvePage reads "page" (default 0) and "size" (default
// p.DefaultSize) from values and enforces page >= 0, 0 < size <=
// p.MaxSize, returning a BadRequest for any violation rather than
// silently clamping: size=0, size>maxSize and page<0 are all rejected,
// not coerced.
func resolvePage(values map[string]any, p catalog.PaginationSpec) (pageRequest, error) {
	page := 0
	if raw, ok := values["page"]; ok {
		n, err := strconv.Atoi(toString(raw))
		if err != nil {
			return pageRequest{}, gatewayerr.BadRequest("invalid page parameter")
		}
		page = n
	}
	if page < 0 {
		return pageRequest{}, gatewayerr.BadRequest("page must be >= 0")
	}

	size := p.DefaultSize
	if raw, ok := values["size"]; ok {
		n, err := strconv.Atoi(toString(raw))
		if err != nil {
			return pageRequest{}, gatewayerr.BadRequest("invalid size parameter")
		}
		size = n
	}
	if size <= 0 {
		return pageRequest{}, gatewayerr.BadRequest("size must be > 0")
	}
	if p.MaxSize > 0 && size > p.MaxSize {
		return pageRequest{}, gatewayerr.BadRequest("size exceeds maximum of " + strconv.Itoa(p.MaxSize))
	}

	return pageRequest{Page: page, Size: size}, nil
}

func (p pageRequest) offset() int {
	return p.Page * p.Size
}

// pageEnvelope is the paginated response shape.
type pageEnvelope struct {
	Data          []map[string]any `json:"data"`
	Page          int              `json:"page"`
	Size          int              `json:"size"`
	TotalElements int64            `json:"totalElements"`
	TotalPages    int64            `json:"totalPages"`
	First         bool             `json:"first"`
	Last          bool             `json:"last"`
}

func buildPageEnvelope(rows []map[string]any, p pageRequest, total int64) pageEnvelope {
	var totalPages int64
	if p.Size > 0 {
		totalPages = (total + int64(p.Size) - 1) / int64(p.Size)
	}
	return pageEnvelope{
		Data:          rows,
		Page:          p.Page,
		Size:          p.Size,
		TotalElements: total,
		TotalPages:    totalPages,
		First:         p.Page == 0,
		Last:          int64(p.Page+1)*int64(p.Size) >= total,
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
