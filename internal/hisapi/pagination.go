package hisapi

import "github.com/tidwall/gjson"

// pagerHasNext inspects a paged response's "pager" block and reports whether
// the current page is before the last one.
func pagerHasNext(body []byte) bool {
	root := gjson.ParseBytes(body)
	pagerBlock := root.Get("pager")
	if !pagerBlock.Exists() {
		return false
	}
	page := pagerBlock.Get("page").Int()
	pageCount := pagerBlock.Get("pageCount").Int()
	if pageCount == 0 {
		return false
	}
	return page < pageCount
}
