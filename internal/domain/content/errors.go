package content

import "errors"

var (
	errNoScraper = errors.New("url scraping is not configured")
	errNoOCR     = errors.New("image text detection is not configured")
)
