package site

import (
	"errors"
	"strings"
)

type FaviconType int

const (
	AppleTouch FaviconType = iota
	Favicon16
	Favicon32
)

var ErrUnknownFavicon = errors.New("unknown favicon type")

var faviconTypes = []FaviconType{AppleTouch, Favicon16, Favicon32}

func (f FaviconType) String() string {
	switch f {
	case AppleTouch:
		return "apple-touch"
	case Favicon16:
		return "favicon16"
	case Favicon32:
		return "favicon32"
	}
	return "unknown"
}

// FileName is the file of the favicon relative to the public directory.
func (f FaviconType) FileName() string {
	switch f {
	case AppleTouch:
		return "favicons/apple-touch-icon.png"
	case Favicon16:
		return "favicons/favicon-16x16.png"
	case Favicon32:
		return "favicons/favicon-32x32.png"
	}
	return ""
}

// ParseFaviconType matches s case-insensitively by substring, checked in the order apple, favicon16, favicon32.
func ParseFaviconType(s string) (FaviconType, error) {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "apple"):
		return AppleTouch, nil
	case strings.Contains(s, "favicon16"):
		return Favicon16, nil
	case strings.Contains(s, "favicon32"):
		return Favicon32, nil
	}
	return 0, ErrUnknownFavicon
}

// faviconQuery returns the text between the first "t=" of the raw query and the following '&'.
func faviconQuery(rawQuery string) (string, bool) {
	_, val, found := strings.Cut(rawQuery, "t=")
	if !found {
		return "", false
	}
	val, _, _ = strings.Cut(val, "&")
	return val, true
}
