// Copyright 2025-2026 LittleRpg Community

// Package mcfmt converts Minecraft legacy formatting codes to structured
// text components and back to tellraw JSON.
package mcfmt

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Marker is the section-sign character that prefixes every formatting code.
const Marker = '§'

// Segment is one run of text with uniform styling, matching the shape of a
// Minecraft tellraw text component.
type Segment struct {
	Text          string `json:"text"`
	Color         string `json:"color,omitempty"`
	Bold          bool   `json:"bold,omitempty"`
	Strikethrough bool   `json:"strikethrough,omitempty"`
	Underline     bool   `json:"underlined,omitempty"`
	Italic        bool   `json:"italic,omitempty"`
}

// colors maps legacy color codes to tellraw color names.
var colors = map[rune]string{
	'0': "black",
	'1': "dark_blue",
	'2': "dark_green",
	'3': "dark_aqua",
	'4': "dark_red",
	'5': "dark_purple",
	'6': "gold",
	'7': "gray",
	'8': "dark_gray",
	'9': "blue",
	'a': "green",
	'b': "aqua",
	'c': "red",
	'd': "light_purple",
	'e': "yellow",
	'f': "white",
}

var codeRe = regexp.MustCompile(`§[a-zA-Z0-9]`)

// Decode scans raw left-to-right and splits it into styled segments. Color
// codes start a new segment with the new color, style codes (l/m/n/o) set
// the matching flag, and r resets color and all flags. Unrecognized codes
// are dropped without emitting text. Pending text is flushed before every
// recognized code and at end of input; a dangling marker with no following
// character is dropped.
func Decode(raw string) []Segment {
	var (
		segments []Segment
		text     strings.Builder
		cur      Segment
		primed   bool
	)

	flush := func() {
		if text.Len() == 0 {
			return
		}
		seg := cur
		seg.Text = text.String()
		segments = append(segments, seg)
		text.Reset()
	}

	for _, ch := range raw {
		if ch == Marker {
			// Consecutive markers collapse: the last one wins.
			primed = true
			continue
		}
		if !primed {
			text.WriteRune(ch)
			continue
		}
		primed = false

		if color, ok := colors[ch]; ok {
			flush()
			cur.Color = color
			continue
		}
		switch ch {
		case 'l':
			flush()
			cur.Bold = true
		case 'm':
			flush()
			cur.Strikethrough = true
		case 'n':
			flush()
			cur.Underline = true
		case 'o':
			flush()
			cur.Italic = true
		case 'r':
			flush()
			cur = Segment{}
		}
		// Anything else is an unknown code and is silently dropped.
	}
	flush()
	return segments
}

// Tellraw encodes segments as a tellraw JSON component array. The encoding
// is structural; styling is never folded back into marker codes.
func Tellraw(segments []Segment) (string, error) {
	if len(segments) == 0 {
		segments = []Segment{}
	}
	data, err := json.Marshal(segments)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Strip removes every marker-code pair from raw, leaving plain text.
func Strip(raw string) string {
	return codeRe.ReplaceAllString(raw, "")
}

// Text returns the concatenated plain text of segments in order.
func Text(segments []Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(seg.Text)
	}
	return b.String()
}
