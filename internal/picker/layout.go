package picker

import "unicode/utf8"

const ellipsis = "..."

// visibleRange computes the start and end indices for a scrollable list
// so that the cursor row stays on screen. items[start:end] is displayed.
func visibleRange(rows, cursor, total int) (start, end int) {
	rows = max(rows, 1)
	if total <= rows {
		return 0, total
	}

	if cursor >= rows {
		start = cursor - rows + 1
	}

	end = min(start+rows, total)
	return start, end
}

// truncate shortens text to width runes, ending in an ellipsis when cut.
func truncate(text string, width int) string {
	if width <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= width {
		return text
	}

	// Not enough room for any text + ellipsis
	if width <= len(ellipsis) {
		return ellipsis[:width]
	}

	runes := []rune(text)
	return string(runes[:width-len(ellipsis)]) + ellipsis
}
