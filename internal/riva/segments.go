package riva

import "strings"

// collectSegments appends the trailing interim segment when one is pending.
func collectSegments(committed []string, lastInterim string) []string {
	segments := append([]string(nil), committed...)
	if interim := cleanSegment(lastInterim); interim != "" {
		segments = appendSegment(segments, interim)
	}
	return segments
}

// appendSegment merges continuation segments so repeated hypotheses do not duplicate text.
func appendSegment(segments []string, transcript string) []string {
	transcript = cleanSegment(transcript)
	if transcript == "" {
		return segments
	}
	if len(segments) == 0 {
		return append(segments, transcript)
	}

	last := cleanSegment(segments[len(segments)-1])
	switch {
	case transcript == last, strings.HasPrefix(last, transcript):
		return segments
	case strings.HasPrefix(transcript, last):
		segments[len(segments)-1] = transcript
		return segments
	default:
		return append(segments, transcript)
	}
}

// isInterimContinuation reports whether current revises previous rather than
// starting a new utterance. Half the shorter hypothesis must match word for word.
func isInterimContinuation(previous, current string) bool {
	previous = cleanSegment(previous)
	current = cleanSegment(current)
	if previous == "" || current == "" || previous == current {
		return true
	}
	if strings.HasPrefix(current, previous) || strings.HasPrefix(previous, current) {
		return true
	}

	prevWords := strings.Fields(previous)
	currWords := strings.Fields(current)
	shorter := min(len(prevWords), len(currWords))
	if shorter == 0 {
		return true
	}
	return commonPrefixWords(prevWords, currWords)*2 >= shorter
}

func commonPrefixWords(left, right []string) int {
	limit := min(len(left), len(right))
	for i := 0; i < limit; i++ {
		if left[i] != right[i] {
			return i
		}
	}
	return limit
}

func cleanSegment(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
