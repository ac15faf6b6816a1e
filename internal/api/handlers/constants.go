package handlers

const (
	// Download name for MIDI responses
	midiFilename    = "converted.mid"
	midiContentType = "audio/midi"

	// Page size for conversion history
	recentLimitParam = "limit"
)
