package embedded

import (
	_ "embed"
)

// Embed the default recognizer vocabulary
//
// The file maps semantic labels to token ids, the same shape the inference
// process reads. Id 0 is the CTC blank.
//
//go:embed data/vocab.json
var VocabJSON []byte
