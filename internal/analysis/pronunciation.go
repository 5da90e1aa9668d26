package analysis

import (
	"encoding/base64"
	"errors"
	"log"
)

// AudioChunk is one captured client audio segment submitted for assessment.
type AudioChunk struct {
	Speaker     string `json:"type"`
	AudioBase64 string `json:"data"`
}

var ErrNoAudio = errors.New("no user audio to assess")

// PronunciationAssessor scores the user's captured audio. It currently
// returns fixed placeholder scores: real pronunciation assessment against the
// speech service is a known gap, and the Stub flag on the result makes that
// visible to clients instead of passing placeholder numbers off as real.
type PronunciationAssessor struct{}

func NewPronunciationAssessor() *PronunciationAssessor {
	return &PronunciationAssessor{}
}

// Assess combines the user-attributed chunks and returns placeholder scores.
// Chunks attributed to the assistant are ignored, as is undecodable audio.
func (a *PronunciationAssessor) Assess(chunks []AudioChunk, referenceText string) (*PronunciationResult, error) {
	var total int
	for _, chunk := range chunks {
		if chunk.Speaker != "user" {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(chunk.AudioBase64)
		if err != nil {
			log.Printf("analysis: skipping undecodable audio chunk: %v", err)
			continue
		}
		total += len(decoded)
	}
	if total == 0 {
		return nil, ErrNoAudio
	}

	log.Printf("analysis: pronunciation stub assessed %d bytes of user audio", total)
	return &PronunciationResult{
		PronunciationScore: 82,
		AccuracyScore:      85,
		FluencyScore:       80,
		CompletenessScore:  90,
		ProsodyScore:       78,
		Stub:               true,
	}, nil
}
