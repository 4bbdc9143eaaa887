package steps

import (
	"encoding/json"
	"math"
	"strings"

	"gorm.io/datatypes"

	types "github.com/chatlens/chatlens-backend/internal/domain"
)

// estimateTokens approximates token usage as ceil(runes/4). Cheap and close
// enough for budget accounting.
func estimateTokens(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	runes := []rune(text)
	return int(math.Ceil(float64(len(runes)) / 4.0))
}

func encodeVector(vec []float32) (datatypes.JSON, error) {
	raw, err := json.Marshal(vec)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func decodeVector(raw datatypes.JSON) []float32 {
	if len(raw) == 0 {
		return nil
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil
	}
	return vec
}

// formatTranscript renders messages oldest-first as "sender: content" lines.
// Input is newest-first, matching the repo's list order.
func formatTranscript(newestFirst []*types.EmbeddedMessage) string {
	var b strings.Builder
	for i := len(newestFirst) - 1; i >= 0; i-- {
		m := newestFirst[i]
		sender := strings.TrimSpace(m.Sender)
		if sender == "" {
			sender = "unknown"
		}
		b.WriteString(sender)
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(m.Content))
		b.WriteString("\n")
	}
	return b.String()
}

func normalizeRelationship(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case types.RelationshipBusiness:
		return types.RelationshipBusiness
	case types.RelationshipPersonal:
		return types.RelationshipPersonal
	case types.RelationshipSupport:
		return types.RelationshipSupport
	default:
		return types.RelationshipUnknown
	}
}

// embeddableText returns the trimmed content, or "" when the message is too
// short to index.
func embeddableText(content string) string {
	content = strings.TrimSpace(content)
	if len([]rune(content)) < MinEmbedChars {
		return ""
	}
	return content
}

func chunkBy[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
