package ocr

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/textract/types"
)

// blocksToText joins the text of LINE blocks, one line each, in the order
// Textract returned them.
func blocksToText(blocks []types.Block) string {
	var lines []string
	for _, b := range blocks {
		if b.BlockType == types.BlockTypeLine && b.Text != nil && *b.Text != "" {
			lines = append(lines, *b.Text)
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
