package tui

import (
	"github.com/atotto/clipboard"

	chaterrors "github.com/abdul-hamid-achik/claudette/internal/errors"
)

// clipboardWriter is replaced in tests
var clipboardWriter = clipboard.WriteAll

// copyToClipboard copies text to the system clipboard
func copyToClipboard(text string) error {
	if err := clipboardWriter(text); err != nil {
		return chaterrors.ClipboardUnavailable(err)
	}
	return nil
}
