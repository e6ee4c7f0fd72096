package util

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// PrintPrettyJSON writes v to stdout as indented JSON.
func PrintPrettyJSON(v any) error {
	return WritePrettyJSON(os.Stdout, v)
}

// WritePrettyJSON writes v to w as indented JSON. Raw JSON messages are
// re-indented as-is so fields the client does not model are kept.
func WritePrettyJSON(w io.Writer, v any) error {
	if raw, ok := v.(json.RawMessage); ok {
		if len(raw) == 0 {
			_, err := fmt.Fprintln(w, "{}")
			return err
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return err
		}
		_, err := fmt.Fprintln(w, buf.String())
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
