package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"unicode/utf8"

	"github.com/mattn/go-colorable"
	json "github.com/neilotoole/jsoncolor"
)

func BuildURL(settings *Settings, endpoint string) string {
	protocol := "http"
	if settings.UseHTTPS {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s:%d%s", protocol, settings.Host, settings.Port, endpoint)
}

func newJSONEncoder(w io.Writer) *json.Encoder {
	var enc *json.Encoder
	if f, ok := w.(*os.File); ok && json.IsColorTerminal(f) {
		enc = json.NewEncoder(colorable.NewColorable(f)) // needed for Windows
		enc.SetColors(json.DefaultColors())
	} else {
		enc = json.NewEncoder(w)
	}
	enc.SetIndent("", "  ")
	return enc
}

func PrintJSONResponse(resp *http.Response) {
	var data any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		fmt.Println("Failed to parse response:", err)
		return
	}
	if err := newJSONEncoder(os.Stdout).Encode(data); err != nil {
		fmt.Println("Failed to encode response:", err)
	}
}

// PrintRecordResponse prints a raw record: as JSON when it parses as JSON,
// as text when it is valid UTF-8 and as a hex dump otherwise.
func PrintRecordResponse(resp *http.Response) {
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Println("Failed to read response:", err)
		return
	}
	_, _ = colorYellow.Printf("etag %s, %d bytes\n", resp.Header.Get("ETag"), len(payload))
	fmt.Print(formatRecord(payload))
}

func formatRecord(payload []byte) string {
	var data any
	if json.Unmarshal(payload, &data) == nil {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(data); err == nil {
			return buf.String()
		}
	}
	if utf8.Valid(payload) {
		return string(payload) + "\n"
	}
	return fmt.Sprintf("% x\n", payload)
}
