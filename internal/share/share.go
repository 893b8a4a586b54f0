// Package share builds the connection details for a running board and
// renders them as a QR code.
package share

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"
)

// Info contains the information encoded in the QR code.
type Info struct {
	HTTP      string `json:"http"`
	WebSocket string `json:"ws"`
	Messages  string `json:"messages"`
	Version   string `json:"version,omitempty"`
}

// Generator builds share info and QR codes for a board.
type Generator struct {
	host        string
	port        int
	version     string
	externalURL string // Optional: public base URL, overrides host:port
}

// NewGenerator creates a new share generator for a board listening on host:port.
func NewGenerator(host string, port int, version string) *Generator {
	return &Generator{
		host:    host,
		port:    port,
		version: version,
	}
}

// SetExternalURL sets the public base URL for reverse proxy or tunnel
// setups. When set it is used instead of the local host:port.
func (g *Generator) SetExternalURL(url string) {
	g.externalURL = strings.TrimRight(url, "/")
}

// Info returns the board URLs.
func (g *Generator) Info() *Info {
	httpURL := g.externalURL
	if httpURL == "" {
		httpURL = "http://" + net.JoinHostPort(displayHost(g.host), strconv.Itoa(g.port))
	}

	// ws:// mirrors http:// and wss:// mirrors https://
	wsURL := "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"

	return &Info{
		HTTP:      httpURL,
		WebSocket: wsURL,
		Messages:  httpURL + "/api/messages",
		Version:   g.version,
	}
}

// displayHost maps wildcard bind addresses to something a client can dial.
func displayHost(host string) string {
	switch host {
	case "", "0.0.0.0", "::":
		return "localhost"
	default:
		return host
	}
}

// GenerateJSON returns the share info as JSON.
func (g *Generator) GenerateJSON() (string, error) {
	data, err := json.Marshal(g.Info())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GenerateTerminal generates a QR code of the WebSocket URL for terminal display.
func (g *Generator) GenerateTerminal() (string, error) {
	qr, err := qrcode.New(g.Info().WebSocket, qrcode.Medium)
	if err != nil {
		return "", err
	}
	return qr.ToSmallString(false), nil
}

// GeneratePNG generates a PNG image of the share info QR code.
func (g *Generator) GeneratePNG(size int) ([]byte, error) {
	jsonData, err := g.GenerateJSON()
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(jsonData, qrcode.Medium, size)
}

// Print writes the URLs and the QR code to w.
func (g *Generator) Print(w io.Writer) error {
	info := g.Info()
	qrStr, err := g.GenerateTerminal()
	if err != nil {
		return fmt.Errorf("failed to generate QR code: %w", err)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  HTTP:      %s\n", info.HTTP)
	fmt.Fprintf(w, "  WebSocket: %s\n", info.WebSocket)
	fmt.Fprintln(w)

	for _, line := range strings.Split(qrStr, "\n") {
		if line != "" {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}

	fmt.Fprintln(w)
	return nil
}
