package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/tessera/internal/models"
)

const maxImageSize = 10 << 20 // 10 MB

var (
	imageExtensions = map[string]bool{
		".png": true, ".jpg": true, ".jpeg": true,
		".gif": true, ".webp": true, ".svg": true,
	}

	mimeToExt = map[string]string{
		"image/png":     ".png",
		"image/jpeg":    ".jpg",
		"image/gif":     ".gif",
		"image/webp":    ".webp",
		"image/svg+xml": ".svg",
	}

	safeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

type attachResult struct {
	URL  string       `json:"url"`
	Card *models.Card `json:"card"`
}

func (s *Server) attachImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	canvasID, err := req.RequireString("canvas_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.svc.GetCanvas(ctx, canvasID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var (
		data        []byte
		detectedExt string
	)
	if strings.HasPrefix(rawURL, "data:") {
		data, detectedExt, err = decodeDataURI(rawURL)
	} else {
		data, detectedExt, err = fetchHTTP(ctx, rawURL)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(data) > maxImageSize {
		return mcp.NewToolResultError(fmt.Sprintf("file too large: %d bytes (max %d)", len(data), maxImageSize)), nil
	}

	filename := req.GetString("filename", "")
	if filename == "" {
		filename = filenameFromURL(rawURL, detectedExt)
	}
	filename = sanitizeFilename(filename)

	ext := strings.ToLower(filepath.Ext(filename))
	if !imageExtensions[ext] {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported file extension: %s (allowed: png, jpg, jpeg, gif, webp, svg)", ext)), nil
	}
	if err := validateMagicBytes(data, ext); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	savePath := path.Join("attachments", filename)
	if _, statErr := s.store.Stat(savePath); statErr == nil {
		return mcp.NewToolResultError(fmt.Sprintf("file already exists: %s", savePath)), nil
	}
	if err := s.store.Write(savePath, data); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save attachment: %v", err)), nil
	}

	urlPath := "/attachments/" + filename
	title := req.GetString("title", filename)
	card, err := s.svc.CreateCard(ctx, canvasID, models.NewCard{
		Type:    models.CardImage,
		Title:   title,
		Content: fmt.Sprintf("![%s](%s)", title, urlPath),
		X:       req.GetFloat("x", 0),
		Y:       req.GetFloat("y", 0),
	})
	if err != nil {
		_ = s.store.Delete(savePath)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(attachResult{URL: urlPath, Card: card})
}

// decodeDataURI parses a data:[<mediatype>][;base64],<data> URI.
func decodeDataURI(uri string) ([]byte, string, error) {
	rest := strings.TrimPrefix(uri, "data:")
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}
	if !strings.Contains(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}

	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	ext := mimeToExt[mime]
	if ext == "" {
		return nil, "", fmt.Errorf("unsupported MIME type in data URI: %s", mime)
	}
	return data, ext, nil
}

// fetchHTTP downloads an image from an HTTP/HTTPS URL with security checks.
func fetchHTTP(ctx context.Context, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme: %s (only http/https)", parsed.Scheme)
	}
	if err := checkBlockedHost(parsed.Hostname()); err != nil {
		return nil, "", err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return checkBlockedHost(req.URL.Hostname())
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > maxImageSize {
		return nil, "", fmt.Errorf("file too large: exceeds %d bytes", maxImageSize)
	}

	ct := resp.Header.Get("Content-Type")
	return data, mimeToExt[strings.Split(ct, ";")[0]], nil
}

// checkBlockedHost rejects loopback and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ip = ips[0]
	}

	if ip.IsLoopback() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}

// filenameFromURL takes the last path element of the URL, falling back to a
// UUID with the detected extension.
func filenameFromURL(rawURL string, fallbackExt string) string {
	if !strings.HasPrefix(rawURL, "data:") {
		if parsed, err := url.Parse(rawURL); err == nil {
			base := path.Base(parsed.Path)
			if base != "" && base != "." && base != "/" && strings.Contains(base, ".") {
				return base
			}
		}
	}
	ext := fallbackExt
	if ext == "" {
		ext = ".bin"
	}
	return uuid.NewString() + ext
}

// sanitizeFilename strips path separators and unsafe characters.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = safeFilenameRe.ReplaceAllString(name, "_")
	if name == "" || name == "." || strings.HasPrefix(name, ".") {
		name = uuid.NewString() + name
	}
	return name
}

// validateMagicBytes verifies file content matches the declared extension.
func validateMagicBytes(data []byte, ext string) error {
	if ext == ".svg" {
		prefix := data
		if len(prefix) > 1024 {
			prefix = prefix[:1024]
		}
		if !bytes.Contains(prefix, []byte("<svg")) {
			return fmt.Errorf("content does not appear to be a valid SVG (missing <svg tag)")
		}
		return nil
	}

	detected := http.DetectContentType(data)
	got := mimeToExt[strings.Split(detected, ";")[0]]
	switch ext {
	case ".jpg", ".jpeg":
		if got != ".jpg" {
			return fmt.Errorf("content does not match extension %s (detected: %s)", ext, detected)
		}
	default:
		if got != ext {
			return fmt.Errorf("content does not match extension %s (detected: %s)", ext, detected)
		}
	}
	return nil
}
