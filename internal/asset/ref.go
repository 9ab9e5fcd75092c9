// Package asset implements the binary asset handle used for product images
// and the disks the reference backend stores uploads on.
package asset

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Ref is an opaque handle to a binary asset. It wraps either raw bytes that
// still have to be uploaded or a URL that is already fetchable.
type Ref struct {
	url        string
	data       []byte
	onProgress func(pct int)
}

func FromURL(url string) Ref { return Ref{url: url} }

func FromBytes(b []byte) Ref {
	return Ref{data: bytes.Clone(b)}
}

// WithUploadProgress returns a copy of r that reports upload progress as a
// percentage in [0, 100].
func (r Ref) WithUploadProgress(fn func(pct int)) Ref {
	r.onProgress = fn
	return r
}

func (r Ref) IsZero() bool { return r.url == "" && r.data == nil }

// Pending reports whether the asset only exists locally and must be uploaded
// before the gateway can reference it.
func (r Ref) Pending() bool { return r.url == "" && r.data != nil }

func (r Ref) Size() int { return len(r.data) }

// DirectURL is a URL a renderer can display without another round trip.
// Byte-backed refs resolve to a data: URL.
func (r Ref) DirectURL() string {
	if r.url != "" {
		return r.url
	}
	if r.data == nil {
		return ""
	}
	return "data:" + http.DetectContentType(r.data) + ";base64," + base64.StdEncoding.EncodeToString(r.data)
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Bytes returns the asset content, downloading it when r wraps a URL.
func (r Ref) Bytes(ctx context.Context) ([]byte, error) {
	if r.data != nil {
		return bytes.Clone(r.data), nil
	}
	if r.url == "" {
		return nil, errors.New("asset: empty ref")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("asset: create request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("asset: get %s: %w", r.url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("asset: get %s: status %d", r.url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// ContentType sniffs the content type of a byte-backed ref.
func (r Ref) ContentType() string {
	if r.data == nil {
		return "application/octet-stream"
	}
	return http.DetectContentType(r.data)
}

// UploadReader streams the bytes of r, reporting progress to the registered
// callback. 0 is reported before the first read and 100 once fully read.
func (r Ref) UploadReader() io.Reader {
	if r.onProgress == nil {
		return bytes.NewReader(r.data)
	}
	r.onProgress(0)
	return &progressReader{r: bytes.NewReader(r.data), total: len(r.data), fn: r.onProgress, last: 0}
}

// Uploaded returns the URL-backed ref that replaces r after a successful upload.
func (r Ref) Uploaded(url string) Ref {
	if r.onProgress != nil {
		r.onProgress(100)
	}
	return Ref{url: url}
}

type progressReader struct {
	r     *bytes.Reader
	total int
	read  int
	last  int
	fn    func(int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += n
	if p.total > 0 {
		pct := p.read * 100 / p.total
		if pct > p.last {
			p.last = pct
			p.fn(pct)
		}
	}
	return n, err
}

func (r Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.url)
}

func (r *Ref) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*r = FromURL(s)
	return nil
}
