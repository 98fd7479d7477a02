// Package httpclient implements the fetch/download contract of spec §4.4: a
// single long-lived *http.Client, bodies read into pooled buffers, gzip
// transparently decoded, and every short read or oversize body turned into a
// typed transport error the mirror strategy can act on.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/zvmhq/zvm/internal/integrity"
	"github.com/zvmhq/zvm/internal/pool"
	"github.com/zvmhq/zvm/internal/zvmerr"
)

// Client wraps a stdlib *http.Client configured for the install pipeline:
// redirects are followed but capped, and no cookie jar or keepalive tuning
// beyond the transport defaults is needed — connection reuse is not required
// by spec §4.4.
type Client struct {
	http *http.Client
}

const maxRedirects = 10

// New constructs a Client with a bounded redirect policy. Transport-level
// compression is disabled so Content-Encoding: gzip bodies reach Fetch and
// DownloadFile exactly as the server sent them, and this package's own
// bounded gzip decoding (spec §4.4) is what actually runs, not net/http's.
func New() *Client {
	return &Client{
		http: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				DisableCompression: true,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return zvmerr.HTTPRequestFailed.New("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
	}
}

// Fetch performs a single GET into op's response buffer, transparently
// gzip-decoding when the server set Content-Encoding: gzip and the body
// starts with the gzip magic bytes, per spec §4.4.
// The returned slice aliases op's buffer and is only valid until op is
// released or reused.
func (c *Client) Fetch(ctx context.Context, uri string, headers map[string]string, op *pool.HTTPOperation, gzipScratch *pool.HTTPOperation) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, zvmerr.HTTPRequestFailed.Wrap(err, "building request for %s", uri)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, zvmerr.HTTPRequestFailed.Wrap(err, "GET %s", uri)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, zvmerr.HTTPRequestFailed.New("GET %s: status %d", uri, resp.StatusCode)
	}

	n, err := readBounded(resp.Body, op.Buffer())
	if err != nil {
		return nil, err
	}
	op.SetLen(n)
	body := op.Bytes()

	if resp.Header.Get("Content-Encoding") == "gzip" && looksGzip(body) {
		if gzipScratch == nil {
			return nil, zvmerr.HTTPRequestFailed.New("GET %s: gzip body but no scratch buffer provided", uri)
		}
		decoded, err := inflate(body, gzipScratch.Buffer())
		if err != nil {
			return nil, zvmerr.HTTPRequestFailed.Wrap(err, "GET %s: inflating gzip body", uri)
		}
		gzipScratch.SetLen(len(decoded))
		return gzipScratch.Bytes(), nil
	}
	return body, nil
}

func looksGzip(b []byte) bool { return len(b) >= 2 && b[0] == 0x1F && b[1] == 0x8B }

// readBounded reads r fully into buf, failing with ResponseTooLarge if the
// body exceeds len(buf) rather than silently truncating it.
func readBounded(r io.Reader, buf []byte) (int, error) {
	total := 0
	for {
		if total == len(buf) {
			// Confirm the stream truly has more bytes before declaring it
			// oversize, so an exact-fit body does not false-positive.
			var probe [1]byte
			n, _ := r.Read(probe[:])
			if n > 0 {
				return 0, zvmerr.ResponseTooLarge.New("body exceeds buffer of %d bytes", len(buf))
			}
			return total, nil
		}
		n, err := r.Read(buf[total:])
		total += n
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return 0, zvmerr.HTTPRequestFailed.Wrap(err, "reading response body")
		}
	}
}

// inflate decompresses a gzip body into dst, using a 32 KiB window per spec
// §4.4, failing with ResponseTooLarge if the decoded output would not fit.
func inflate(src []byte, dst []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("gzip header: %w", err)
	}
	defer gz.Close()
	n, err := readBounded(gz, dst)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

// DownloadFile streams uri to dest, following redirects and decompressing
// transparently, per spec §4.4. It reports the total decompressed byte
// count written. The destination is truncated and created if absent; the
// caller is responsible for the `.part` / rename dance described in
// spec §4.8.
func (c *Client) DownloadFile(ctx context.Context, uri string, headers map[string]string, dest string, onProgress func(n int64)) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return 0, zvmerr.HTTPRequestFailed.Wrap(err, "building request for %s", uri)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, zvmerr.HTTPRequestFailed.Wrap(err, "GET %s", uri)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, zvmerr.HTTPRequestFailed.New("GET %s: status %d", uri, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return 0, zvmerr.HTTPRequestFailed.Wrap(err, "GET %s: gzip header", uri)
		}
		defer gz.Close()
		body = gz
	}

	f, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, zvmerr.IOError.Wrap(err, "opening %s", dest)
	}
	defer f.Close()

	w := &progressWriter{w: f, onProgress: onProgress}
	written, err := io.Copy(w, body)
	if err != nil {
		return 0, zvmerr.DownFailed.Wrap(err, "downloading %s", uri)
	}

	if cl := resp.Header.Get("Content-Length"); cl != "" && resp.Header.Get("Content-Encoding") != "gzip" {
		declared, convErr := strconv.ParseInt(cl, 10, 64)
		if convErr == nil {
			if err := integrity.VerifySize(written, true, declared); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

type progressWriter struct {
	w          io.Writer
	total      int64
	onProgress func(n int64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.total += int64(n)
	if p.onProgress != nil {
		p.onProgress(p.total)
	}
	return n, err
}

// FetchJSON fetches uri and returns the raw bounded body bytes ready for
// decoding by internal/metadata, which owns the bounded-allocator contract
// of spec §4.1/§4.2.
func (c *Client) FetchJSON(ctx context.Context, uri string, headers map[string]string, op *pool.HTTPOperation, gzipScratch *pool.HTTPOperation) ([]byte, error) {
	return c.Fetch(ctx, uri, headers, op, gzipScratch)
}
