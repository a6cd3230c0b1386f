// Package netx issues the few WebDAV requests the gowebdav client does not
// expose with the semantics we need.
package netx

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// MkcolResult is the outcome of an exclusive MKCOL.
type MkcolResult int

const (
	// Created: the collection did not exist and was created by this call.
	Created MkcolResult = iota
	// Exists: the collection was already there (405 Method Not Allowed).
	Exists
)

// Mkcol creates the collection at url. Unlike gowebdav.Client.Mkdir it does
// not treat 405 as success, which makes it usable as an atomic
// create-if-absent primitive.
func Mkcol(ctx context.Context, client *http.Client, url, username, password string) (MkcolResult, error) {
	req, err := http.NewRequestWithContext(ctx, "MKCOL", url, nil)
	if err != nil {
		return 0, err
	}
	if username != "" {
		req.SetBasicAuth(username, password)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		return Created, nil
	case http.StatusMethodNotAllowed:
		return Exists, nil
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("mkcol failed: %s; body: %s", resp.Status, string(b))
	}
}
