package ooinet

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/reedan88/Isaias/internal/domain"
	"github.com/reedan88/Isaias/internal/ports"
)

// ErrMalformedThreddsURL is returned when the ooi/.../catalog segment is missing.
var ErrMalformedThreddsURL = domain.ErrMalformedThreddsURL

// DatasetID extracts the job id ("ooi/<user>/<request>") from a THREDDS URL.
func DatasetID(threddsURL string) (string, error) { return domain.DatasetID(threddsURL) }

// StatusURL is the file that appears once the job has finished.
func StatusURL(threddsURL, datasetID string) string { return domain.StatusURL(threddsURL, datasetID) }

// CatalogURL is the XML catalog of a finished job.
func CatalogURL(server, datasetID string) string { return domain.CatalogURL(server, datasetID) }

// CheckStatus performs one unauthenticated GET and returns the status code.
func (c *Client) CheckStatus(ctx context.Context, statusURL string) (int, error) {
	req, err := c.newRequest(ctx, statusURL, false)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ooinet: status %s: %w", statusURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// FetchCatalog returns the urlPath attribute of every dataset element, in
// document order.
func (c *Client) FetchCatalog(ctx context.Context, catalogURL string) ([]string, error) {
	req, err := c.newRequest(ctx, catalogURL, false)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ooinet: catalog %s: %w", catalogURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, newRequestError(resp, catalogURL)
	}
	return parseCatalogXML(resp.Body)
}

func parseCatalogXML(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var out []string
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("ooinet: parse catalog: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "dataset" {
			continue
		}
		for _, a := range se.Attr {
			if a.Name.Local == "urlPath" {
				out = append(out, a.Value)
				break
			}
		}
	}
}

var (
	_ ports.StatusChecker  = (*Client)(nil)
	_ ports.CatalogFetcher = (*Client)(nil)
)
