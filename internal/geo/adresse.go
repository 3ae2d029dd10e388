package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultAdresseURL is the French national address API.
const DefaultAdresseURL = "https://api-adresse.data.gouv.fr"

// AdresseClient queries the api-adresse.data.gouv.fr search endpoint.
type AdresseClient struct {
	baseURL string
	client  *http.Client
}

// NewAdresseClient builds a client for baseURL. A nil httpClient uses
// http.DefaultClient, so no timeout applies beyond the caller's context.
func NewAdresseClient(baseURL string, httpClient *http.Client) *AdresseClient {
	if baseURL == "" {
		baseURL = DefaultAdresseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &AdresseClient{baseURL: strings.TrimRight(baseURL, "/"), client: httpClient}
}

type adresseResponse struct {
	Features []struct {
		Geometry struct {
			Type        string    `json:"type"`
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Label string  `json:"label"`
			Score float64 `json:"score"`
		} `json:"properties"`
	} `json:"features"`
}

// Search returns the features of the GeoJSON FeatureCollection in the order
// the API ranks them.
func (a *AdresseClient) Search(ctx context.Context, query string) ([]Feature, error) {
	endpoint := a.baseURL + "/search/?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrGeocodingUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeocodingUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrGeocodingUnavailable, resp.StatusCode)
	}

	var payload adresseResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrGeocodingUnavailable, err)
	}

	features := make([]Feature, 0, len(payload.Features))
	for _, f := range payload.Features {
		if len(f.Geometry.Coordinates) < 2 {
			return nil, fmt.Errorf("%w: feature without coordinates", ErrGeocodingUnavailable)
		}
		features = append(features, Feature{
			Label:    f.Properties.Label,
			Score:    f.Properties.Score,
			Position: [2]float64{f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]},
		})
	}
	return features, nil
}
