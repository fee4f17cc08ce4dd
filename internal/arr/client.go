package arr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a single Radarr or Sonarr instance over its v3 API.
type Client struct {
	http       *http.Client
	baseURL    string
	apiKey     string
	service    ServiceType
	instanceID int64
}

// NewClient creates a client for one instance. The timeout bounds every
// request; a timed-out instance is reported as unreachable, never as
// "item absent".
func NewClient(inst Instance, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		http:       &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(inst.BaseURL, "/"),
		apiKey:     inst.APIKey,
		service:    inst.Service,
		instanceID: inst.ID,
	}
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) doPost(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return io.ReadAll(resp.Body)
}

// Validate checks connectivity and that the remote application matches
// the expected service type.
func (c *Client) Validate(ctx context.Context) error {
	data, err := c.doGet(ctx, "/api/v3/system/status")
	if err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}

	var status struct {
		AppName string `json:"appName"`
	}
	if err := json.Unmarshal(data, &status); err != nil {
		return fmt.Errorf("failed to parse status response: %w", err)
	}

	expected := "Radarr"
	if c.service == ServiceSonarr {
		expected = "Sonarr"
	}
	if !strings.EqualFold(status.AppName, expected) {
		return fmt.Errorf("expected %s but connected to %s", expected, status.AppName)
	}
	return nil
}

// Movies fetches the instance's full movie library.
func (c *Client) Movies(ctx context.Context) ([]Movie, error) {
	data, err := c.doGet(ctx, "/api/v3/movie")
	if err != nil {
		return nil, err
	}
	var movies []Movie
	if err := json.Unmarshal(data, &movies); err != nil {
		return nil, fmt.Errorf("failed to parse movies: %w", err)
	}
	for i := range movies {
		movies[i].InstanceID = c.instanceID
	}
	return movies, nil
}

// Series fetches the instance's full series library.
func (c *Client) Series(ctx context.Context) ([]Series, error) {
	data, err := c.doGet(ctx, "/api/v3/series")
	if err != nil {
		return nil, err
	}
	var series []Series
	if err := json.Unmarshal(data, &series); err != nil {
		return nil, fmt.Errorf("failed to parse series: %w", err)
	}
	for i := range series {
		series[i].InstanceID = c.instanceID
	}
	return series, nil
}

// MovieByTmdbID looks up a movie in the instance library by tmdb id.
// A nil movie with nil error means the instance does not have it.
func (c *Client) MovieByTmdbID(ctx context.Context, tmdbID int64) (*Movie, error) {
	data, err := c.doGet(ctx, "/api/v3/movie?tmdbId="+url.QueryEscape(fmt.Sprint(tmdbID)))
	if err != nil {
		return nil, err
	}
	var movies []Movie
	if err := json.Unmarshal(data, &movies); err != nil {
		return nil, fmt.Errorf("failed to parse movie lookup: %w", err)
	}
	if len(movies) == 0 {
		return nil, nil
	}
	movies[0].InstanceID = c.instanceID
	return &movies[0], nil
}

// SeriesByTvdbID looks up a series in the instance library by tvdb id.
func (c *Client) SeriesByTvdbID(ctx context.Context, tvdbID int64) (*Series, error) {
	data, err := c.doGet(ctx, "/api/v3/series?tvdbId="+url.QueryEscape(fmt.Sprint(tvdbID)))
	if err != nil {
		return nil, err
	}
	var series []Series
	if err := json.Unmarshal(data, &series); err != nil {
		return nil, fmt.Errorf("failed to parse series lookup: %w", err)
	}
	if len(series) == 0 {
		return nil, nil
	}
	series[0].InstanceID = c.instanceID
	return &series[0], nil
}

// RootFolders returns the instance's configured root folders.
func (c *Client) RootFolders(ctx context.Context) ([]RootFolder, error) {
	data, err := c.doGet(ctx, "/api/v3/rootfolder")
	if err != nil {
		return nil, err
	}
	var folders []RootFolder
	if err := json.Unmarshal(data, &folders); err != nil {
		return nil, fmt.Errorf("failed to parse root folders: %w", err)
	}
	return folders, nil
}

// QualityProfiles returns the instance's quality profiles.
func (c *Client) QualityProfiles(ctx context.Context) ([]QualityProfile, error) {
	data, err := c.doGet(ctx, "/api/v3/qualityprofile")
	if err != nil {
		return nil, err
	}
	var profiles []QualityProfile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("failed to parse quality profiles: %w", err)
	}
	return profiles, nil
}

// AddMovie adds a movie to the instance library.
func (c *Client) AddMovie(ctx context.Context, input AddMovieInput) (*Movie, error) {
	payload := map[string]any{
		"title":            input.Title,
		"tmdbId":           input.TmdbID,
		"qualityProfileId": input.QualityProfileID,
		"rootFolderPath":   input.RootFolderPath,
		"monitored":        true,
		"addOptions": map[string]any{
			"searchForMovie": input.SearchOnAdd,
		},
	}
	data, err := c.doPost(ctx, "/api/v3/movie", payload)
	if err != nil {
		return nil, err
	}
	var movie Movie
	if err := json.Unmarshal(data, &movie); err != nil {
		return nil, fmt.Errorf("failed to parse add response: %w", err)
	}
	movie.InstanceID = c.instanceID
	return &movie, nil
}

// AddSeries adds a series to the instance library.
func (c *Client) AddSeries(ctx context.Context, input AddSeriesInput) (*Series, error) {
	payload := map[string]any{
		"title":            input.Title,
		"tvdbId":           input.TvdbID,
		"qualityProfileId": input.QualityProfileID,
		"rootFolderPath":   input.RootFolderPath,
		"monitored":        true,
		"seasonFolder":     true,
		"addOptions": map[string]any{
			"searchForMissingEpisodes": input.SearchOnAdd,
		},
	}
	data, err := c.doPost(ctx, "/api/v3/series", payload)
	if err != nil {
		return nil, err
	}
	var series Series
	if err := json.Unmarshal(data, &series); err != nil {
		return nil, fmt.Errorf("failed to parse add response: %w", err)
	}
	series.InstanceID = c.instanceID
	return &series, nil
}
