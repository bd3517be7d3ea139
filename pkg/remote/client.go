// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v74/github"
	"golang.org/x/oauth2"
)

const (
	// DefaultAPIBaseURL is the hosted repository API root.
	DefaultAPIBaseURL = "https://api.github.com/"

	// DefaultRawBaseURL is the raw file content host.
	DefaultRawBaseURL = "https://raw.githubusercontent.com/"

	// APIVersion is sent on every remote call.
	APIVersion = "2022-11-28"

	// AcceptHeader is sent on every remote call.
	AcceptHeader = "application/vnd.github+json"

	// UserAgent identifies sift to the upstream.
	UserAgent = "sift-ingest"
)

// apiHeaders stamps the fixed headers on every outgoing request, including
// the raw content downloads go-github would otherwise leave untouched.
type apiHeaders struct {
	base http.RoundTripper
}

func (t *apiHeaders) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Accept", AcceptHeader)
	req.Header.Set("X-GitHub-Api-Version", APIVersion)
	req.Header.Set("User-Agent", UserAgent)
	return t.base.RoundTrip(req)
}

// newGitHubClient builds the go-github client. A non-empty token is sent as a
// Bearer credential through an oauth2 static token source.
func newGitHubClient(token, apiBaseURL string, base *http.Client) (*github.Client, error) {
	if base == nil {
		base = &http.Client{}
	}
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	httpClient := &http.Client{
		Transport: &apiHeaders{base: transport},
		Timeout:   base.Timeout,
	}

	if token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: token,
			TokenType:   "Bearer",
		}))
	}

	client := github.NewClient(httpClient)
	client.UserAgent = UserAgent

	if apiBaseURL != "" && apiBaseURL != DefaultAPIBaseURL {
		u, err := parseBaseURL(apiBaseURL)
		if err != nil {
			return nil, fmt.Errorf("api base url: %w", err)
		}
		client.BaseURL = u
	}
	return client, nil
}

// parseBaseURL parses u and guarantees a trailing slash, which go-github
// requires to resolve relative endpoints.
func parseBaseURL(u string) (*url.URL, error) {
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%q is not an absolute URL", u)
	}
	return parsed, nil
}
