package config

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// ClientOptions returns Google API client options for the credentials found
// in p: GOOGLE_CREDENTIALS (inline JSON) first, then
// GOOGLE_APPLICATION_CREDENTIALS (file path). When neither is set no option is
// returned and the clients fall back to Application Default Credentials.
func ClientOptions(p Provider) []option.ClientOption {
	if credJSON, ok := p.Lookup("GOOGLE_CREDENTIALS"); ok && credJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credJSON))}
	}
	if credFile, ok := p.Lookup("GOOGLE_APPLICATION_CREDENTIALS"); ok && credFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(credFile)}
	}
	return nil
}

// Credentials returns OAuth2 credentials scoped for the REST APIs (Drive and
// Sheets) using the same lookup order as ClientOptions.
func Credentials(ctx context.Context, p Provider, scopes ...string) (*google.Credentials, error) {
	const op = "Credentials"

	var creds []byte
	if credJSON, ok := p.Lookup("GOOGLE_CREDENTIALS"); ok && credJSON != "" {
		creds = []byte(credJSON)
	} else if credFile, ok := p.Lookup("GOOGLE_APPLICATION_CREDENTIALS"); ok && credFile != "" {
		data, err := os.ReadFile(credFile)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
		creds = data
	}

	if creds == nil {
		c, err := google.FindDefaultCredentials(ctx, scopes...)
		if err != nil {
			return nil, fmt.Errorf("%s: no credentials found: %w", op, err)
		}
		return c, nil
	}

	c, err := google.CredentialsFromJSON(ctx, creds, scopes...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}
	return c, nil
}
