package fetcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFTPURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantHost string
		wantPath string
		wantErr  bool
	}{
		{
			name:     "census mirror",
			url:      "ftp://ftp2.census.gov/geo/tiger/tiger2006se/NM/TGR35001.ZIP",
			wantHost: "ftp2.census.gov:21",
			wantPath: "/geo/tiger/tiger2006se/NM/TGR35001.ZIP",
		},
		{
			name:     "explicit port",
			url:      "ftp://mirror.example.com:2121/TGR35001.ZIP",
			wantHost: "mirror.example.com:2121",
			wantPath: "/TGR35001.ZIP",
		},
		{
			name:    "http scheme rejected",
			url:     "http://example.com/TGR35001.ZIP",
			wantErr: true,
		},
		{
			name:    "empty path",
			url:     "ftp://ftp2.census.gov",
			wantErr: true,
		},
		{
			name:    "root path",
			url:     "ftp://ftp2.census.gov/",
			wantErr: true,
		},
		{
			name:    "invalid url",
			url:     "://bad",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, path, err := parseFTPURL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}

func TestNewFTPFetcher_Defaults(t *testing.T) {
	f := NewFTPFetcher(FTPOptions{})
	assert.Equal(t, 30*time.Second, f.opts.Timeout)
	assert.Equal(t, "anonymous", f.opts.User)
	assert.Equal(t, "anonymous@", f.opts.Password)
}

func TestNewFTPFetcher_KeepsCredentials(t *testing.T) {
	f := NewFTPFetcher(FTPOptions{User: "tiger", Password: "secret"})
	assert.Equal(t, "tiger", f.opts.User)
	assert.Equal(t, "secret", f.opts.Password)
}

func TestFTPFetcher_DownloadBadURL(t *testing.T) {
	f := NewFTPFetcher(FTPOptions{})
	_, err := f.DownloadToFile(context.Background(), "ftp://host.invalid", t.TempDir()+"/out.zip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty path")
}
