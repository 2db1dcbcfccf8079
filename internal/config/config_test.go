package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(NewViper(), "", false)
	require.NoError(t, err)

	assert.Equal(t, "./input", cfg.InputDir)
	assert.Equal(t, "./output", cfg.OutputDir)
	assert.Equal(t, "./profiles", cfg.ProfilesDir)
	assert.Equal(t, "contacts", cfg.DefaultProfile)
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.Equal(t, "{original}_{uuid}.{ext}", cfg.OutputNameFormat)
	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.False(t, cfg.ContinueOnError)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
output_dir: /tmp/records
output_format: CSV
max_concurrency: 2
cache_ttl: 30s
log_level: debug
`)

	t.Setenv("ROWIMPORT_OUTPUT_DIR", "/srv/records")
	t.Setenv("ROWIMPORT_CONTINUE_ON_ERROR", "true")

	cfg, err := Load(NewViper(), path, true)
	require.NoError(t, err)

	assert.Equal(t, "/srv/records", cfg.OutputDir, "env overrides file")
	assert.Equal(t, "csv", cfg.OutputFormat)
	assert.Equal(t, 2, cfg.MaxConcurrency)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.ContinueOnError)
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")

	cfg, err := Load(NewViper(), path, false)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.OutputFormat)

	_, err = Load(NewViper(), path, true)
	require.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "format", body: "output_format: pdf\n"},
		{name: "level", body: "log_level: loud\n"},
		{name: "log format", body: "log_format: xml\n"},
		{name: "negative ttl", body: "cache_ttl: -1s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "config.yaml", tt.body)
			_, err := Load(NewViper(), path, true)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestLoadProfiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "members.yaml", `
name: members
file_matching_patterns: ["members_*.csv"]
csv_settings:
  delimiter: semicolon
  trim_space: false
workbook_settings:
  skip_blank_rows: true
columns:
  - field: id
    header: Member ID
    type: integer
  - field: email
    header: E-mail
    type: email
    max_length: 80
transformations:
  - field: id
    actions:
      - type: pad_zeros_to_length
        value: "6"
`)
	writeFile(t, dir, "unnamed.yml", `
columns:
  - field: code
    header: Code
`)

	profiles, err := LoadProfiles(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"contacts", "members", "unnamed"}, ProfileNames(profiles))

	members := profiles["members"]
	assert.Equal(t, "semicolon", members.CSVSettings.Delimiter)
	assert.Equal(t, "UTF-8", members.CSVSettings.Encoding)
	assert.False(t, members.CSVSettings.Trim())
	assert.True(t, members.CSVSettings.SkipBlank())
	assert.True(t, members.WorkbookSettings.Trim())
	assert.True(t, members.WorkbookSettings.SkipBlank())
	assert.False(t, profiles["unnamed"].WorkbookSettings.SkipBlank())
	assert.Equal(t, "Member ID", members.ColumnSpec()[0].Header)
	assert.True(t, members.Matches("/in/members_2024.csv"))
	assert.False(t, members.Matches("contacts.csv"))

	assert.Equal(t, "string", profiles["unnamed"].Columns[0].Type)
}

func TestLoadProfiles_MissingDir(t *testing.T) {
	profiles, err := LoadProfiles(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Equal(t, []string{"contacts"}, ProfileNames(profiles))
}

func TestLoadProfile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "no columns",
			body: "name: x\n",
			want: "column spec is empty",
		},
		{
			name: "duplicate field",
			body: "name: x\ncolumns:\n  - {field: a, header: A}\n  - {field: a, header: B}\n",
			want: "more than once",
		},
		{
			name: "unknown action",
			body: "name: x\ncolumns:\n  - {field: a, header: A}\ntransformations:\n  - field: a\n    actions: [{type: explode}]\n",
			want: "unknown transformation type",
		},
		{
			name: "transformation for unknown field",
			body: "name: x\ncolumns:\n  - {field: a, header: A}\ntransformations:\n  - field: b\n    actions: [{type: trim}]\n",
			want: "unknown field",
		},
		{
			name: "bad yaml",
			body: "name: [x\n",
			want: "failed to parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "p.yaml", tt.body)
			_, err := LoadProfile(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSelectProfile(t *testing.T) {
	members := &Profile{Name: "members", FileMatchingPatterns: []string{"members_*"}}
	profiles := map[string]*Profile{
		"contacts": ContactsProfile(),
		"members":  members,
	}

	p, err := SelectProfile(profiles, "contacts", "members_1.csv", "contacts")
	require.NoError(t, err)
	assert.Equal(t, "contacts", p.Name, "explicit name wins over patterns")

	p, err = SelectProfile(profiles, "", "members_1.csv", "contacts")
	require.NoError(t, err)
	assert.Equal(t, "members", p.Name)

	p, err = SelectProfile(profiles, "", "other.csv", "contacts")
	require.NoError(t, err)
	assert.Equal(t, "contacts", p.Name)

	_, err = SelectProfile(profiles, "ghost", "x.csv", "contacts")
	assert.True(t, errors.Is(err, ErrUnknownProfile))

	_, err = SelectProfile(profiles, "", "other.csv", "ghost")
	require.Error(t, err)
}

func TestContactsProfile(t *testing.T) {
	p := ContactsProfile()
	require.NoError(t, p.Validate())
	assert.Equal(t, []string{"name", "email", "age"}, p.ColumnSpec().Fields())
	assert.Equal(t, ",", p.CSVSettings.Delimiter)
}
